package topology

import (
	"encoding/json"
	"testing"

	"parking-viewer/src/models"
)

func TestCornersOn20x20(t *testing.T) {
	cases := []struct {
		x, y int
		want Corner
	}{
		{0, 0, CornerIn},
		{19, 0, CornerOut},
		{0, 19, CornerOut},
		{19, 19, CornerIn},
		{5, 0, CornerNone},
		{0, 7, CornerNone},
	}
	for _, tc := range cases {
		if got := LaneOf(tc.x, tc.y, 20, 20).Corner; got != tc.want {
			t.Errorf("(%d,%d) corner = %s, want %s", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestDirections(t *testing.T) {
	cases := []struct {
		x, y int
		want Direction
	}{
		{7, 0, LeftRight},  // top row
		{7, 19, LeftRight}, // bottom row
		{0, 0, LeftRight},  // rows take precedence over columns
		{0, 5, Down},       // left entrance
		{19, 5, Up},        // right exit column
		{1, 5, Down},       // round(1/3)=0
		{2, 5, Up},         // round(2/3)=1
		{4, 5, Up},         // round(4/3)=1
		{5, 5, Down},       // round(5/3)=2
		{8, 5, Up},         // round(8/3)=3
		{10, 5, Up},        // round(10/3)=3
		{11, 5, Down},      // round(11/3)=4
	}
	for _, tc := range cases {
		if got := LaneOf(tc.x, tc.y, 20, 20).Direction; got != tc.want {
			t.Errorf("(%d,%d) direction = %s, want %s", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestCornersExactlyFourAndDisjoint(t *testing.T) {
	for w := 2; w <= 12; w++ {
		for h := 2; h <= 12; h++ {
			in, out := 0, 0
			for x := 0; x < w; x++ {
				for y := 0; y < h; y++ {
					isCorner := (x == 0 || x == w-1) && (y == 0 || y == h-1)
					switch LaneOf(x, y, w, h).Corner {
					case CornerIn:
						in++
						if !isCorner {
							t.Fatalf("%dx%d: (%d,%d) marked in", w, h, x, y)
						}
					case CornerOut:
						out++
						if !isCorner {
							t.Fatalf("%dx%d: (%d,%d) marked out", w, h, x, y)
						}
					}
				}
			}
			if in != 2 || out != 2 {
				t.Fatalf("%dx%d: in=%d out=%d", w, h, in, out)
			}
		}
	}
}

func TestLaneOfDeterministic(t *testing.T) {
	for x := 0; x < 20; x++ {
		for y := 0; y < 20; y++ {
			if LaneOf(x, y, 20, 20) != LaneOf(x, y, 20, 20) {
				t.Fatalf("(%d,%d) not deterministic", x, y)
			}
		}
	}
}

func TestLayoutShapeAndJSON(t *testing.T) {
	rows := Layout(models.MGridConfig{Width: 4, Height: 3})
	if len(rows) != 3 || len(rows[0]) != 4 {
		t.Fatalf("shape = %dx%d", len(rows), len(rows[0]))
	}
	if rows[2][3] != LaneOf(3, 2, 4, 3) {
		t.Errorf("layout not indexed [y][x]")
	}

	data, err := json.Marshal(rows[0][0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"direction":"left_right","corner":"in"}` {
		t.Errorf("json = %s", data)
	}

	if len(Layout(models.MGridConfig{})) != 0 {
		t.Errorf("empty grid must give an empty layout")
	}
}
