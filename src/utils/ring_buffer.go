package utils

import (
	"parking-viewer/src/models"
)

// DefaultHistoryCapacity is the trend window length used by the viewer.
const DefaultHistoryCapacity = 50

// -----------------------------------------------------------------------------
// HistoryWindow is a fixed-size circular buffer of (step, revenue) samples.
// Appending to a full window evicts the oldest sample. Not safe for concurrent
// use; the owner serialises access.
// -----------------------------------------------------------------------------

type HistoryWindow struct {
	data     []models.MHistoryPoint
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewHistoryWindow creates a new buffer with fixed capacity
func NewHistoryWindow(capacity int) *HistoryWindow {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}

	return &HistoryWindow{
		data:     make([]models.MHistoryPoint, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Append adds a point at the end, evicting the oldest one when full
func (hw *HistoryWindow) Append(point models.MHistoryPoint) {
	hw.data[hw.index] = point
	hw.index = (hw.index + 1) % hw.capacity

	// Update size (never exceeds capacity)
	if hw.size < hw.capacity {
		hw.size++
	}
}

// -----------------------------------------------------------------------------

// Snapshot returns all points in insertion order (oldest to newest).
// The result is a copy.
func (hw *HistoryWindow) Snapshot() []models.MHistoryPoint {
	result := make([]models.MHistoryPoint, hw.size)
	if hw.size == 0 {
		return result
	}

	// Oldest element sits at the write index once the buffer has wrapped
	startIdx := 0
	if hw.size == hw.capacity {
		startIdx = hw.index
	}

	for i := 0; i < hw.size; i++ {
		result[i] = hw.data[(startIdx+i)%hw.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// Latest returns the newest point
func (hw *HistoryWindow) Latest() (models.MHistoryPoint, bool) {
	if hw.size == 0 {
		return models.MHistoryPoint{}, false
	}
	return hw.data[(hw.index-1+hw.capacity)%hw.capacity], true
}

// -----------------------------------------------------------------------------

// Len returns current number of elements
func (hw *HistoryWindow) Len() int {
	return hw.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (hw *HistoryWindow) Capacity() int {
	return hw.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (hw *HistoryWindow) IsFull() bool {
	return hw.size == hw.capacity
}

// -----------------------------------------------------------------------------

// Reset empties the window
func (hw *HistoryWindow) Reset() {
	hw.index = 0
	hw.size = 0
	clear(hw.data)
}
