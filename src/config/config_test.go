package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
name: viewer
host: 127.0.0.1
port: 8090
simulation:
  base_url: http://127.0.0.1:8000
  spawn_rate: 0.3
  mode: AUCTION
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Simulation.CadenceMillis != DefaultCadenceMillis {
		t.Errorf("cadence = %d, want %d", cfg.Simulation.CadenceMillis, DefaultCadenceMillis)
	}
	if cfg.Simulation.HistoryCapacity != DefaultHistoryCapacity {
		t.Errorf("history capacity = %d, want %d", cfg.Simulation.HistoryCapacity, DefaultHistoryCapacity)
	}
	if cfg.Storage.DBType != "none" {
		t.Errorf("db type = %q, want none", cfg.Storage.DBType)
	}
	params := cfg.DefaultParams()
	if params.Mode != "AUCTION" || params.SpawnRate != 0.3 {
		t.Errorf("unexpected default params %+v", params)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]struct {
		replace string
		with    string
		want    string
	}{
		"spawn rate too high": {"spawn_rate: 0.3", "spawn_rate: 0.95", "spawn rate"},
		"spawn rate too low":  {"spawn_rate: 0.3", "spawn_rate: 0.01", "spawn rate"},
		"bad url":             {"base_url: http://127.0.0.1:8000", "base_url: ftp://x", "base_url"},
		"low port":            {"port: 8090", "port: 80", "port"},
		"empty name":          {"name: viewer", "name: \"\"", "name"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			doc := strings.Replace(validYAML, tc.replace, tc.with, 1)
			_, err := Parse([]byte(doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateStorage(t *testing.T) {
	doc := validYAML + "storage:\n  db_type: sqlite\n"
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected sqlite without path to fail")
	}
	doc = validYAML + "storage:\n  db_type: mongo\n"
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected unknown db type to fail")
	}
}

func TestOpenModeAccepted(t *testing.T) {
	doc := strings.Replace(validYAML, "mode: AUCTION", "mode: LOTTERY", 1)
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unknown modes must pass through: %v", err)
	}
	if cfg.Simulation.Mode != "LOTTERY" {
		t.Errorf("mode = %q", cfg.Simulation.Mode)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	cfg.Simulation.SpawnRate = 0.5
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := NewConfig(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Simulation.SpawnRate != 0.5 {
		t.Errorf("spawn rate = %v, want 0.5", loaded.Simulation.SpawnRate)
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(os.TempDir(), "does-not-exist-parking.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
