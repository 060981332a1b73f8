package config

import (
	"path/filepath"
	"testing"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.RTCTileSize = 2000
	cfg.DTXEnabled = false

	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RTCTileSize != 2000 || got.DTXEnabled != false {
		t.Fatalf("Load() = %+v, want RTCTileSize=2000 DTXEnabled=false", got)
	}
	if got.DefaultCreaseAngleDeg != Default().DefaultCreaseAngleDeg {
		t.Fatalf("DefaultCreaseAngleDeg = %v, want default preserved", got.DefaultCreaseAngleDeg)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.toml"); err == nil {
		t.Fatal("expected an error loading a missing config file")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if got != Default() {
		t.Fatalf("Load(\"\") = %+v, want Default() %+v", got, Default())
	}
}
