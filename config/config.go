// SPDX-License-Identifier: Unlicense OR MIT

// Package config loads the tunables a host wires through to the
// quantization, bucketing, and layer packages at model-creation time:
// RTC tile size/threshold, crease angle, bucket welding/rebucketing,
// DTX enablement, and per-frame deferred-update throttling. Grounded
// on noisetorch's plain struct + BurntSushi/toml config.go.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable a scene model consults while authoring.
type Config struct {
	RTCTileSize             float64
	RTCThreshold            float64
	DefaultCreaseAngleDeg   float32
	BucketWeld              bool
	BucketRebucket          bool
	BucketMaxPerBucket      int
	DTXEnabled              bool
	MaxDeferredUpdatesPerTick int
	ScratchPoolWarmup       int
}

// Default returns the tunables a model uses when the host supplies no
// override.
func Default() Config {
	return Config{
		RTCTileSize:               1000.0,
		RTCThreshold:              1e5,
		DefaultCreaseAngleDeg:     10.0,
		BucketWeld:                true,
		BucketRebucket:             true,
		BucketMaxPerBucket:         0,
		DTXEnabled:                 true,
		MaxDeferredUpdatesPerTick:  2048,
		ScratchPoolWarmup:          0,
	}
}

// Load reads a TOML config file at path, filling in Default() for any
// field the file leaves unset (BurntSushi/toml decodes onto the
// zero-initialized struct it's given, so start from the defaults
// rather than a bare Config{}). path == "" means "no config file was
// given" and returns Default() verbatim; a non-empty path that does
// not exist is an error, same as a malformed one.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Write serializes cfg as TOML to path.
func Write(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
