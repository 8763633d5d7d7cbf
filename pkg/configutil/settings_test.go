package configutil

import (
	"testing"
	"time"
)

type sampleSettings struct {
	Endpoint  string        `mapstructure:"endpoint"`
	BlockSize int           `mapstructure:"block_size"`
	DialWait  time.Duration `mapstructure:"dial_wait"`
}

func TestDecodeSettingsKeyNormalization(t *testing.T) {
	var out sampleSettings
	err := DecodeSettings(map[string]any{
		"Endpoint":   "wss://example",
		"block-size": "4096",
		"dial_wait":  "2s",
	}, &out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Endpoint != "wss://example" || out.BlockSize != 4096 || out.DialWait != 2*time.Second {
		t.Fatalf("unexpected decode %+v", out)
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("  ", "transport.endpoint"); err == nil {
		t.Fatalf("expected error for blank required field")
	}
	if err := RequireString("x", "transport.endpoint"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
