package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Mode != "release" {
		t.Errorf("mode = %q, want release", cfg.Mode)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.ReadLimit != 32768 {
		t.Errorf("read_limit = %d, want 32768", cfg.ReadLimit)
	}
	if cfg.PingPeriod != 54*time.Second {
		t.Errorf("ping_period = %s, want 54s", cfg.PingPeriod)
	}
	if cfg.Store != "memory" {
		t.Errorf("store = %q, want memory", cfg.Store)
	}
	if cfg.CallLimit != 5 || cfg.CallInterval != time.Minute {
		t.Errorf("call limit = %d/%s, want 5 per 1m", cfg.CallLimit, cfg.CallInterval)
	}
}
