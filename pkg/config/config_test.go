package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodevec.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ChunkSize != 150 || cfg.Iterations != 1 || cfg.LearningRate != 0.2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if time.Duration(cfg.LockTimeout) != 30*time.Second {
		t.Errorf("lock timeout = %s", time.Duration(cfg.LockTimeout))
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
size: 128
down_sampling: 0.0001
workers: 8
negative: 5
chunk_size: 64
iterations: 3
progress_interval: 2s
lock_timeout: 1m
metrics_addr: ":9100"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Size != 128 || cfg.Workers != 8 || cfg.Negative != 5 || cfg.ChunkSize != 64 || cfg.Iterations != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.TableSize != DefaultConfig().TableSize {
		t.Errorf("table_size = %d", cfg.TableSize)
	}

	to := cfg.TrainerOptions()
	if to.ProgressInterval != 2*time.Second || to.LockTimeout != time.Minute {
		t.Errorf("durations: %s %s", to.ProgressInterval, to.LockTimeout)
	}
	if mo := cfg.ModelOptions(); mo.Size != 128 || mo.DownSampling != 0.0001 {
		t.Errorf("model options: %+v", mo)
	}
}

func TestLoadConfigIntegerDuration(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "lock_timeout: 1000000\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if time.Duration(cfg.LockTimeout) != time.Millisecond {
		t.Errorf("lock timeout = %s", time.Duration(cfg.LockTimeout))
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "sizee: 4\n", "sizee"},
		{"bad duration", "lock_timeout: soon\n", "soon"},
		{"invalid range", "workers: 0\nchunk_size: -1\n", "workers must be > 0"},
		{"table beyond uint32", "table_size: 4294967296\n", "table_size must be <= 4294967295"},
		{"size beyond uint32", "size: 4294967296\n", "size must be <= 4294967295"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
