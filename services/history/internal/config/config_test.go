package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseTTLTiers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TTLTiers
		wantErr bool
	}{
		{
			name:  "defaults",
			input: "30s,5m,1h",
			want:  TTLTiers{Short: 30 * time.Second, Medium: 5 * time.Minute, Long: time.Hour},
		},
		{
			name:  "spaces tolerated",
			input: " 10s , 1m , 10m ",
			want:  TTLTiers{Short: 10 * time.Second, Medium: time.Minute, Long: 10 * time.Minute},
		},
		{
			name:    "wrong arity",
			input:   "30s,5m",
			wantErr: true,
		},
		{
			name:    "not a duration",
			input:   "30s,banana,1h",
			wantErr: true,
		},
		{
			name:    "zero tier",
			input:   "0s,5m,1h",
			wantErr: true,
		},
		{
			name:    "not ascending",
			input:   "1h,5m,30s",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTTLTiers(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseTTLTiers(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTTLTiers(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("parseTTLTiers(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDeadlineOverrides(t *testing.T) {
	writeFile := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "deadlines.yaml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("no file keeps env default", func(t *testing.T) {
		cfg := Config{UndoDeadline: 30 * time.Minute}
		def, kinds, err := cfg.DeadlineOverrides()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if def != 30*time.Minute {
			t.Fatalf("default = %v, want 30m", def)
		}
		if kinds != nil {
			t.Fatalf("kinds = %v, want nil", kinds)
		}
	})

	t.Run("file overrides default and kinds", func(t *testing.T) {
		path := writeFile(t, "default: 45m\nkinds:\n  order: 10m\n  menu: 1h\n")
		cfg := Config{UndoDeadline: 30 * time.Minute, UndoDeadlinesFile: path}

		def, kinds, err := cfg.DeadlineOverrides()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if def != 45*time.Minute {
			t.Fatalf("default = %v, want 45m", def)
		}
		if kinds["order"] != 10*time.Minute || kinds["menu"] != time.Hour {
			t.Fatalf("kinds = %v", kinds)
		}
	})

	t.Run("kinds only", func(t *testing.T) {
		path := writeFile(t, "kinds:\n  table: 15m\n")
		cfg := Config{UndoDeadline: 30 * time.Minute, UndoDeadlinesFile: path}

		def, kinds, err := cfg.DeadlineOverrides()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if def != 30*time.Minute {
			t.Fatalf("default = %v, want env 30m", def)
		}
		if kinds["table"] != 15*time.Minute {
			t.Fatalf("kinds = %v", kinds)
		}
	})

	t.Run("non-positive kind rejected", func(t *testing.T) {
		path := writeFile(t, "kinds:\n  order: -5m\n")
		cfg := Config{UndoDeadline: 30 * time.Minute, UndoDeadlinesFile: path}

		if _, _, err := cfg.DeadlineOverrides(); err == nil {
			t.Fatal("expected error for negative deadline")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		cfg := Config{UndoDeadline: 30 * time.Minute, UndoDeadlinesFile: "/nonexistent/deadlines.yaml"}
		if _, _, err := cfg.DeadlineOverrides(); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
