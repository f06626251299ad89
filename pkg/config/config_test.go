package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/timing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.BusSpeed() != timing.SpeedHigh {
		t.Errorf("speed = %v, want HS", cfg.BusSpeed())
	}
	if diff := cmp.Diff(timing.DefaultTable(), cfg.Table()); diff != "" {
		t.Errorf("Table() (-want +got):\n%s", diff)
	}
	if cfg.Device.Address != DefaultAddress || cfg.Device.Turnaround != DefaultTurnaround {
		t.Errorf("device = %+v", cfg.Device)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:  "empty",
			input: "",
			check: func(t *testing.T, cfg Config) {
				if diff := cmp.Diff(Default(), cfg); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "overrides",
			input: `speed: fs
timing:
  rxTimeout: 30
  strobeHoldFS: 0
device:
  address: 5
  turnaround: 8
logs:
  level: debug
  format: json
`,
			check: func(t *testing.T, cfg Config) {
				if cfg.BusSpeed() != timing.SpeedFull {
					t.Errorf("speed = %v", cfg.BusSpeed())
				}
				tab := cfg.Table()
				want := timing.DefaultTable()
				want.RxTimeout = 30
				want.StrobeHoldFS = 0
				if diff := cmp.Diff(want, tab); diff != "" {
					t.Errorf("Table() (-want +got):\n%s", diff)
				}
				if cfg.Device.Address != 5 || cfg.Device.Turnaround != 8 {
					t.Errorf("device = %+v", cfg.Device)
				}
				if cfg.Logs.Level != "debug" || cfg.Logs.Format != "json" {
					t.Errorf("logs = %+v", cfg.Logs)
				}
			},
		},
		{name: "unknown field", input: "colour: blue\n", wantErr: errAny},
		{name: "bad speed", input: "speed: ludicrous\n", wantErr: errAny},
		{name: "bad address", input: "device:\n  address: 200\n", wantErr: pkg.ErrInvalidParameter},
		{name: "negative timing", input: "timing:\n  endDelay: -1\n", wantErr: pkg.ErrInvalidParameter},
		{name: "bad log level", input: "logs:\n  level: loud\n", wantErr: pkg.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Decode(strings.NewReader(tt.input))
			switch {
			case tt.wantErr == errAny:
				if err == nil {
					t.Fatal("Decode() succeeded, want error")
				}
				return
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			case err != nil:
				t.Fatalf("Decode() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

var errAny = errors.New("any error")

func TestLoad_ResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "utmisim.yaml")
	data := "store: data/runs.db\nlogs:\n  file: logs/utmisim.log\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "runs.db"); cfg.Store != want {
		t.Errorf("Store = %q, want %q", cfg.Store, want)
	}
	if want := filepath.Join(dir, "logs", "utmisim.log"); cfg.Logs.File != want {
		t.Errorf("Logs.File = %q, want %q", cfg.Logs.File, want)
	}
	if cfg.Rotation().Filename != cfg.Logs.File {
		t.Errorf("Rotation().Filename = %q", cfg.Rotation().Filename)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Timing.RxTimeout = timing.Clocks(20)

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("Decode(Marshal()) error = %v\n%s", err, data)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestApplyLogging_File(t *testing.T) {
	t.Cleanup(func() {
		pkg.SetOutput(os.Stderr)
		pkg.SetLogFormat(pkg.LogFormatText)
		pkg.SetLogLevel(slog.LevelWarn)
	})

	cfg := Default()
	cfg.Logs.Level = "debug"
	cfg.Logs.File = filepath.Join(t.TempDir(), "logs", "utmisim.log")

	closer, err := cfg.ApplyLogging(os.Stderr)
	if err != nil {
		t.Fatal(err)
	}
	pkg.LogInfo(pkg.ComponentCLI, "hello")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(cfg.Logs.File)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "msg=hello") {
		t.Errorf("log file = %q", data)
	}
}
