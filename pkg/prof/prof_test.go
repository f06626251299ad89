package prof

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStart_CPUAndHeap(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{CPU: filepath.Join(dir, "cpu.prof"), Heap: filepath.Join(dir, "heap.prof")}

	p, err := Start(cfg)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !IsCPUActive() {
		t.Error("IsCPUActive() = false, want true")
	}

	if _, err := Start(Config{CPU: filepath.Join(dir, "cpu2.prof")}); !errors.Is(err, ErrCPUProfileActive) {
		t.Errorf("second Start() error = %v, want %v", err, ErrCPUProfileActive)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if IsCPUActive() {
		t.Error("IsCPUActive() = true after Stop")
	}
	for _, path := range []string{cfg.CPU, cfg.Heap} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", path)
		}
	}
}

func TestStart_Empty(t *testing.T) {
	cfg := Config{}
	if !cfg.IsZero() {
		t.Error("IsZero() = false")
	}
	p, err := Start(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if IsCPUActive() {
		t.Error("empty config started a CPU profile")
	}
	if err := p.Stop(); err != nil {
		t.Error(err)
	}
}

func TestStart_InvalidPath(t *testing.T) {
	if _, err := Start(Config{CPU: "/nonexistent/directory/cpu.prof"}); err == nil {
		t.Error("Start() error = nil, want error for invalid path")
	}
	if IsCPUActive() {
		t.Error("failed Start left profiling active")
	}
}
