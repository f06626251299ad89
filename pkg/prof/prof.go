package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/ardnew/utmisim/pkg"
)

// ErrCPUProfileActive indicates CPU profiling is already active.
var ErrCPUProfileActive = errors.New("cpu profile already active")

// Config names the profile outputs. Empty paths are skipped.
type Config struct {
	CPU  string // CPU profile, sampled between Start and Stop
	Heap string // Heap snapshot taken at Stop
}

// IsZero reports whether no profile is requested.
func (c Config) IsZero() bool {
	return c.CPU == "" && c.Heap == ""
}

// Profiler holds the state of an active profiling session.
type Profiler struct {
	cfg     Config
	cpuFile *os.File
	once    sync.Once
	err     error
}

var (
	cpuMutex  sync.Mutex
	cpuActive bool
)

// Start begins profiling per cfg. Only one CPU profile may be active in a
// process; a second returns [ErrCPUProfileActive].
func Start(cfg Config) (*Profiler, error) {
	p := &Profiler{cfg: cfg}
	if cfg.CPU == "" {
		return p, nil
	}

	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	if cpuActive {
		return nil, ErrCPUProfileActive
	}
	f, err := os.Create(cfg.CPU)
	if err != nil {
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	p.cpuFile = f
	cpuActive = true
	pkg.LogDebug(pkg.ComponentCLI, "cpu profile started", "path", cfg.CPU)
	return p, nil
}

// Stop ends CPU sampling and writes the heap snapshot. Calls after the
// first return the first result.
func (p *Profiler) Stop() error {
	p.once.Do(func() {
		if p.cpuFile != nil {
			cpuMutex.Lock()
			pprof.StopCPUProfile()
			cpuActive = false
			cpuMutex.Unlock()
			p.err = p.cpuFile.Close()
		}
		if p.cfg.Heap != "" {
			if err := writeHeap(p.cfg.Heap); err != nil && p.err == nil {
				p.err = err
			}
		}
	})
	return p.err
}

// IsCPUActive reports whether a CPU profile is being recorded.
func IsCPUActive() bool {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	return cpuActive
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.Lookup("heap").WriteTo(f, 0); err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	pkg.LogDebug(pkg.ComponentCLI, "heap profile written", "path", path)
	return nil
}
