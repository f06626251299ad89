// Package prof captures pprof profiles around a simulator run.
//
// A [Profiler] streams CPU samples while it is active and writes a heap
// snapshot when stopped:
//
//	p, err := prof.Start(prof.Config{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//		return err
//	}
//	defer p.Stop()
//
// Inspect the output with go tool pprof.
package prof
