// Package pkg provides shared utilities for the utmisim packet simulator.
//
// This package contains common functionality used across the packet model,
// the transceiver driver and the session layer, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Size-rotated log files
//   - Sentinel error types for protocol faults
//   - The [FaultKind] taxonomy recorded against driven and sampled packets
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentPHY, "packet driven", "pid", "OUT")
//
// Long verification runs can log to a rotated file:
//
//	pkg.SetOutput(pkg.NewRotatingFile(pkg.RotationConfig{
//	    Filename:  "utmisim.log",
//	    MaxSizeMB: 25,
//	}))
//
// # Errors
//
// Faults are values, not aborts. Each [FaultKind] maps to a sentinel:
//
//	if errors.Is(fault, pkg.ErrTimeout) {
//	    // DUT never answered
//	}
package pkg
