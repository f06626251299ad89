// Package timing defines the clock-cycle timing contract of the parallel
// transceiver interface.
//
// Every value is expressed in bus clocks (one rising plus one falling edge).
// A [Table] holds the defaults for each direction and bus speed; a packet may
// carry an [Override] that replaces any field to build fault-injection
// vectors, such as a zero inter-event delay for back-to-back packets or a
// receive timeout too short for the DUT to answer.
package timing

import (
	"fmt"
	"strings"
)

// Speed is the negotiated bus speed.
type Speed uint8

// Bus speeds.
const (
	SpeedFull Speed = iota // Full Speed (12 Mbit/s)
	SpeedHigh              // High Speed (480 Mbit/s)
)

// String returns the short speed name used in configuration files.
func (s Speed) String() string {
	switch s {
	case SpeedFull:
		return "FS"
	case SpeedHigh:
		return "HS"
	default:
		return fmt.Sprintf("Speed(%d)", s)
	}
}

// ParseSpeed accepts FS/HS or full/high in any case.
func ParseSpeed(s string) (Speed, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fs", "full":
		return SpeedFull, nil
	case "hs", "high":
		return SpeedHigh, nil
	default:
		return SpeedFull, fmt.Errorf("unknown bus speed %q", s)
	}
}

// Direction selects the default column of a [Table].
type Direction uint8

// Directions, named from the host's point of view.
const (
	Tx Direction = iota // Host drives the DUT
	Rx                  // DUT drives the host
)

// String returns the direction in the form printed by the verification log.
func (d Direction) String() string {
	switch d {
	case Tx:
		return "HOST -> DEVICE"
	case Rx:
		return "DEVICE -> HOST"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// Profile is the resolved timing of a single packet.
type Profile struct {
	// InterEventDelay is the number of clocks waited before the packet starts.
	InterEventDelay int

	// Timeout is the number of clocks a receive waits for the DUT strobe.
	Timeout int

	// StartDelay is the number of clocks between RxActive rising and the
	// first byte.
	StartDelay int

	// EndDelay is the number of clocks between the last byte and RxActive
	// falling.
	EndDelay int

	// StrobeHold is the number of additional clocks each byte occupies after
	// its RxValid clock.
	StrobeHold int

	// ErrorAt is the wire byte index during which RxError is asserted.
	// Zero disables error injection.
	ErrorAt int
}

// Override replaces individual [Profile] fields. Nil fields keep the
// table default.
type Override struct {
	InterEventDelay *int
	Timeout         *int
	StartDelay      *int
	EndDelay        *int
	StrobeHold      *int
	ErrorAt         *int
}

// Clocks returns a pointer to n for use in an [Override].
func Clocks(n int) *int {
	return &n
}

// IsZero reports whether the override changes nothing.
func (o Override) IsZero() bool {
	return o == Override{}
}

// Default timing values in bus clocks.
const (
	DefaultTxInterEventDelay = 4
	DefaultRxTimeout         = 14
	DefaultStartDelay        = 5
	DefaultEndDelay          = 2
	DefaultStrobeHoldFS      = 39
	DefaultStrobeHoldHS      = 0
)

// Table holds the default timing for each direction and speed.
type Table struct {
	TxInterEventDelay int
	RxInterEventDelay int
	RxTimeout         int
	StartDelay        int
	EndDelay          int
	StrobeHoldFS      int
	StrobeHoldHS      int
}

// DefaultTable returns the transceiver timing measured against RTL
// simulation.
func DefaultTable() Table {
	return Table{
		TxInterEventDelay: DefaultTxInterEventDelay,
		RxTimeout:         DefaultRxTimeout,
		StartDelay:        DefaultStartDelay,
		EndDelay:          DefaultEndDelay,
		StrobeHoldFS:      DefaultStrobeHoldFS,
		StrobeHoldHS:      DefaultStrobeHoldHS,
	}
}

// StrobeHold returns the per-byte strobe hold count for speed.
func (t Table) StrobeHold(speed Speed) int {
	if speed == SpeedHigh {
		return t.StrobeHoldHS
	}
	return t.StrobeHoldFS
}

// Profile resolves the timing of a packet travelling in dir at speed,
// applying ov on top of the table defaults.
func (t Table) Profile(dir Direction, speed Speed, ov Override) Profile {
	p := Profile{
		StartDelay: t.StartDelay,
		EndDelay:   t.EndDelay,
		StrobeHold: t.StrobeHold(speed),
	}
	switch dir {
	case Tx:
		p.InterEventDelay = t.TxInterEventDelay
	case Rx:
		p.InterEventDelay = t.RxInterEventDelay
		p.Timeout = t.RxTimeout
	}

	apply := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&p.InterEventDelay, ov.InterEventDelay)
	apply(&p.Timeout, ov.Timeout)
	apply(&p.StartDelay, ov.StartDelay)
	apply(&p.EndDelay, ov.EndDelay)
	apply(&p.StrobeHold, ov.StrobeHold)
	apply(&p.ErrorAt, ov.ErrorAt)
	return p
}

// TxClocks returns the number of bus clocks spent driving n wire bytes with
// profile p, excluding the inter-event delay.
func (p Profile) TxClocks(n int) int {
	return p.StartDelay + n*(1+p.StrobeHold) + 1 + p.EndDelay
}
