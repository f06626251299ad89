package phy

import (
	"fmt"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/pkg"
)

// State is the progress of a packet through the driver. Transmitted packets
// move straight to StateComplete; received packets follow
// Idle → AwaitingStrobe → InPacket → Complete, or Idle → TimedOut.
type State uint8

// Driver states.
const (
	StateIdle State = iota
	StateAwaitingStrobe
	StateInPacket
	StateComplete
	StateTimedOut
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingStrobe:
		return "AwaitingStrobe"
	case StateInPacket:
		return "InPacket"
	case StateComplete:
		return "Complete"
	case StateTimedOut:
		return "TimedOut"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Fault is a protocol problem observed while driving or sampling a packet.
type Fault struct {
	Kind pkg.FaultKind

	// Index is the wire byte at which the fault was seen, or -1 when the
	// fault is not tied to a byte.
	Index int

	Detail   string
	Expected []byte
	Actual   []byte
}

// Error describes the fault.
func (f *Fault) Error() string {
	switch f.Kind {
	case pkg.FaultLength, pkg.FaultContent:
		return fmt.Sprintf("%s: %s: expected % X, received % X", f.Kind, f.Detail, f.Expected, f.Actual)
	}
	if f.Index >= 0 {
		return fmt.Sprintf("%s at byte %d: %s", f.Kind, f.Index, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Unwrap returns the sentinel error for the fault kind.
func (f *Fault) Unwrap() error {
	return f.Kind.Error()
}

// Result records what happened to one packet.
type Result struct {
	Packet *packet.Packet
	State  State

	// Captured holds the bytes sampled from the DUT for received packets.
	Captured []byte

	Faults []*Fault

	// Edges counts the rising edges the driver waited for, excluding the
	// inter-event delay.
	Edges int
}

// Passed reports whether the packet completed without faults.
func (r *Result) Passed() bool {
	return r.State == StateComplete && len(r.Faults) == 0
}

func (r *Result) fault(kind pkg.FaultKind, index int, detail string) *Fault {
	f := &Fault{Kind: kind, Index: index, Detail: detail}
	r.Faults = append(r.Faults, f)
	return f
}
