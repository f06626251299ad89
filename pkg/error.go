package pkg

import "errors"

// Protocol faults observed on the transceiver interface.
var (
	// ErrTimeout indicates the DUT never asserted its transmit strobe.
	ErrTimeout = errors.New("timed out waiting for packet")

	// ErrContention indicates the DUT transmitted while the host was driving.
	ErrContention = errors.New("unexpected packet from device")

	// ErrLength indicates a captured packet had the wrong number of bytes.
	ErrLength = errors.New("packet length mismatch")

	// ErrContent indicates a captured packet differed from the expected bytes.
	ErrContent = errors.New("packet content mismatch")

	// ErrOverrun indicates the DUT kept its strobe asserted past the largest
	// possible packet.
	ErrOverrun = errors.New("packet capture overrun")

	// ErrProtocol indicates an unclassified protocol fault.
	ErrProtocol = errors.New("protocol error")
)

// Construction and I/O errors.
var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrPacketTooShort indicates a captured byte sequence cannot hold the
	// packet kind its PID announces.
	ErrPacketTooShort = errors.New("packet too short")

	// ErrUnknownPID indicates a PID byte outside the protocol table.
	ErrUnknownPID = errors.New("unknown PID")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrNotFound indicates a stored record does not exist.
	ErrNotFound = errors.New("not found")
)

// FaultKind classifies a fault recorded while driving or sampling a packet.
type FaultKind int

// Fault kinds.
const (
	FaultNone       FaultKind = iota // No fault
	FaultTimeout                     // Receive timeout
	FaultContention                  // DUT transmitted during a host packet
	FaultLength                      // Captured length differs from expected
	FaultContent                     // Captured bytes differ from expected
	FaultOverrun                     // Capture exceeded the maximum packet size
)

// String returns a string representation of the fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultTimeout:
		return "timeout"
	case FaultContention:
		return "contention"
	case FaultLength:
		return "length"
	case FaultContent:
		return "content"
	case FaultOverrun:
		return "overrun"
	default:
		return "unknown"
	}
}

// Error returns the sentinel error corresponding to the fault kind.
func (k FaultKind) Error() error {
	switch k {
	case FaultNone:
		return nil
	case FaultTimeout:
		return ErrTimeout
	case FaultContention:
		return ErrContention
	case FaultLength:
		return ErrLength
	case FaultContent:
		return ErrContent
	case FaultOverrun:
		return ErrOverrun
	default:
		return ErrProtocol
	}
}
