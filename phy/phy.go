package phy

import (
	"context"
	"fmt"
)

// Edge is a clock transition.
type Edge uint8

// Clock edges.
const (
	Rising  Edge = iota // Low to high
	Falling             // High to low
)

// String returns the edge name.
func (e Edge) String() string {
	switch e {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return fmt.Sprintf("Edge(%d)", e)
	}
}

// Pin identifies a transceiver interface signal. The Rx pins carry traffic
// from the host model to the DUT; the Tx pins carry traffic from the DUT.
type Pin uint8

// Transceiver pins.
const (
	RxActive Pin = iota // Driven: packet in progress toward the DUT
	RxValid             // Driven: RxData holds a byte this clock
	RxData              // Driven: 8-bit data toward the DUT
	RxError             // Driven: receive error
	TxValid             // Sampled: the DUT is transmitting
	TxReady             // Driven: the DUT may present its next byte
	TxData              // Sampled: 8-bit data from the DUT

	NumPins
)

var pinNames = [NumPins]string{
	RxActive: "RXA",
	RxValid:  "RXDV",
	RxData:   "RXD",
	RxError:  "RXER",
	TxValid:  "TXV",
	TxReady:  "TXRDY",
	TxData:   "TXD",
}

// String returns the conventional short pin name.
func (p Pin) String() string {
	if p < NumPins {
		return pinNames[p]
	}
	return fmt.Sprintf("Pin(%d)", p)
}

// Transceiver is the capability set a simulator adapter exposes to the
// driver. Implementations own the pin state; the driver only samples and
// drives through this interface.
//
// WaitForEdge and WaitForClocks block until the transition(s) occur and
// return an error only when the adapter fails or ctx is done. One clock is
// a rising edge followed by a falling edge.
type Transceiver interface {
	WaitForEdge(ctx context.Context, edge Edge) error
	Sample(pin Pin) uint32
	Drive(pin Pin, value uint32)
	WaitForClocks(ctx context.Context, n int) error
}
