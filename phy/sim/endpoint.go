package sim

import (
	"fmt"
	"sync"

	"github.com/ardnew/utmisim/pkg"
)

// EndpointType is the transfer type of a DUT endpoint (USB 2.0 Spec
// Table 9-13).
type EndpointType uint8

// Endpoint transfer types modelled by the DUT.
const (
	EndpointTypeIsochronous EndpointType = 0x01 // Isochronous transfer
	EndpointTypeBulk        EndpointType = 0x02 // Bulk transfer
)

// String returns the transfer type name.
func (t EndpointType) String() string {
	switch t {
	case EndpointTypeIsochronous:
		return "ISO"
	case EndpointTypeBulk:
		return "BULK"
	default:
		return fmt.Sprintf("EndpointType(%d)", t)
	}
}

// Endpoint is one endpoint number of the DUT, holding both directions.
type Endpoint struct {
	Number uint8
	Type   EndpointType

	stalled   bool
	inToggle  bool // DATA0/DATA1 of the next IN packet
	outToggle bool // DATA0/DATA1 expected on the next OUT packet

	inQueue  [][]byte
	inFlight []byte // sent, waiting for ACK
	received [][]byte
	mutex    sync.Mutex
}

// IsIsochronous returns true if this is an isochronous endpoint.
func (e *Endpoint) IsIsochronous() bool {
	return e.Type == EndpointTypeIsochronous
}

// SetStall sets or clears the stall condition.
func (e *Endpoint) SetStall(stalled bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.stalled = stalled
	pkg.LogDebug(pkg.ComponentSim, "endpoint stall", "ep", e.Number, "stalled", stalled)
}

// IsStalled returns true if the endpoint is stalled.
func (e *Endpoint) IsStalled() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.stalled
}

// DataToggle returns the toggle of the next IN packet and of the next
// expected OUT packet.
func (e *Endpoint) DataToggle() (in, out bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.inToggle, e.outToggle
}

// ResetDataToggle resets both directions to DATA0.
func (e *Endpoint) ResetDataToggle() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.inToggle = false
	e.outToggle = false
}

// Queue appends payload to the IN queue.
func (e *Endpoint) Queue(payload []byte) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.inQueue = append(e.inQueue, append([]byte{}, payload...))
}

// Pending returns the number of IN payloads not yet acknowledged.
func (e *Endpoint) Pending() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	n := len(e.inQueue)
	if e.inFlight != nil {
		n++
	}
	return n
}

// Received returns the OUT payloads accepted so far.
func (e *Endpoint) Received() [][]byte {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	out := make([][]byte, len(e.received))
	copy(out, e.received)
	return out
}

// nextIn returns the payload and toggle for an IN token. A payload still
// waiting for its ACK is sent again with the same toggle.
func (e *Endpoint) nextIn() (payload []byte, toggle, ok bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.inFlight != nil {
		return e.inFlight, e.inToggle, true
	}
	if len(e.inQueue) == 0 {
		return nil, false, false
	}
	payload = e.inQueue[0]
	e.inQueue = e.inQueue[1:]
	if e.Type == EndpointTypeIsochronous {
		return payload, false, true
	}
	e.inFlight = payload
	return payload, e.inToggle, true
}

// ack completes the IN payload in flight.
func (e *Endpoint) ack() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.inFlight == nil {
		return false
	}
	e.inFlight = nil
	e.inToggle = !e.inToggle
	return true
}

// accept stores an OUT payload. It returns false for a bulk retransmission
// whose toggle was already seen; the payload is then dropped but still
// acknowledged.
func (e *Endpoint) accept(payload []byte, toggle bool) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.Type == EndpointTypeBulk {
		if toggle != e.outToggle {
			return false
		}
		e.outToggle = !e.outToggle
	}
	e.received = append(e.received, append([]byte{}, payload...))
	return true
}
