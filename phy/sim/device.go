package sim

import (
	"sync"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/pkg"
)

// DefaultTurnaround is the number of clocks between the end of a host
// packet and the start of the DUT's reply.
const DefaultTurnaround = 4

// Device is a minimal scripted DUT. It answers IN tokens from queued
// payloads, accepts OUT data, and ignores anything it could not have
// received cleanly: packets with RxError, malformed PIDs, bad CRCs, or
// tokens for another address.
type Device struct {
	Address uint8

	endpoints map[uint8]*Endpoint
	pending   *pendingToken
	lastIn    *Endpoint
	frame     uint16
	ignored   int
	mutex     sync.Mutex
}

type pendingToken struct {
	ep  *Endpoint
	pid packet.PID
}

// NewDevice creates a DUT listening on address.
func NewDevice(address uint8) *Device {
	return &Device{
		Address:   address & packet.MaxAddress,
		endpoints: make(map[uint8]*Endpoint),
	}
}

// ConfigureEndpoint adds or replaces endpoint number ep.
func (d *Device) ConfigureEndpoint(ep uint8, typ EndpointType) *Endpoint {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	e := &Endpoint{Number: ep & packet.MaxEndpoint, Type: typ}
	d.endpoints[e.Number] = e
	pkg.LogDebug(pkg.ComponentSim, "endpoint configured", "ep", e.Number, "type", typ)
	return e
}

// Endpoint returns endpoint number ep, or nil.
func (d *Device) Endpoint(ep uint8) *Endpoint {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.endpoints[ep&packet.MaxEndpoint]
}

// QueueIn appends payload to the IN queue of endpoint ep.
func (d *Device) QueueIn(ep uint8, payload []byte) {
	if e := d.Endpoint(ep); e != nil {
		e.Queue(payload)
	}
}

// Frame returns the last start-of-frame number received.
func (d *Device) Frame() uint16 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.frame
}

// Ignored returns the number of packets dropped as corrupt or misaddressed.
func (d *Device) Ignored() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.ignored
}

// Respond implements [Responder].
func (d *Device) Respond(c Capture) []byte {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if c.RxError {
		return d.ignore("receive error", c.Data)
	}
	l, err := packet.Decode(c.Data)
	if err != nil {
		return d.ignore(err.Error(), c.Data)
	}
	if !l.PIDValid() {
		return d.ignore("PID check failed", c.Data)
	}
	if !l.CRCValid() {
		return d.ignore("CRC check failed", c.Data)
	}

	switch l.Kind {
	case packet.KindToken:
		return d.token(l)
	case packet.KindData:
		return d.data(l)
	default:
		return d.handshake(l)
	}
}

func (d *Device) ignore(reason string, data []byte) []byte {
	d.ignored++
	d.pending = nil
	d.lastIn = nil
	pkg.LogDebug(pkg.ComponentSim, "packet ignored", "reason", reason, "bytes", len(data))
	return nil
}

func (d *Device) token(l *packet.Layer) []byte {
	d.pending = nil
	d.lastIn = nil

	pid := l.PID.Canonical()
	if pid == packet.PIDSOF {
		d.frame = uint16(l.Endpoint)<<7 | uint16(l.Address)
		pkg.LogDebug(pkg.ComponentSim, "start of frame", "frame", d.frame)
		return nil
	}
	if l.Address != d.Address {
		return d.ignore("other address", l.Contents)
	}

	e := d.endpoints[l.Endpoint]
	if e == nil {
		return handshake(packet.PIDStall)
	}

	switch pid {
	case packet.PIDIn:
		if e.IsStalled() {
			return handshake(packet.PIDStall)
		}
		payload, toggle, ok := e.nextIn()
		if !ok {
			if e.IsIsochronous() {
				return dataBytes(payload, false)
			}
			return handshake(packet.PIDNak)
		}
		if !e.IsIsochronous() {
			d.lastIn = e
		}
		return dataBytes(payload, toggle)

	case packet.PIDOut, packet.PIDSetup:
		d.pending = &pendingToken{ep: e, pid: pid}
	case packet.PIDPing:
		if e.IsStalled() {
			return handshake(packet.PIDStall)
		}
		return handshake(packet.PIDAck)
	}
	return nil
}

func (d *Device) data(l *packet.Layer) []byte {
	p := d.pending
	d.pending = nil
	if p == nil {
		return d.ignore("data without token", l.Contents)
	}
	if p.ep.IsStalled() {
		return handshake(packet.PIDStall)
	}

	toggle := l.PID.Canonical() == packet.PIDData1
	if p.pid == packet.PIDSetup {
		p.ep.ResetDataToggle()
		toggle = false
	}
	if !p.ep.accept(l.Payload, toggle) {
		pkg.LogDebug(pkg.ComponentSim, "duplicate data dropped", "ep", p.ep.Number)
	}
	if p.ep.IsIsochronous() {
		return nil
	}
	return handshake(packet.PIDAck)
}

func (d *Device) handshake(l *packet.Layer) []byte {
	e := d.lastIn
	d.lastIn = nil
	if e == nil {
		return nil
	}
	if l.PID.Canonical() == packet.PIDAck && e.ack() {
		pkg.LogDebug(pkg.ComponentSim, "IN acknowledged", "ep", e.Number)
	}
	return nil
}

func handshake(pid packet.PID) []byte {
	return []byte{pid.Encode()}
}

func dataBytes(payload []byte, toggle bool) []byte {
	pid := packet.PIDData0
	if toggle {
		pid = packet.PIDData1
	}
	return packet.NewRxData(packet.DataConfig{PID: pid, Payload: payload}).Bytes(packet.FormWire)
}
