package phy

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/timing"
)

// MaxCaptureBytes bounds a single capture: a 1023-byte isochronous payload
// plus PID, CRC16 and one byte of slack.
const MaxCaptureBytes = 1027

// Driver drives host-to-DUT packets onto a [Transceiver] and samples
// DUT-to-host packets from it, one packet at a time.
type Driver struct {
	xcvr  Transceiver
	speed timing.Speed
	table timing.Table
	mutex sync.Mutex
}

// NewDriver creates a driver for xcvr at the given bus speed.
func NewDriver(xcvr Transceiver, speed timing.Speed, table timing.Table) *Driver {
	return &Driver{
		xcvr:  xcvr,
		speed: speed,
		table: table,
	}
}

// Speed returns the bus speed.
func (d *Driver) Speed() timing.Speed {
	return d.speed
}

// Table returns the default timing table.
func (d *Driver) Table() timing.Table {
	return d.table
}

// Do transmits p if it travels toward the DUT and receives it otherwise.
func (d *Driver) Do(ctx context.Context, p *packet.Packet) (*Result, error) {
	if p.Direction == packet.Tx {
		return d.Transmit(ctx, p)
	}
	return d.Receive(ctx, p)
}

// clock waits for one rising and one falling edge.
func (d *Driver) clock(ctx context.Context, res *Result) error {
	if err := d.xcvr.WaitForEdge(ctx, Rising); err != nil {
		return err
	}
	res.Edges++
	return d.xcvr.WaitForEdge(ctx, Falling)
}

func (d *Driver) checkContention(res *Result, index int) {
	if d.xcvr.Sample(TxValid) == 0 {
		return
	}
	f := res.fault(pkg.FaultContention, index, "TxValid asserted while driving")
	pkg.LogWarn(pkg.ComponentPHY, "unexpected packet from device",
		"pid", res.Packet.PIDName(),
		"byte", index,
		"error", f)
}

// Transmit drives p toward the DUT. Contention is recorded in the result;
// the returned error is non-nil only when the transceiver fails.
func (d *Driver) Transmit(ctx context.Context, p *packet.Packet) (*Result, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	prof := p.TimingFrom(d.table, d.speed)
	wire := p.Bytes(packet.FormWire)
	res := &Result{Packet: p, State: StateIdle}

	d.checkContention(res, -1)

	if err := d.xcvr.WaitForClocks(ctx, prof.InterEventDelay); err != nil {
		return res, err
	}

	pkg.LogDebug(pkg.ComponentPHY, "packet",
		"direction", p.Direction,
		"pid", p.PIDName(),
		"raw", fmt.Sprintf("0x%02X", wire[0]))

	d.xcvr.Drive(RxActive, 1)
	for i := 0; i < prof.StartDelay; i++ {
		if err := d.clock(ctx, res); err != nil {
			return res, err
		}
	}

	for i, b := range wire {
		d.checkContention(res, i)

		if err := d.clock(ctx, res); err != nil {
			return res, err
		}
		d.xcvr.Drive(RxValid, 1)
		d.xcvr.Drive(RxData, uint32(b))

		if prof.ErrorAt != 0 && prof.ErrorAt == i {
			d.xcvr.Drive(RxError, 1)
			pkg.LogDebug(pkg.ComponentPHY, "RxError asserted", "byte", i)
		}

		for k := 0; k < prof.StrobeHold; k++ {
			if err := d.clock(ctx, res); err != nil {
				return res, err
			}
			d.xcvr.Drive(RxValid, 0)
		}
	}

	// last byte
	if err := d.clock(ctx, res); err != nil {
		return res, err
	}
	d.xcvr.Drive(RxValid, 0)
	d.xcvr.Drive(RxError, 0)

	for i := 0; i < prof.EndDelay; i++ {
		if err := d.clock(ctx, res); err != nil {
			return res, err
		}
	}
	d.xcvr.Drive(RxActive, 0)

	res.State = StateComplete
	return res, nil
}

// Receive samples the packet the DUT sends and compares it with p. Timeouts
// and mismatches are recorded in the result; the returned error is non-nil
// only when the transceiver fails.
func (d *Driver) Receive(ctx context.Context, p *packet.Packet) (*Result, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	prof := p.TimingFrom(d.table, d.speed)
	m := &rxMachine{
		d:       d,
		res:     &Result{Packet: p, State: StateIdle},
		timeout: prof.Timeout,
	}

	if prof.InterEventDelay > 0 {
		if err := d.xcvr.WaitForClocks(ctx, prof.InterEventDelay); err != nil {
			return m.res, err
		}
	}

	if err := m.run(ctx); err != nil {
		return m.res, err
	}
	return m.res, nil
}

// rxMachine samples one DUT-to-host packet.
type rxMachine struct {
	d       *Driver
	res     *Result
	timeout int
}

func (m *rxMachine) run(ctx context.Context) error {
	m.res.State = StateAwaitingStrobe
	for {
		var err error
		switch m.res.State {
		case StateAwaitingStrobe:
			err = m.awaitStrobe(ctx)
		case StateInPacket:
			err = m.capture(ctx)
		default:
			return nil
		}
		if err != nil {
			m.d.xcvr.Drive(TxReady, 0)
			return err
		}
	}
}

func (m *rxMachine) awaitStrobe(ctx context.Context) error {
	for m.timeout > 0 {
		if err := m.d.clock(ctx, m.res); err != nil {
			return err
		}
		m.timeout--
		if m.d.xcvr.Sample(TxValid) != 0 {
			pkg.LogDebug(pkg.ComponentPHY, "packet", "direction", packet.Rx)
			m.res.State = StateInPacket
			return nil
		}
	}

	m.res.State = StateTimedOut
	f := m.res.fault(pkg.FaultTimeout, -1, "TxValid never asserted")
	pkg.LogWarn(pkg.ComponentPHY, "timed out waiting for packet",
		"expected", m.res.Packet.PIDName(),
		"error", f)
	return nil
}

func (m *rxMachine) capture(ctx context.Context) error {
	for {
		m.d.xcvr.Drive(TxReady, 1)
		b := byte(m.d.xcvr.Sample(TxData))
		m.res.Captured = append(m.res.Captured, b)
		pkg.LogDebug(pkg.ComponentPHY, "RX byte", "value", fmt.Sprintf("0x%02X", b))

		if err := m.d.clock(ctx, m.res); err != nil {
			return err
		}
		if m.d.xcvr.Sample(TxValid) == 0 {
			break
		}
		if len(m.res.Captured) >= MaxCaptureBytes {
			f := m.res.fault(pkg.FaultOverrun, len(m.res.Captured), "TxValid still asserted")
			pkg.LogError(pkg.ComponentPHY, "capture overrun", "error", f)
			break
		}
	}
	m.d.xcvr.Drive(TxReady, 0)

	m.compare()
	m.res.State = StateComplete
	return nil
}

func (m *rxMachine) compare() {
	expected := m.res.Packet.Bytes(packet.FormWire)
	actual := m.res.Captured

	if l, err := packet.Decode(actual); err == nil {
		pkg.LogDebug(pkg.ComponentPHY, "decoded capture", "packet", l.String())
	}

	var f *Fault
	switch {
	case len(expected) != len(actual):
		f = m.res.fault(pkg.FaultLength, -1,
			fmt.Sprintf("expecting %d bytes, received %d", len(expected), len(actual)))
	case !bytes.Equal(expected, actual):
		f = m.res.fault(pkg.FaultContent, firstDiff(expected, actual), "captured bytes differ")
	default:
		return
	}
	f.Expected = expected
	f.Actual = append([]byte(nil), actual...)
	pkg.LogError(pkg.ComponentPHY, "Rx packet error", "error", f)
}

func firstDiff(a, b []byte) int {
	for i := range a {
		if i >= len(b) || a[i] != b[i] {
			return i
		}
	}
	return len(a)
}
