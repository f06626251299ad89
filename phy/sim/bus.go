package sim

import (
	"context"
	"sync"

	"github.com/ardnew/utmisim/phy"
	"github.com/ardnew/utmisim/pkg"
)

// Capture is a packet the host side drove toward the DUT, delimited by
// RxActive.
type Capture struct {
	Data    []byte
	RxError bool // RxError was seen during the packet

	// Clock is the rising edge count at which RxActive fell.
	Clock int
}

// Responder answers packets captured on the bus. A nil reply means the DUT
// stays silent.
type Responder interface {
	Respond(c Capture) []byte
}

type txJob struct {
	data []byte
	due  int
	idx  int
}

// Bus is a deterministic in-memory transceiver. The clock only advances
// while the driver waits, so every run is reproducible.
//
// Bytes driven toward the DUT are latched on rising edges that see RxActive
// and RxValid high. DUT transmissions start on a falling edge once due and
// advance on each rising edge that sees TxReady high.
type Bus struct {
	mutex sync.Mutex

	level   uint32
	edges   int
	rising  int
	falling int

	risingWaits  int
	fallingWaits int
	clockWaits   int

	pins [phy.NumPins]uint32

	active   bool
	rxBuf    []byte
	rxErr    bool
	captures []Capture

	queue []*txJob
	cur   *txJob

	responder  Responder
	turnaround int
}

// NewBus creates an idle bus with the clock low.
func NewBus() *Bus {
	return &Bus{}
}

// SetResponder installs r to answer every captured packet after turnaround
// clocks.
func (b *Bus) SetResponder(r Responder, turnaround int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.responder = r
	b.turnaround = turnaround
}

// Transmit schedules the DUT to send data starting delay clocks from now.
// Transmissions queue behind any in progress.
func (b *Bus) Transmit(data []byte, delay int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.schedule(data, delay)
}

func (b *Bus) schedule(data []byte, delay int) {
	if len(data) == 0 {
		return
	}
	b.queue = append(b.queue, &txJob{
		data: append([]byte(nil), data...),
		due:  b.rising + delay,
	})
}

// WaitForEdge advances the clock to the next edge of the given kind.
func (b *Bus) WaitForEdge(ctx context.Context, edge phy.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if edge == phy.Rising {
		b.risingWaits++
		if b.level == 1 {
			b.fall()
		}
		b.rise()
		return nil
	}
	b.fallingWaits++
	if b.level == 0 {
		b.rise()
	}
	b.fall()
	return nil
}

// WaitForClocks advances the clock by n full cycles.
func (b *Bus) WaitForClocks(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.mutex.Lock()
		if b.level == 1 {
			b.fall()
		}
		b.rise()
		b.fall()
		b.clockWaits++
		b.mutex.Unlock()
	}
	return nil
}

// Sample returns the current value of pin.
func (b *Bus) Sample(pin phy.Pin) uint32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.pins[pin]
}

// Drive sets pin to value. RxData is truncated to 8 bits and control pins
// to 1 bit. A capture opens and closes as RxActive is driven, so the last
// packet of a session reaches the responder without a trailing clock.
func (b *Bus) Drive(pin phy.Pin, value uint32) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if pin == phy.RxData || pin == phy.TxData {
		value &= 0xFF
	} else {
		value &= 1
	}
	b.pins[pin] = value
	if pin == phy.RxActive {
		b.checkActive()
	}
}

func (b *Bus) rise() {
	b.level = 1
	b.edges++
	b.rising++
	b.checkActive()

	if b.pins[phy.RxActive] == 1 {
		if b.pins[phy.RxError] == 1 {
			b.rxErr = true
		}
		if b.pins[phy.RxValid] == 1 {
			b.rxBuf = append(b.rxBuf, byte(b.pins[phy.RxData]))
		}
	}

	if b.cur != nil && b.pins[phy.TxReady] == 1 {
		b.cur.idx++
		if b.cur.idx >= len(b.cur.data) {
			b.pins[phy.TxValid] = 0
			b.cur = nil
		} else {
			b.pins[phy.TxData] = uint32(b.cur.data[b.cur.idx])
		}
	}
}

func (b *Bus) fall() {
	b.level = 0
	b.edges++
	b.falling++
	b.checkActive()

	if b.cur == nil && len(b.queue) > 0 && b.rising >= b.queue[0].due {
		b.cur = b.queue[0]
		b.queue = b.queue[1:]
		b.pins[phy.TxValid] = 1
		b.pins[phy.TxData] = uint32(b.cur.data[0])
		pkg.LogDebug(pkg.ComponentSim, "device transmit", "bytes", len(b.cur.data), "clock", b.rising)
	}
}

// checkActive tracks RxActive and closes a capture when it falls.
func (b *Bus) checkActive() {
	on := b.pins[phy.RxActive] == 1
	switch {
	case on && !b.active:
		b.active = true
		b.rxBuf = nil
		b.rxErr = false
	case !on && b.active:
		b.active = false
		c := Capture{Data: b.rxBuf, RxError: b.rxErr, Clock: b.rising}
		b.captures = append(b.captures, c)
		b.rxBuf = nil
		b.rxErr = false
		pkg.LogDebug(pkg.ComponentSim, "host packet captured",
			"bytes", len(c.Data), "rxerror", c.RxError, "clock", c.Clock)
		if b.responder != nil {
			b.schedule(b.responder.Respond(c), b.turnaround)
		}
	}
}

// Captures returns the packets driven toward the DUT so far.
func (b *Bus) Captures() []Capture {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]Capture(nil), b.captures...)
}

// Counters reports clock activity.
type Counters struct {
	Edges        int // All transitions
	Rising       int // Rising transitions
	Falling      int // Falling transitions
	RisingWaits  int // WaitForEdge(Rising) calls
	FallingWaits int // WaitForEdge(Falling) calls
	ClockWaits   int // Cycles passed through WaitForClocks
}

// Counters returns a snapshot of the clock counters.
func (b *Bus) Counters() Counters {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return Counters{
		Edges:        b.edges,
		Rising:       b.rising,
		Falling:      b.falling,
		RisingWaits:  b.risingWaits,
		FallingWaits: b.fallingWaits,
		ClockWaits:   b.clockWaits,
	}
}

// Idle reports whether the DUT has nothing queued or in flight.
func (b *Bus) Idle() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.cur == nil && len(b.queue) == 0
}
