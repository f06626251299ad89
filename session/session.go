package session

import (
	"context"
	"fmt"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/phy"
	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/timing"
)

// Session is an ordered list of packets exchanged with one DUT. Packets run
// strictly one after another; a fault in one packet never stops the rest.
type Session struct {
	Speed   timing.Speed
	Address uint8

	packets []*packet.Packet

	// Per-endpoint payload counters and data toggles, indexed by endpoint.
	payloadIn  [packet.MaxEndpoint + 1]byte
	payloadOut [packet.MaxEndpoint + 1]byte
	toggleIn   [packet.MaxEndpoint + 1]bool
	toggleOut  [packet.MaxEndpoint + 1]bool
}

// New creates an empty session for the DUT at address.
func New(speed timing.Speed, address uint8) *Session {
	return &Session{
		Speed:   speed,
		Address: address & packet.MaxAddress,
	}
}

// Add appends packets to the session.
func (s *Session) Add(p ...*packet.Packet) {
	s.packets = append(s.packets, p...)
}

// Packets returns the packets in run order.
func (s *Session) Packets() []*packet.Packet {
	return append([]*packet.Packet(nil), s.packets...)
}

// Len returns the number of packets.
func (s *Session) Len() int {
	return len(s.packets)
}

// PayloadIn returns the next n bytes of the running IN payload of ep. With
// resend the counter is left where it was, so the following call returns
// the same bytes.
func (s *Session) PayloadIn(ep uint8, n int, resend bool) []byte {
	return nextPayload(&s.payloadIn[ep&packet.MaxEndpoint], n, resend)
}

// PayloadOut is [Session.PayloadIn] for the OUT direction.
func (s *Session) PayloadOut(ep uint8, n int, resend bool) []byte {
	return nextPayload(&s.payloadOut[ep&packet.MaxEndpoint], n, resend)
}

func nextPayload(counter *byte, n int, resend bool) []byte {
	p := packet.CounterPayload(*counter, n)
	if !resend {
		*counter += byte(n)
	}
	return p
}

// Toggle returns the data PID expected next on ep in direction dir.
func (s *Session) Toggle(ep uint8, dir packet.Direction) packet.PID {
	t := s.toggleOut[ep&packet.MaxEndpoint]
	if dir == packet.Rx {
		t = s.toggleIn[ep&packet.MaxEndpoint]
	}
	if t {
		return packet.PIDData1
	}
	return packet.PIDData0
}

func (s *Session) flip(ep uint8, dir packet.Direction) {
	if dir == packet.Rx {
		s.toggleIn[ep&packet.MaxEndpoint] = !s.toggleIn[ep&packet.MaxEndpoint]
		return
	}
	s.toggleOut[ep&packet.MaxEndpoint] = !s.toggleOut[ep&packet.MaxEndpoint]
}

// Run drives every packet through drv in order. Protocol faults are
// collected in the report; the returned error is non-nil only when the
// transceiver fails, in which case the report holds the packets completed
// so far.
func (s *Session) Run(ctx context.Context, drv *phy.Driver) (*Report, error) {
	rep := &Report{Speed: s.Speed, Address: s.Address}

	pkg.LogInfo(pkg.ComponentSession, "session started",
		"speed", s.Speed,
		"address", s.Address,
		"packets", len(s.packets))

	for i, p := range s.packets {
		res, err := drv.Do(ctx, p)
		if res != nil {
			rep.Results = append(rep.Results, res)
		}
		if err != nil {
			pkg.LogError(pkg.ComponentSession, "session aborted", "packet", i, "error", err)
			return rep, fmt.Errorf("packet %d (%s): %w", i, p.PIDName(), err)
		}
		for _, f := range res.Faults {
			pkg.LogWarn(pkg.ComponentSession, "packet fault",
				"packet", i,
				"kind", p.Kind,
				"pid", p.PIDName(),
				"fault", f.Kind,
				"error", f)
		}
	}

	pkg.LogInfo(pkg.ComponentSession, "session finished",
		"packets", len(rep.Results),
		"faults", len(rep.Faults()),
		"passed", rep.Passed())
	return rep, nil
}
