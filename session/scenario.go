package session

import (
	"fmt"
	"sort"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/phy/sim"
)

// Scenario builds a session together with the DUT behaviour it expects.
type Scenario struct {
	Name        string
	Description string
	Build       func(s *Session, dut *sim.Device)
}

var scenarios = map[string]Scenario{
	"bulk-in": {
		Name:        "bulk-in",
		Description: "bulk IN transactions of 10 to 13 bytes on endpoint 1",
		Build: func(s *Session, dut *sim.Device) {
			const ep = 1
			dut.ConfigureEndpoint(ep, sim.EndpointTypeBulk)
			for n := 10; n <= 13; n++ {
				dut.QueueIn(ep, s.BulkIn(Transfer{Endpoint: ep, Length: n}))
			}
		},
	},
	"bulk-out": {
		Name:        "bulk-out",
		Description: "bulk OUT transactions of 10 to 13 bytes on endpoint 1",
		Build: func(s *Session, dut *sim.Device) {
			const ep = 1
			dut.ConfigureEndpoint(ep, sim.EndpointTypeBulk)
			for n := 10; n <= 13; n++ {
				s.BulkOut(Transfer{Endpoint: ep, Length: n})
			}
		},
	},
	"badack": {
		Name:        "badack",
		Description: "bulk IN where the host answers the 12-byte packet with PID 0xFF; the DUT must resend it",
		Build:       BadAck,
	},
	"iso": {
		Name:        "iso",
		Description: "isochronous OUT then IN of 10 to 19 bytes on endpoint 3",
		Build: func(s *Session, dut *sim.Device) {
			const ep = 3
			dut.ConfigureEndpoint(ep, sim.EndpointTypeIsochronous)
			for n := 10; n <= 19; n++ {
				s.IsoOut(Transfer{Endpoint: ep, Length: n, InterEventDelay: 20})
				dut.QueueIn(ep, s.IsoIn(Transfer{Endpoint: ep, Length: n, InterEventDelay: 58}))
			}
		},
	},
	"sof": {
		Name:        "sof",
		Description: "start-of-frame tokens 100 to 103, a corrupted SOF, then frame 0x7FF",
		Build: func(s *Session, _ *sim.Device) {
			for f := uint16(100); f < 104; f++ {
				s.SOF(f, false)
			}
			s.SOF(104, true)
			s.SOF(packet.MaxFrame, false)
		},
	},
}

// BadAck builds the bulk IN bad-handshake scenario: the DUT's 12-byte
// DATA0 is answered with an invalid PID, so the following IN must return
// the same payload with the same toggle.
func BadAck(s *Session, dut *sim.Device) {
	const (
		ep  = 1
		ied = 4000
	)
	dut.ConfigureEndpoint(ep, sim.EndpointTypeBulk)

	for n := 10; n <= 13; n++ {
		if n == 12 {
			s.Add(
				s.token(packet.PIDIn, Transfer{Endpoint: ep, InterEventDelay: ied}),
				packet.NewRxData(packet.DataConfig{
					PID:     packet.PIDData0,
					Payload: s.PayloadIn(ep, n, true),
				}),
				packet.NewTxHandshake(packet.HandshakeConfig{PID: 0xFF}),
			)
		}
		dut.QueueIn(ep, s.BulkIn(Transfer{Endpoint: ep, Length: n, InterEventDelay: ied}))
	}
}

// Lookup returns the scenario with the given name.
func Lookup(name string) (Scenario, error) {
	sc, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q", name)
	}
	return sc, nil
}

// Scenarios returns every scenario sorted by name.
func Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
