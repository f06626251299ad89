package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/phy"
	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/timing"
)

const dutAddress = 1

func newRig(t *testing.T) (*phy.Driver, *Device) {
	t.Helper()
	bus := NewBus()
	dut := NewDevice(dutAddress)
	bus.SetResponder(dut, DefaultTurnaround)
	return phy.NewDriver(bus, timing.SpeedHigh, timing.DefaultTable()), dut
}

func exchange(t *testing.T, d *phy.Driver, packets ...*packet.Packet) []*phy.Result {
	t.Helper()
	var results []*phy.Result
	for _, p := range packets {
		res, err := d.Do(context.Background(), p)
		if err != nil {
			t.Fatalf("Do(%s) error = %v", p, err)
		}
		results = append(results, res)
	}
	return results
}

func in(ep uint8, cfg packet.TokenConfig) *packet.Packet {
	cfg.PID = packet.PIDIn
	cfg.Endpoint = ep
	if cfg.Address == 0 {
		cfg.Address = dutAddress
	}
	return packet.NewToken(cfg)
}

func out(ep uint8) *packet.Packet {
	return packet.NewToken(packet.TokenConfig{PID: packet.PIDOut, Endpoint: ep, Address: dutAddress})
}

func rxHandshake(pid packet.PID) *packet.Packet {
	return packet.NewRxHandshake(packet.HandshakeConfig{PID: pid})
}

func TestDevice_BulkIn(t *testing.T) {
	d, dut := newRig(t)
	ep := dut.ConfigureEndpoint(1, EndpointTypeBulk)
	dut.QueueIn(1, []byte{1, 2})
	dut.QueueIn(1, []byte{3})

	res := exchange(t, d,
		in(1, packet.TokenConfig{}),
		packet.NewRxData(packet.DataConfig{PID: packet.PIDData0, Payload: []byte{1, 2}}),
		packet.NewTxHandshake(packet.HandshakeConfig{}),
		in(1, packet.TokenConfig{}),
		packet.NewRxData(packet.DataConfig{PID: packet.PIDData1, Payload: []byte{3}}),
		packet.NewTxHandshake(packet.HandshakeConfig{}),
		in(1, packet.TokenConfig{}),
		rxHandshake(packet.PIDNak),
	)
	for i, r := range res {
		if !r.Passed() {
			t.Errorf("packet %d (%s): %v", i, r.Packet, r.Faults)
		}
	}
	if inT, _ := ep.DataToggle(); inT {
		t.Error("IN toggle should be back to DATA0 after two packets")
	}
}

func TestDevice_IgnoresCorruptPackets(t *testing.T) {
	tests := []struct {
		name  string
		token *packet.Packet
	}{
		{"bad CRC5", in(1, packet.TokenConfig{BadCRC: true})},
		{"other address", in(1, packet.TokenConfig{Address: 9})},
		{"raw PID", packet.NewToken(packet.TokenConfig{PID: 0x09, RawPID: true, Endpoint: 1, Address: dutAddress})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, dut := newRig(t)
			dut.ConfigureEndpoint(1, EndpointTypeBulk)
			dut.QueueIn(1, []byte{1})

			res := exchange(t, d, tt.token, rxHandshake(packet.PIDNak))
			if res[1].State != phy.StateTimedOut {
				t.Errorf("DUT answered a %s token", tt.name)
			}
			if dut.Ignored() != 1 {
				t.Errorf("Ignored() = %d, want 1", dut.Ignored())
			}
			if dut.Endpoint(1).Pending() != 1 {
				t.Error("IN payload consumed by an ignored token")
			}
		})
	}
}

func TestDevice_RxErrorDropsData(t *testing.T) {
	d, dut := newRig(t)
	dut.ConfigureEndpoint(2, EndpointTypeBulk)

	res := exchange(t, d,
		out(2),
		packet.NewTxData(packet.DataConfig{
			Payload: []byte{1, 2, 3},
			Timing:  timing.Override{ErrorAt: timing.Clocks(2)},
		}),
		rxHandshake(packet.PIDAck),
	)
	if !errors.Is(res[2].Faults[0], pkg.ErrTimeout) {
		t.Errorf("fault = %v, want timeout", res[2].Faults)
	}
	if got := dut.Endpoint(2).Received(); len(got) != 0 {
		t.Errorf("received %v from an errored packet", got)
	}
}

func TestDevice_BulkOutDuplicate(t *testing.T) {
	d, dut := newRig(t)
	dut.ConfigureEndpoint(2, EndpointTypeBulk)
	data := packet.NewTxData(packet.DataConfig{PID: packet.PIDData0, Payload: []byte{7}})

	res := exchange(t, d,
		out(2), data, rxHandshake(packet.PIDAck),
		out(2), data, rxHandshake(packet.PIDAck),
	)
	for i, r := range res {
		if !r.Passed() {
			t.Errorf("packet %d: %v", i, r.Faults)
		}
	}
	if diff := cmp.Diff([][]byte{{7}}, dut.Endpoint(2).Received()); diff != "" {
		t.Errorf("received mismatch (-want +got):\n%s", diff)
	}
}

func TestDevice_BadDataCRC(t *testing.T) {
	d, dut := newRig(t)
	dut.ConfigureEndpoint(2, EndpointTypeBulk)

	res := exchange(t, d,
		out(2),
		packet.NewTxData(packet.DataConfig{Payload: []byte{1, 2}, BadCRC: true}),
		rxHandshake(packet.PIDAck),
	)
	if res[2].State != phy.StateTimedOut {
		t.Error("DUT acknowledged a packet with a bad CRC16")
	}
}

func TestDevice_Stall(t *testing.T) {
	d, dut := newRig(t)
	dut.ConfigureEndpoint(1, EndpointTypeBulk).SetStall(true)

	res := exchange(t, d,
		in(1, packet.TokenConfig{}), rxHandshake(packet.PIDStall),
		in(4, packet.TokenConfig{}), rxHandshake(packet.PIDStall),
	)
	for i, r := range res {
		if !r.Passed() {
			t.Errorf("packet %d: %v", i, r.Faults)
		}
	}
	if !dut.Endpoint(1).IsStalled() {
		t.Error("stall cleared")
	}
}

func TestDevice_Ping(t *testing.T) {
	d, dut := newRig(t)
	dut.ConfigureEndpoint(1, EndpointTypeBulk)
	res := exchange(t, d,
		packet.NewToken(packet.TokenConfig{PID: packet.PIDPing, Endpoint: 1, Address: dutAddress}),
		rxHandshake(packet.PIDAck),
	)
	if !res[1].Passed() {
		t.Errorf("PING: %v", res[1].Faults)
	}
}

func TestDevice_IsoEmptyQueue(t *testing.T) {
	d, dut := newRig(t)
	dut.ConfigureEndpoint(3, EndpointTypeIsochronous)
	res := exchange(t, d,
		in(3, packet.TokenConfig{}),
		packet.NewRxData(packet.DataConfig{PID: packet.PIDData0}),
	)
	if !res[1].Passed() {
		t.Errorf("empty isochronous IN: %v", res[1].Faults)
	}
}

func TestEndpointTypeString(t *testing.T) {
	if EndpointTypeBulk.String() != "BULK" || EndpointTypeIsochronous.String() != "ISO" {
		t.Error("unexpected endpoint type names")
	}
	if got := EndpointType(9).String(); got != "EndpointType(9)" {
		t.Errorf("String() = %q", got)
	}
}
