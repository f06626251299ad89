package packet

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"

	"github.com/ardnew/utmisim/pkg"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		kind     Kind
		pid      PID
		ep, addr uint8
		payload  []byte
		pidValid bool
		crcValid bool
	}{
		{
			name: "OUT token", data: []byte{0xE1, 0x81, 0x71},
			kind: KindToken, pid: PIDOut, ep: 3, addr: 1,
			pidValid: true, crcValid: true,
		},
		{
			name: "SOF 100", data: []byte{0xA5, 0x64, 0xF8},
			kind: KindToken, pid: PIDSOF, ep: 0, addr: 100,
			pidValid: true, crcValid: true,
		},
		{
			name: "token with bad CRC5", data: []byte{0xE1, 0x81, 0x89},
			kind: KindToken, pid: PIDOut, ep: 3, addr: 1,
			pidValid: true, crcValid: false,
		},
		{
			name: "DATA1 payload", data: []byte{0x4B, 0, 1, 2, 3, 0xEF, 0x7A},
			kind: KindData, pid: PIDData1, payload: []byte{0, 1, 2, 3},
			pidValid: true, crcValid: true,
		},
		{
			name: "DATA0 sentinel CRC", data: []byte{0xC3, 0, 1, 2, 3, 0xEF, 0xBE},
			kind: KindData, pid: PIDData0, payload: []byte{0, 1, 2, 3},
			pidValid: true, crcValid: false,
		},
		{
			name: "ACK", data: []byte{0xD2},
			kind: KindHandshake, pid: PIDAck,
			pidValid: true, crcValid: true,
		},
		{
			name: "ACK nibble with broken check", data: []byte{0x12},
			kind: KindHandshake, pid: 0x12,
			pidValid: false, crcValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if l.Kind != tt.kind || l.PID != tt.pid {
				t.Errorf("got %s %s, want %s %s", l.Kind, l.PID, tt.kind, tt.pid)
			}
			if tt.kind == KindToken && (l.Endpoint != tt.ep || l.Address != tt.addr) {
				t.Errorf("ep=%d addr=%d, want ep=%d addr=%d", l.Endpoint, l.Address, tt.ep, tt.addr)
			}
			if tt.kind == KindData {
				if diff := cmp.Diff(tt.payload, l.LayerPayload()); diff != "" {
					t.Errorf("payload mismatch (-want +got):\n%s", diff)
				}
			}
			if l.PIDValid() != tt.pidValid {
				t.Errorf("PIDValid() = %v, want %v", l.PIDValid(), tt.pidValid)
			}
			if l.CRCValid() != tt.crcValid {
				t.Errorf("CRCValid() = %v, want %v", l.CRCValid(), tt.crcValid)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, pkg.ErrPacketTooShort},
		{"short token", []byte{0xE1, 0x81}, pkg.ErrPacketTooShort},
		{"long token", []byte{0xE1, 0x81, 0x71, 0x00}, pkg.ErrLength},
		{"short data", []byte{0xC3, 0x00}, pkg.ErrPacketTooShort},
		{"long handshake", []byte{0xD2, 0x00}, pkg.ErrLength},
		{"reserved", []byte{0x0F}, pkg.ErrUnknownPID},
		{"0xFF", []byte{0xFF}, pkg.ErrUnknownPID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(% X) error = %v, want %v", tt.data, err, tt.want)
			}
		})
	}
}

func TestSerialize_MatchesWire(t *testing.T) {
	packets := []*Packet{
		NewToken(TokenConfig{PID: PIDIn, Endpoint: 1, Address: 1}),
		NewSOF(0x7FF, false, 0),
		NewTxData(DataConfig{PID: PIDData1, Payload: StepPayload(1, 13)}),
		NewTxData(DataConfig{}),
		NewTxHandshake(HandshakeConfig{PID: PIDNak}),
	}

	for _, p := range packets {
		got, err := Serialize(p.Layer(), gopacket.SerializeOptions{ComputeChecksums: true})
		if err != nil {
			t.Fatalf("Serialize(%s) error = %v", p, err)
		}
		if diff := cmp.Diff(p.Bytes(FormWire), got); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", p, diff)
		}
	}
}

func TestSerialize_KeepsBadCRC(t *testing.T) {
	p := NewTxData(DataConfig{Payload: []byte{1, 2}, BadCRC: true})

	kept, err := Serialize(p.Layer(), gopacket.SerializeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(p.Bytes(FormWire), kept); diff != "" {
		t.Errorf("without ComputeChecksums (-want +got):\n%s", diff)
	}

	fixed, err := Serialize(p.Layer(), gopacket.SerializeOptions{ComputeChecksums: true})
	if err != nil {
		t.Fatal(err)
	}
	l, err := Decode(fixed)
	if err != nil {
		t.Fatal(err)
	}
	if !l.CRCValid() {
		t.Error("ComputeChecksums should repair the CRC16")
	}
}

func TestLayerPacket_RoundTrip(t *testing.T) {
	orig := NewToken(TokenConfig{PID: PIDSetup, Endpoint: 0, Address: 5, BadCRC: true})
	l, err := Decode(orig.Bytes(FormWire))
	if err != nil {
		t.Fatal(err)
	}
	got := l.Packet(Tx)
	if diff := cmp.Diff(orig.Bytes(FormWire), got.Bytes(FormWire)); diff != "" {
		t.Errorf("token rebuild mismatch (-want +got):\n%s", diff)
	}

	bad := []byte{0xFF}
	hs := NewTxHandshake(HandshakeConfig{PID: 0x12, RawPID: true})
	l, err = Decode(hs.Bytes(FormWire))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(hs.Bytes(FormWire), l.Packet(Rx).Bytes(FormWire)); diff != "" {
		t.Errorf("handshake rebuild mismatch (-want +got):\n%s", diff)
	}
	if _, err := Decode(bad); err == nil {
		t.Error("0xFF should not decode")
	}
}

func TestLayerString(t *testing.T) {
	l, err := Decode([]byte{0xE1, 0x81, 0x89})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := l.String(), "TokenPacket OUT addr=1 ep=3 crc5=0x11 bad-crc"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
