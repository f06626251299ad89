package packet

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/ardnew/utmisim/crc"
	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/timing"
)

func u8(v uint8) *uint8    { return &v }
func u16(v uint16) *uint16 { return &v }

func TestTokenBytes(t *testing.T) {
	tests := []struct {
		name  string
		cfg   TokenConfig
		wire  []byte
		short []byte
	}{
		{
			name:  "OUT addr 1 ep 3",
			cfg:   TokenConfig{PID: PIDOut, Endpoint: 3, Address: 1},
			wire:  []byte{0xE1, 0x81, 0x71},
			short: []byte{0x01, 0x03},
		},
		{
			name:  "IN addr 1 ep 1",
			cfg:   TokenConfig{PID: PIDIn, Endpoint: 1, Address: 1},
			wire:  []byte{0x69, 0x81, 0x58},
			short: []byte{0x09, 0x01},
		},
		{
			name:  "default PID is OUT",
			cfg:   TokenConfig{Endpoint: 3, Address: 1},
			wire:  []byte{0xE1, 0x81, 0x71},
			short: []byte{0x01, 0x03},
		},
		{
			name:  "bad CRC is the complement",
			cfg:   TokenConfig{PID: PIDOut, Endpoint: 3, Address: 1, BadCRC: true},
			wire:  []byte{0xE1, 0x81, 0x89},
			short: []byte{0x01, 0x03},
		},
		{
			name:  "explicit CRC5 0xFF",
			cfg:   TokenConfig{PID: PIDOut, Endpoint: 3, Address: 1, CRC5: u8(0xFF)},
			wire:  []byte{0xE1, 0x81, 0xF9},
			short: []byte{0x01, 0x03},
		},
		{
			name:  "endpoint and address wrap",
			cfg:   TokenConfig{PID: PIDOut, Endpoint: 0x13, Address: 0x81},
			wire:  []byte{0xE1, 0x81, 0x71},
			short: []byte{0x01, 0x03},
		},
		{
			name:  "raw PID",
			cfg:   TokenConfig{PID: 0x01, Endpoint: 3, Address: 1, RawPID: true},
			wire:  []byte{0x01, 0x81, 0x71},
			short: []byte{0x01, 0x03},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewToken(tt.cfg)
			if diff := cmp.Diff(tt.wire, p.Bytes(FormWire)); diff != "" {
				t.Errorf("wire bytes mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.short, p.Bytes(FormShort)); diff != "" {
				t.Errorf("short bytes mismatch (-want +got):\n%s", diff)
			}
			if p.Len(FormWire) != 3 {
				t.Errorf("Len(FormWire) = %d, want 3", p.Len(FormWire))
			}
		})
	}
}

func TestTokenCRCValid(t *testing.T) {
	good := NewToken(TokenConfig{PID: PIDIn, Endpoint: 1, Address: 1})
	if !good.CRCValid() {
		t.Error("computed CRC5 should be valid")
	}
	if good.Token.CRC5 != 0x0B {
		t.Errorf("CRC5 = 0x%02X, want 0x0B", good.Token.CRC5)
	}
	bad := NewToken(TokenConfig{PID: PIDIn, Endpoint: 1, Address: 1, BadCRC: true})
	if bad.CRCValid() {
		t.Error("BadCRC token should not be valid")
	}
	if !bad.BadCRC {
		t.Error("BadCRC flag not recorded")
	}
}

func TestTokenBadCRC_NeverValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ep := rapid.Uint8Range(0, MaxEndpoint).Draw(t, "ep")
		addr := rapid.Uint8Range(0, MaxAddress).Draw(t, "addr")
		p := NewToken(TokenConfig{Endpoint: ep, Address: addr, BadCRC: true})
		if p.CRCValid() {
			t.Fatalf("bad CRC5 0x%02X accepted for ep=%d addr=%d", p.Token.CRC5, ep, addr)
		}
		if p.Token.CRC5 > 0x1F {
			t.Fatalf("bad CRC5 0x%02X exceeds 5 bits", p.Token.CRC5)
		}
	})
}

func TestNewTokenStrict(t *testing.T) {
	if _, err := NewTokenStrict(TokenConfig{Endpoint: 15, Address: 127}); err != nil {
		t.Fatalf("NewTokenStrict(max) error = %v", err)
	}
	_, err := NewTokenStrict(TokenConfig{Endpoint: 16, Address: 1})
	if !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("endpoint 16: error = %v, want ErrInvalidParameter", err)
	}
	_, err = NewTokenStrict(TokenConfig{Endpoint: 1, Address: 128})
	if !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("address 128: error = %v, want ErrInvalidParameter", err)
	}
}

func TestNewSOF(t *testing.T) {
	tests := []struct {
		frame uint16
		ep    uint8
		addr  uint8
		wire  []byte
	}{
		{100, 0, 100, []byte{0xA5, 0x64, 0xF8}},
		{MaxFrame, 0x0F, 0x7F, []byte{0xA5, 0xFF, 0x47}},
	}

	for _, tt := range tests {
		p := NewSOF(tt.frame, false, DefaultSOFInterEventDelay)
		if p.PID != PIDSOF {
			t.Errorf("frame %d: PID = %s", tt.frame, p.PID)
		}
		if p.Token.Endpoint != tt.ep || p.Token.Address != tt.addr {
			t.Errorf("frame %d: ep=%d addr=%d, want ep=%d addr=%d",
				tt.frame, p.Token.Endpoint, p.Token.Address, tt.ep, tt.addr)
		}
		if diff := cmp.Diff(tt.wire, p.Bytes(FormWire)); diff != "" {
			t.Errorf("frame %d wire mismatch (-want +got):\n%s", tt.frame, diff)
		}
		prof := p.TimingProfile(timing.SpeedHigh)
		if prof.InterEventDelay != DefaultSOFInterEventDelay {
			t.Errorf("frame %d: InterEventDelay = %d", tt.frame, prof.InterEventDelay)
		}
	}

	if NewSOF(100, true, 0).CRCValid() {
		t.Error("bad SOF should not have a valid CRC5")
	}
}

func TestDataBytes(t *testing.T) {
	tests := []struct {
		name  string
		cfg   DataConfig
		wire  []byte
		short []byte
		valid bool
	}{
		{
			name:  "empty DATA0",
			cfg:   DataConfig{PID: PIDData0},
			wire:  []byte{0xC3, 0x00, 0x00},
			short: []byte{0xC3, 0x00, 0x00},
			valid: true,
		},
		{
			name:  "four bytes DATA1",
			cfg:   DataConfig{PID: PIDData1, Payload: []byte{0, 1, 2, 3}},
			wire:  []byte{0x4B, 0, 1, 2, 3, 0xEF, 0x7A},
			short: []byte{0x4B, 0, 1, 2, 3, 0xEF, 0x7A},
			valid: true,
		},
		{
			name:  "bad CRC sentinel",
			cfg:   DataConfig{Payload: []byte{0, 1, 2, 3}, BadCRC: true},
			wire:  []byte{0xC3, 0, 1, 2, 3, 0xEF, 0xBE},
			short: []byte{0xC3, 0, 1, 2, 3, 0xEF, 0xBE},
			valid: false,
		},
		{
			name:  "explicit CRC16",
			cfg:   DataConfig{Payload: []byte{9}, CRC16: u16(0x1234)},
			wire:  []byte{0xC3, 9, 0x34, 0x12},
			short: []byte{0xC3, 9, 0x34, 0x12},
			valid: false,
		},
		{
			name:  "malformed PID stays malformed",
			cfg:   DataConfig{PID: 0xFF, Payload: []byte{}},
			wire:  []byte{0xFF, 0x00, 0x00},
			short: []byte{0xFF, 0x00, 0x00},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTxData(tt.cfg)
			if diff := cmp.Diff(tt.wire, p.Bytes(FormWire)); diff != "" {
				t.Errorf("wire bytes mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.short, p.Bytes(FormShort)); diff != "" {
				t.Errorf("short bytes mismatch (-want +got):\n%s", diff)
			}
			if p.CRCValid() != tt.valid {
				t.Errorf("CRCValid() = %v, want %v", p.CRCValid(), tt.valid)
			}
		})
	}
}

func TestDataPayloadCopied(t *testing.T) {
	payload := []byte{1, 2, 3}
	p := NewRxData(DataConfig{Payload: payload})
	payload[0] = 0xAA
	if p.Payload[0] != 1 {
		t.Error("packet payload aliases caller slice")
	}
	if p.Direction != Rx {
		t.Errorf("Direction = %v, want Rx", p.Direction)
	}
}

func TestDataWire_Residue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 1023).Draw(t, "payload")
		wire := NewTxData(DataConfig{Payload: payload}).Bytes(FormWire)
		if !crc.CheckCRC16(wire[1:]) {
			t.Fatalf("residue check failed for %d-byte payload", len(payload))
		}
		if len(wire) != len(payload)+3 {
			t.Fatalf("wire length %d, want %d", len(wire), len(payload)+3)
		}
	})
}

func TestDataBadCRC_Sentinel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "payload")
		if crc.CRC16(payload) == BadCRC16 {
			return
		}
		p := NewTxData(DataConfig{Payload: payload, BadCRC: true})
		wire := p.Bytes(FormWire)
		n := len(wire)
		if wire[n-2] != 0xEF || wire[n-1] != 0xBE {
			t.Fatalf("trailer % X, want EF BE", wire[n-2:])
		}
		if p.CRCValid() {
			t.Fatal("sentinel CRC reported valid")
		}
	})
}

func TestHandshakeBytes(t *testing.T) {
	tests := []struct {
		name string
		cfg  HandshakeConfig
		wire []byte
	}{
		{"default ACK", HandshakeConfig{}, []byte{0xD2}},
		{"NAK", HandshakeConfig{PID: PIDNak}, []byte{0x5A}},
		{"bare STALL nibble", HandshakeConfig{PID: 0x0E}, []byte{0x1E}},
		{"bad PID", HandshakeConfig{PID: 0xFF}, []byte{0xFF}},
		{"raw reserved", HandshakeConfig{PID: PIDReserved, RawPID: true}, []byte{0x0F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTxHandshake(tt.cfg)
			if diff := cmp.Diff(tt.wire, p.Bytes(FormWire)); diff != "" {
				t.Errorf("wire bytes mismatch (-want +got):\n%s", diff)
			}
			if !p.CRCValid() {
				t.Error("handshake has no check field and is always CRC valid")
			}
		})
	}
}

func TestNewSOF_BadCRC(t *testing.T) {
	good := NewSOF(100, false, 0).Bytes(FormWire)
	bad := NewSOF(100, true, 0).Bytes(FormWire)
	if diff := cmp.Diff([]byte{0xA5, 0x64, 0xF8}, good); diff != "" {
		t.Errorf("SOF 100 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0xA5, 0x64, 0x00}, bad); diff != "" {
		t.Errorf("SOF 100 with BadCRC (-want +got):\n%s", diff)
	}

	// An all-ones override lands on the valid check bits for this frame.
	ones := NewToken(TokenConfig{PID: PIDSOF, Address: 100, CRC5: u8(0xFF)})
	if diff := cmp.Diff(good, ones.Bytes(FormWire)); diff != "" {
		t.Errorf("all-ones CRC5 (-want +got):\n%s", diff)
	}
	if NewSOF(100, true, 0).CRCValid() {
		t.Error("BadCRC SOF reports a valid CRC")
	}
}

func TestMarshalTo_ShortBuffer(t *testing.T) {
	p := NewTxData(DataConfig{Payload: []byte{1, 2, 3}})
	short := make([]byte, 5)
	n, err := p.MarshalTo(short, FormWire)
	if !errors.Is(err, pkg.ErrBufferTooSmall) || n != 0 {
		t.Errorf("MarshalTo(short buffer) = %d, %v, want 0, ErrBufferTooSmall", n, err)
	}
	if diff := cmp.Diff(make([]byte, 5), short); diff != "" {
		t.Errorf("short buffer modified (-want +got):\n%s", diff)
	}

	buf := make([]byte, 16)
	n, err = p.MarshalTo(buf, FormWire)
	if err != nil || n != 6 {
		t.Errorf("MarshalTo = %d, %v, want 6, nil", n, err)
	}
	if diff := cmp.Diff(p.Bytes(FormWire), buf[:n]); diff != "" {
		t.Errorf("MarshalTo bytes (-want +got):\n%s", diff)
	}
}

func TestTimingProfile(t *testing.T) {
	tx := NewToken(TokenConfig{Endpoint: 1, Address: 1})
	if got := tx.TimingProfile(timing.SpeedFull); got.StrobeHold != timing.DefaultStrobeHoldFS {
		t.Errorf("FS StrobeHold = %d", got.StrobeHold)
	}
	if got := tx.TimingProfile(timing.SpeedHigh); got.StrobeHold != timing.DefaultStrobeHoldHS {
		t.Errorf("HS StrobeHold = %d", got.StrobeHold)
	}

	rx := NewRxHandshake(HandshakeConfig{Timing: timing.Override{Timeout: timing.Clocks(3)}})
	if got := rx.TimingProfile(timing.SpeedHigh); got.Timeout != 3 {
		t.Errorf("override Timeout = %d, want 3", got.Timeout)
	}
}

func TestPacketString(t *testing.T) {
	tests := []struct {
		p    *Packet
		want string
	}{
		{
			NewToken(TokenConfig{PID: PIDOut, Endpoint: 3, Address: 1}),
			"TX TokenPacket: OUT addr=1 ep=3 crc5=0x0E",
		},
		{
			NewRxData(DataConfig{Payload: []byte{1, 2}}),
			"RX DataPacket: DATA0 [1 2] Valid CRC: true",
		},
		{
			NewTxData(DataConfig{PID: PIDData1, Payload: []byte{1}, Timing: timing.Override{ErrorAt: timing.Clocks(2)}}),
			"TX DataPacket: DATA1 [1] Valid CRC: true RXE Assert: 2",
		},
		{
			NewRxHandshake(HandshakeConfig{PID: PIDNak}),
			"RX HandshakePacket: NAK",
		},
		{
			NewTxHandshake(HandshakeConfig{PID: 0xFF}),
			"TX HandshakePacket: UNKNOWN",
		},
	}

	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPayloadGenerators(t *testing.T) {
	if diff := cmp.Diff([]byte{0, 3, 6, 9}, StepPayload(3, 4)); diff != "" {
		t.Errorf("StepPayload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{7, 7, 7}, SamePayload(7, 3)); diff != "" {
		t.Errorf("SamePayload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0xFE, 0xFF, 0x00}, CounterPayload(0xFE, 3)); diff != "" {
		t.Errorf("CounterPayload mismatch (-want +got):\n%s", diff)
	}
	if got := StepPayload(1, 300); got[256] != 0 || got[299] != 43 {
		t.Errorf("StepPayload wrap: [256]=%d [299]=%d", got[256], got[299])
	}
}
