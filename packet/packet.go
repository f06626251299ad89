package packet

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ardnew/utmisim/crc"
	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/timing"
)

// Kind is the packet variant tag.
type Kind uint8

// Packet kinds.
const (
	KindToken     Kind = iota // PID, address, endpoint, CRC5
	KindData                  // PID, payload, CRC16
	KindHandshake             // PID only
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindToken:
		return "TokenPacket"
	case KindData:
		return "DataPacket"
	case KindHandshake:
		return "HandshakePacket"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Direction is the travel direction of a packet, named from the host's
// point of view.
type Direction = timing.Direction

// Directions.
const (
	Tx = timing.Tx // Host to DUT: the driver asserts RxActive/RxValid
	Rx = timing.Rx // DUT to host: the driver samples TxValid/TxData
)

// Form selects the byte layout produced by [Packet.Bytes].
type Form uint8

// Byte layouts.
const (
	// FormWire is the octet stream seen on the transceiver data pins.
	FormWire Form = iota

	// FormShort is the logical form used for protocol-level comparisons:
	// tokens become [pid nibble, endpoint], other kinds carry the PID
	// unencoded.
	FormShort
)

// BadCRC16 is the check field written to data packets built with BadCRC.
const BadCRC16 uint16 = 0xBEEF

// Protocol field widths.
const (
	MaxEndpoint = 0x0F
	MaxAddress  = 0x7F
	MaxFrame    = 0x7FF
)

// Token holds the fields specific to token packets.
type Token struct {
	Endpoint uint8 // 4-bit endpoint number
	Address  uint8 // 7-bit device address
	CRC5     uint8 // Check field; only the low 5 bits reach the wire
	Valid    bool  // False when the DUT is expected to ignore the token
}

// Packet is a single USB packet. Kind selects which fields are meaningful:
// Token for [KindToken], Payload and CRC16 for [KindData].
//
// A Packet is owned by the session that built it. The driver reads it while
// driving or sampling and never modifies it.
type Packet struct {
	Kind      Kind
	Direction Direction
	PID       PID

	// RawPID emits PID verbatim instead of check-encoding it.
	RawPID bool

	// BadCRC records that the check field was deliberately corrupted.
	BadCRC bool

	Token   Token
	Payload []byte
	CRC16   uint16

	// Timing replaces individual fields of the table timing profile.
	Timing timing.Override
}

// TokenConfig configures [NewToken].
type TokenConfig struct {
	// PID defaults to PIDOut when zero.
	PID PID

	// Endpoint is truncated to 4 bits and Address to 7 bits.
	Endpoint uint8
	Address  uint8

	// CRC5 replaces the computed check field when non-nil. The value is not
	// masked, so 0xFF fills the whole field.
	CRC5 *uint8

	// BadCRC replaces the check field with the complement of the computed
	// CRC5, which is never valid for the token. Unlike data packets there is
	// no fixed sentinel: an all-ones CRC5 is the valid check field of some
	// tokens (SOF frame 100 among them), so a constant could match.
	BadCRC bool

	// Invalid marks a token the DUT is expected to ignore.
	Invalid bool

	// RawPID emits PID verbatim.
	RawPID bool

	Timing timing.Override
}

// DataConfig configures [NewTxData] and [NewRxData].
type DataConfig struct {
	// PID defaults to PIDData0 when zero.
	PID PID

	// Payload is copied into the packet.
	Payload []byte

	// CRC16 replaces the computed check field when non-nil.
	CRC16 *uint16

	// BadCRC replaces the check field with [BadCRC16].
	BadCRC bool

	// RawPID emits PID verbatim.
	RawPID bool

	Timing timing.Override
}

// HandshakeConfig configures [NewTxHandshake] and [NewRxHandshake].
type HandshakeConfig struct {
	// PID defaults to PIDAck when zero.
	PID PID

	// RawPID emits PID verbatim.
	RawPID bool

	Timing timing.Override
}

// NewToken builds a host-to-DUT token packet. Oversized endpoint and address
// values wrap to their protocol widths.
func NewToken(cfg TokenConfig) *Packet {
	pid := cfg.PID
	if pid == 0 {
		pid = PIDOut
	}
	ep := cfg.Endpoint & MaxEndpoint
	addr := cfg.Address & MaxAddress

	crc5 := crc.TokenCRC5(ep, addr)
	switch {
	case cfg.CRC5 != nil:
		crc5 = *cfg.CRC5
	case cfg.BadCRC:
		crc5 = ^crc5 & 0x1F
	}

	return &Packet{
		Kind:      KindToken,
		Direction: Tx,
		PID:       pid,
		RawPID:    cfg.RawPID,
		BadCRC:    cfg.BadCRC,
		Token: Token{
			Endpoint: ep,
			Address:  addr,
			CRC5:     crc5,
			Valid:    !cfg.Invalid,
		},
		Timing: cfg.Timing,
	}
}

// NewTokenStrict is like [NewToken] but rejects endpoint and address values
// that do not fit their protocol widths.
func NewTokenStrict(cfg TokenConfig) (*Packet, error) {
	if cfg.Endpoint > MaxEndpoint {
		return nil, fmt.Errorf("endpoint %d: %w", cfg.Endpoint, pkg.ErrInvalidParameter)
	}
	if cfg.Address > MaxAddress {
		return nil, fmt.Errorf("address %d: %w", cfg.Address, pkg.ErrInvalidParameter)
	}
	return NewToken(cfg), nil
}

// DefaultSOFInterEventDelay is the clock gap before a start-of-frame token.
const DefaultSOFInterEventDelay = 1000

// NewSOF builds a start-of-frame token for frame. The 11-bit frame number
// occupies the address (low 7 bits) and endpoint (high 4 bits) fields.
func NewSOF(frame uint16, badCRC bool, interEventDelay int) *Packet {
	return NewToken(TokenConfig{
		PID:      PIDSOF,
		Endpoint: uint8(frame>>7) & MaxEndpoint,
		Address:  uint8(frame) & MaxAddress,
		BadCRC:   badCRC,
		Timing:   timing.Override{InterEventDelay: timing.Clocks(interEventDelay)},
	})
}

// NewTxData builds a host-to-DUT data packet.
func NewTxData(cfg DataConfig) *Packet {
	return newData(Tx, cfg)
}

// NewRxData builds the data packet the DUT is expected to send.
func NewRxData(cfg DataConfig) *Packet {
	return newData(Rx, cfg)
}

func newData(dir Direction, cfg DataConfig) *Packet {
	pid := cfg.PID
	if pid == 0 {
		pid = PIDData0
	}
	payload := append([]byte{}, cfg.Payload...)

	check := crc.CRC16(payload)
	switch {
	case cfg.CRC16 != nil:
		check = *cfg.CRC16
	case cfg.BadCRC:
		check = BadCRC16
	}

	return &Packet{
		Kind:      KindData,
		Direction: dir,
		PID:       pid,
		RawPID:    cfg.RawPID,
		BadCRC:    cfg.BadCRC,
		Payload:   payload,
		CRC16:     check,
		Timing:    cfg.Timing,
	}
}

// NewTxHandshake builds a host-to-DUT handshake packet.
func NewTxHandshake(cfg HandshakeConfig) *Packet {
	return newHandshake(Tx, cfg)
}

// NewRxHandshake builds the handshake packet the DUT is expected to send.
func NewRxHandshake(cfg HandshakeConfig) *Packet {
	return newHandshake(Rx, cfg)
}

func newHandshake(dir Direction, cfg HandshakeConfig) *Packet {
	pid := cfg.PID
	if pid == 0 {
		pid = PIDAck
	}
	return &Packet{
		Kind:      KindHandshake,
		Direction: dir,
		PID:       pid,
		RawPID:    cfg.RawPID,
		Timing:    cfg.Timing,
	}
}

// PIDName returns the protocol name of the packet's PID.
func (p *Packet) PIDName() string {
	return p.PID.String()
}

// TimingProfile resolves the packet timing against the default table.
func (p *Packet) TimingProfile(speed timing.Speed) timing.Profile {
	return p.TimingFrom(timing.DefaultTable(), speed)
}

// TimingFrom resolves the packet timing against table.
func (p *Packet) TimingFrom(table timing.Table, speed timing.Speed) timing.Profile {
	return table.Profile(p.Direction, speed, p.Timing)
}

// CRCValid reports whether the packet's check field matches its contents.
func (p *Packet) CRCValid() bool {
	switch p.Kind {
	case KindToken:
		return crc.CheckTokenCRC5(p.Token.Endpoint, p.Token.Address, p.Token.CRC5)
	case KindData:
		return p.CRC16 == crc.CRC16(p.Payload)
	default:
		return true
	}
}

func (p *Packet) pidByte() byte {
	if p.RawPID {
		return byte(p.PID)
	}
	return p.PID.Encode()
}

// Len returns the number of bytes [Packet.Bytes] produces for form.
func (p *Packet) Len(form Form) int {
	switch p.Kind {
	case KindToken:
		if form == FormShort {
			return 2
		}
		return 3
	case KindData:
		return 1 + len(p.Payload) + 2
	default:
		return 1
	}
}

// MarshalTo writes the packet bytes in the given form to buf and returns the
// number of bytes written. A buffer shorter than [Packet.Len] returns
// [pkg.ErrBufferTooSmall] and is left untouched.
func (p *Packet) MarshalTo(buf []byte, form Form) (int, error) {
	n := p.Len(form)
	if len(buf) < n {
		return 0, fmt.Errorf("marshal %s: need %d bytes, have %d: %w",
			p.PIDName(), n, len(buf), pkg.ErrBufferTooSmall)
	}

	switch p.Kind {
	case KindToken:
		t := p.Token
		if form == FormShort {
			buf[0] = p.PID.Nibble()
			buf[1] = t.Endpoint
			break
		}
		buf[0] = p.pidByte()
		buf[1] = t.Address | (t.Endpoint&1)<<7
		buf[2] = t.Endpoint>>1 | t.CRC5<<3

	case KindData:
		if form == FormShort {
			buf[0] = byte(p.PID)
		} else {
			buf[0] = p.pidByte()
		}
		copy(buf[1:], p.Payload)
		binary.LittleEndian.PutUint16(buf[1+len(p.Payload):], p.CRC16)

	default:
		if form == FormShort {
			buf[0] = byte(p.PID)
		} else {
			buf[0] = p.pidByte()
		}
	}
	return n, nil
}

// Bytes returns the packet bytes in the given form.
func (p *Packet) Bytes(form Form) []byte {
	buf := make([]byte, p.Len(form))
	p.MarshalTo(buf, form) // sized by Len
	return buf
}

// String describes the packet the way the verification log prints it.
func (p *Packet) String() string {
	var sb strings.Builder
	if p.Direction == Tx {
		sb.WriteString("TX ")
	} else {
		sb.WriteString("RX ")
	}
	sb.WriteString(p.Kind.String())
	sb.WriteString(": ")
	sb.WriteString(p.PIDName())

	switch p.Kind {
	case KindToken:
		fmt.Fprintf(&sb, " addr=%d ep=%d crc5=0x%02X", p.Token.Address, p.Token.Endpoint, p.Token.CRC5&0x1F)
		if !p.Token.Valid {
			sb.WriteString(" invalid")
		}
	case KindData:
		fmt.Fprintf(&sb, " %v Valid CRC: %t", p.Payload, p.CRCValid())
		if p.Direction == Tx && p.Timing.ErrorAt != nil && *p.Timing.ErrorAt != 0 {
			fmt.Fprintf(&sb, " RXE Assert: %d", *p.Timing.ErrorAt)
		}
	}
	return sb.String()
}
