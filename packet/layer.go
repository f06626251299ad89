package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/ardnew/utmisim/crc"
	"github.com/ardnew/utmisim/pkg"
)

// LayerNum identifies the USB packet layer in the gopacket layer catalog.
const LayerNum = 2060

// LayerTypeUSB decodes a single captured USB packet.
var LayerTypeUSB = gopacket.RegisterLayerType(LayerNum,
	gopacket.LayerTypeMetadata{Name: "USB", Decoder: gopacket.DecodeFunc(decodeLayer)})

// Layer is a USB packet decoded from captured wire bytes. For data packets
// the payload bytes are available through LayerPayload.
type Layer struct {
	layers.BaseLayer
	PID      PID
	Kind     Kind
	Endpoint uint8
	Address  uint8
	CRC5     uint8
	CRC16    uint16
}

// LayerType returns [LayerTypeUSB].
func (l *Layer) LayerType() gopacket.LayerType {
	return LayerTypeUSB
}

// CanDecode returns [LayerTypeUSB].
func (l *Layer) CanDecode() gopacket.LayerClass {
	return LayerTypeUSB
}

// NextLayerType returns gopacket.LayerTypePayload for data packets with a
// non-empty payload and gopacket.LayerTypeZero otherwise.
func (l *Layer) NextLayerType() gopacket.LayerType {
	if l.Kind == KindData && len(l.Payload) > 0 {
		return gopacket.LayerTypePayload
	}
	return gopacket.LayerTypeZero
}

// PIDValid reports whether the PID byte carries correct check bits.
func (l *Layer) PIDValid() bool {
	return l.PID.Valid()
}

// CRCValid reports whether the decoded check field matches the contents.
func (l *Layer) CRCValid() bool {
	switch l.Kind {
	case KindToken:
		return crc.CheckTokenCRC5(l.Endpoint, l.Address, l.CRC5)
	case KindData:
		return l.CRC16 == crc.CRC16(l.Payload)
	default:
		return true
	}
}

// DecodeFromBytes classifies data by its PID nibble and decodes the fields
// of the announced packet kind.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 1 {
		df.SetTruncated()
		return pkg.ErrPacketTooShort
	}
	*l = Layer{PID: PID(data[0])}

	switch {
	case l.PID.IsToken():
		if len(data) < 3 {
			df.SetTruncated()
			return fmt.Errorf("token %d bytes: %w", len(data), pkg.ErrPacketTooShort)
		}
		if len(data) > 3 {
			return fmt.Errorf("token %d bytes: %w", len(data), pkg.ErrLength)
		}
		l.Kind = KindToken
		l.Address = data[1] & MaxAddress
		l.Endpoint = data[1]>>7 | (data[2]&0x07)<<1
		l.CRC5 = data[2] >> 3
		l.BaseLayer = layers.BaseLayer{Contents: data}

	case l.PID.IsData():
		if len(data) < 3 {
			df.SetTruncated()
			return fmt.Errorf("data %d bytes: %w", len(data), pkg.ErrPacketTooShort)
		}
		n := len(data)
		l.Kind = KindData
		l.CRC16 = binary.LittleEndian.Uint16(data[n-2:])
		l.BaseLayer = layers.BaseLayer{Contents: data, Payload: data[1 : n-2]}

	case l.PID.IsHandshake():
		if len(data) != 1 {
			return fmt.Errorf("handshake %d bytes: %w", len(data), pkg.ErrLength)
		}
		l.Kind = KindHandshake
		l.BaseLayer = layers.BaseLayer{Contents: data}

	default:
		return fmt.Errorf("PID 0x%02X: %w", data[0], pkg.ErrUnknownPID)
	}
	return nil
}

// SerializeTo writes the layer around the bytes already in b. For data
// packets b holds the payload; the PID is prepended and the CRC16 appended.
// With opts.ComputeChecksums the check fields are recomputed.
func (l *Layer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	switch l.Kind {
	case KindToken:
		hdr, err := b.PrependBytes(3)
		if err != nil {
			return err
		}
		ep := l.Endpoint & MaxEndpoint
		addr := l.Address & MaxAddress
		if opts.ComputeChecksums {
			l.CRC5 = crc.TokenCRC5(ep, addr)
		}
		hdr[0] = byte(l.PID)
		hdr[1] = addr | (ep&1)<<7
		hdr[2] = ep>>1 | l.CRC5<<3

	case KindData:
		payload := b.Bytes()
		if opts.ComputeChecksums {
			l.CRC16 = crc.CRC16(payload)
		}
		hdr, err := b.PrependBytes(1)
		if err != nil {
			return err
		}
		hdr[0] = byte(l.PID)
		tail, err := b.AppendBytes(2)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(tail, l.CRC16)

	default:
		hdr, err := b.PrependBytes(1)
		if err != nil {
			return err
		}
		hdr[0] = byte(l.PID)
	}
	return nil
}

// String summarizes the decoded packet.
func (l *Layer) String() string {
	flags := ""
	if !l.PIDValid() {
		flags += " bad-pid"
	}
	if !l.CRCValid() {
		flags += " bad-crc"
	}
	switch l.Kind {
	case KindToken:
		return fmt.Sprintf("%s %s addr=%d ep=%d crc5=0x%02X%s",
			l.Kind, l.PID, l.Address, l.Endpoint, l.CRC5, flags)
	case KindData:
		return fmt.Sprintf("%s %s len=%d crc16=0x%04X%s",
			l.Kind, l.PID, len(l.Payload), l.CRC16, flags)
	default:
		return fmt.Sprintf("%s %s%s", l.Kind, l.PID, flags)
	}
}

// Packet rebuilds a packet value from the decoded layer, preserving any
// corrupted PID or check field.
func (l *Layer) Packet(dir Direction) *Packet {
	raw := !l.PIDValid()
	switch l.Kind {
	case KindToken:
		crc5 := l.CRC5
		p := NewToken(TokenConfig{
			PID:      l.PID,
			Endpoint: l.Endpoint,
			Address:  l.Address,
			CRC5:     &crc5,
			RawPID:   raw,
		})
		p.Direction = dir
		return p
	case KindData:
		check := l.CRC16
		return newData(dir, DataConfig{PID: l.PID, Payload: l.Payload, CRC16: &check, RawPID: raw})
	default:
		return newHandshake(dir, HandshakeConfig{PID: l.PID, RawPID: raw})
	}
}

func decodeLayer(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	if next := l.NextLayerType(); next != gopacket.LayerTypeZero {
		return p.NextDecoder(next)
	}
	return nil
}

// Decode decodes captured wire bytes into a [Layer].
func Decode(data []byte) (*Layer, error) {
	pkt := gopacket.NewPacket(data, LayerTypeUSB, gopacket.Default)
	if el := pkt.ErrorLayer(); el != nil {
		return nil, el.Error()
	}
	l, ok := pkt.Layer(LayerTypeUSB).(*Layer)
	if !ok {
		return nil, pkg.ErrPacketTooShort
	}
	return l, nil
}

// Layer returns the gopacket layer equivalent of p. For data packets the
// payload travels as the layer payload.
func (p *Packet) Layer() *Layer {
	l := &Layer{PID: PID(p.pidByte()), Kind: p.Kind}
	switch p.Kind {
	case KindToken:
		l.Endpoint = p.Token.Endpoint
		l.Address = p.Token.Address
		l.CRC5 = p.Token.CRC5
	case KindData:
		l.CRC16 = p.CRC16
		l.Payload = p.Payload
	}
	return l
}

// Serialize encodes l (and for data packets, its payload) with gopacket.
func Serialize(l *Layer, opts gopacket.SerializeOptions) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	var err error
	if l.Kind == KindData {
		err = gopacket.SerializeLayers(buf, opts, l, gopacket.Payload(l.Payload))
	} else {
		err = gopacket.SerializeLayers(buf, opts, l)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
