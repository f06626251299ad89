// Package packet models USB packets at the byte level.
//
// A [Packet] is one of three kinds:
//
//   - Token: PID, 7-bit address, 4-bit endpoint and a CRC5 check field
//   - Data: PID, payload and a little-endian CRC16
//   - Handshake: PID only
//
// Packets are built from explicit configuration structs whose zero values
// describe a well-formed packet. Negative vectors are produced by setting
// one field: BadCRC, an explicit CRC5 or CRC16, RawPID, or a PID whose check
// nibble disagrees with its identifier:
//
//	tok := packet.NewToken(packet.TokenConfig{
//	    PID:      packet.PIDIn,
//	    Endpoint: 1,
//	    Address:  1,
//	    BadCRC:   true,
//	})
//	wire := tok.Bytes(packet.FormWire)
//
// # Byte forms
//
// [FormWire] is the octet stream that crosses the transceiver data pins.
// [FormShort] is a logical form used when comparing packets at the protocol
// level.
//
// # Decoding
//
// Captured bytes are decoded through a gopacket layer registered as
// [LayerTypeUSB]:
//
//	l, err := packet.Decode(captured)
//	if err == nil && !l.CRCValid() {
//	    // corrupted on the wire
//	}
package packet
