// Package crc implements the bit reflection primitive and the two USB check
// fields: CRC5 over token address/endpoint fields and CRC16 over data
// payloads.
//
// USB transmits every field least-significant bit first while both CRC
// generators are specified MSB first, so inputs are reflected before they
// enter the shift register and the remainder is reflected and inverted on the
// way out. All functions are pure and safe for concurrent use.
package crc

// Residue16 is the value [CRC16] returns over any payload followed by its
// own little-endian CRC16.
const Residue16 uint16 = 0x4FFE

// Generator polynomials and seeds.
const (
	poly16 uint16 = 0x8005
	seed16 uint16 = 0xFFFF
	poly5  uint32 = 0x05
	seed5  uint32 = 0x1F
)

// Reflect reverses the order of the low numBits bits of value. Bits above
// numBits are discarded.
func Reflect(value uint32, numBits uint) uint32 {
	var r uint32
	for i := uint(0); i < numBits; i++ {
		r <<= 1
		r |= value & 1
		value >>= 1
	}
	return r
}

// CRC16 returns the USB data CRC of data.
func CRC16(data []byte) uint16 {
	crc := seed16
	for _, b := range data {
		crc ^= uint16(Reflect(uint32(b), 8)) << 8
		for k := 0; k < 8; k++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly16
			} else {
				crc <<= 1
			}
		}
	}
	return ^uint16(Reflect(uint32(crc), 16))
}

// CheckCRC16 reports whether frame, a payload followed by two little-endian
// CRC bytes, passes the CRC16 redundancy check.
func CheckCRC16(frame []byte) bool {
	return len(frame) >= 2 && CRC16(frame) == Residue16
}

// CRC5 returns the 5-bit USB token CRC of an 11-bit field whose bits are
// already in transmission order (first bit transmitted in bit 10).
func CRC5(field uint16) uint8 {
	const width = 32
	poly := poly5 << (width - 5)
	crc := seed5 << (width - 5)
	data := uint32(field&0x7FF) << (width - 11)

	for i := 0; i < 11; i++ {
		if (data^crc)&(1<<(width-1)) != 0 {
			crc = crc<<1 ^ poly
		} else {
			crc <<= 1
		}
		data <<= 1
	}

	crc >>= width - 5
	crc ^= 0x1F
	return uint8(Reflect(crc, 5))
}

// TokenCRC5 returns the CRC5 of a token's endpoint and address fields.
// Endpoint is truncated to 4 bits and address to 7 bits.
func TokenCRC5(endpoint, address uint8) uint8 {
	field := uint32(endpoint&0x0F)<<7 | uint32(address&0x7F)
	return CRC5(uint16(Reflect(field, 11)))
}

// CheckTokenCRC5 reports whether crc5 is the correct check field for the
// given endpoint and address.
func CheckTokenCRC5(endpoint, address, crc5 uint8) bool {
	return crc5 == TokenCRC5(endpoint, address)
}
