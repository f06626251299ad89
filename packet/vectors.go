package packet

import "fmt"

// Vector is a named packet used to exercise a DUT, usually with one field
// deliberately wrong.
type Vector struct {
	Name        string
	Description string
	Packet      *Packet
}

// Catalog returns the standard set of positive and negative vectors. Data
// vectors are generated for payload lengths 0 through maxPayload.
func Catalog(maxPayload int) []Vector {
	const (
		addr = 1
		ep   = 3
	)
	badPID := uint8(0xFF)

	v := []Vector{
		{
			Name:        "token-out",
			Description: "well-formed OUT token",
			Packet:      NewToken(TokenConfig{PID: PIDOut, Endpoint: ep, Address: addr}),
		},
		{
			Name:        "token-in",
			Description: "well-formed IN token",
			Packet:      NewToken(TokenConfig{PID: PIDIn, Endpoint: ep, Address: addr}),
		},
		{
			Name:        "token-bad-crc5",
			Description: "OUT token with the complemented CRC5",
			Packet:      NewToken(TokenConfig{PID: PIDOut, Endpoint: ep, Address: addr, BadCRC: true, Invalid: true}),
		},
		{
			Name:        "token-crc5-ff",
			Description: "OUT token with every check bit set",
			Packet:      NewToken(TokenConfig{PID: PIDOut, Endpoint: ep, Address: addr, CRC5: &badPID, Invalid: true}),
		},
		{
			Name:        "token-endpoint-overflow",
			Description: "endpoint 0x13 wraps to 3",
			Packet:      NewToken(TokenConfig{PID: PIDIn, Endpoint: 0x13, Address: addr}),
		},
		{
			Name:        "token-address-overflow",
			Description: "address 0x81 wraps to 1",
			Packet:      NewToken(TokenConfig{PID: PIDIn, Endpoint: ep, Address: 0x81}),
		},
		{
			Name:        "token-other-address",
			Description: "IN token for a device that is not the DUT",
			Packet:      NewToken(TokenConfig{PID: PIDIn, Endpoint: ep, Address: addr + 1, Invalid: true}),
		},
		{
			Name:        "sof-100",
			Description: "start of frame 100",
			Packet:      NewSOF(100, false, DefaultSOFInterEventDelay),
		},
		{
			Name:        "sof-max",
			Description: "start of frame 0x7FF",
			Packet:      NewSOF(MaxFrame, false, DefaultSOFInterEventDelay),
		},
		{
			Name:        "sof-bad-crc5",
			Description: "start of frame 100 with the complemented CRC5",
			Packet:      NewSOF(100, true, DefaultSOFInterEventDelay),
		},
		{
			Name:        "handshake-ack",
			Description: "well-formed ACK",
			Packet:      NewTxHandshake(HandshakeConfig{PID: PIDAck}),
		},
		{
			Name:        "handshake-bad-pid",
			Description: "handshake PID 0xFF whose check nibble disagrees",
			Packet:      NewTxHandshake(HandshakeConfig{PID: 0xFF}),
		},
		{
			Name:        "handshake-raw-nibble",
			Description: "bare ACK identifier 0x02 sent without its check nibble",
			Packet:      NewTxHandshake(HandshakeConfig{PID: PID(PIDAck.Nibble()), RawPID: true}),
		},
	}

	for n := 0; n <= maxPayload; n++ {
		v = append(v,
			Vector{
				Name:        fmt.Sprintf("data0-len%d", n),
				Description: fmt.Sprintf("DATA0 with a %d-byte counting payload", n),
				Packet:      NewTxData(DataConfig{PID: PIDData0, Payload: StepPayload(1, n)}),
			},
			Vector{
				Name:        fmt.Sprintf("data0-bad-crc-len%d", n),
				Description: fmt.Sprintf("DATA0 with a %d-byte payload and CRC16 0x%04X", n, BadCRC16),
				Packet:      NewTxData(DataConfig{PID: PIDData0, Payload: StepPayload(1, n), BadCRC: true}),
			},
		)
	}
	return v
}

// Find returns the vector with the given name.
func Find(vectors []Vector, name string) (Vector, bool) {
	for _, v := range vectors {
		if v.Name == name {
			return v, true
		}
	}
	return Vector{}, false
}
