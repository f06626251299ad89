package packet

// PID is a packet identifier. The constants hold the full wire byte: the
// 4-bit identifier in the low nibble and its one's complement in the high
// nibble.
type PID uint8

// Packet identifiers (USB 2.0 Spec Table 8-1).
const (
	PIDOut      PID = 0xE1 // Token: host-to-device transaction
	PIDAck      PID = 0xD2 // Handshake: data accepted
	PIDData0    PID = 0xC3 // Data: even toggle
	PIDPing     PID = 0xB4 // Token: high-speed flow control probe
	PIDSOF      PID = 0xA5 // Token: start of frame
	PIDData1    PID = 0x4B // Data: odd toggle
	PIDIn       PID = 0x69 // Token: device-to-host transaction
	PIDNak      PID = 0x5A // Handshake: not ready
	PIDSetup    PID = 0x2D // Token: control setup stage
	PIDStall    PID = 0x1E // Handshake: endpoint halted
	PIDReserved PID = 0x0F // Reserved identifier
)

var pidNames = [...]struct {
	pid  PID
	name string
}{
	{PIDOut, "OUT"},
	{PIDAck, "ACK"},
	{PIDData0, "DATA0"},
	{PIDPing, "PING"},
	{PIDSOF, "SOF"},
	{PIDData1, "DATA1"},
	{PIDIn, "IN"},
	{PIDNak, "NAK"},
	{PIDSetup, "SETUP"},
	{PIDStall, "STALL"},
	{PIDReserved, "RESERVED"},
}

// Nibble returns the 4-bit identifier.
func (p PID) Nibble() uint8 {
	return uint8(p) & 0x0F
}

// Encode returns the wire byte: the PID ORed with the complement of its low
// nibble shifted into the high nibble. A well-formed PID, or a bare 4-bit
// identifier, encodes to its canonical byte. A PID whose high nibble
// disagrees with its check bits (0xFF, for instance) stays malformed.
func (p PID) Encode() byte {
	return byte(p) | (^byte(p)&0x0F)<<4
}

// Valid reports whether the high nibble is the complement of the low nibble.
func (p PID) Valid() bool {
	return uint8(p)>>4 == ^uint8(p)&0x0F
}

// Canonical returns the well-formed PID for the low nibble.
func (p PID) Canonical() PID {
	return PID(PID(p.Nibble()).Encode())
}

// String returns the protocol name of the PID, or "UNKNOWN". A bare 4-bit
// identifier is named after its canonical form.
func (p PID) String() string {
	q := p
	if uint8(p) <= 0x0F {
		q = p.Canonical()
	}
	for _, e := range pidNames {
		if e.pid == q {
			return e.name
		}
	}
	return "UNKNOWN"
}

// IsToken reports whether the PID names a token packet.
func (p PID) IsToken() bool {
	switch p.Canonical() {
	case PIDOut, PIDIn, PIDSOF, PIDSetup, PIDPing:
		return true
	}
	return false
}

// IsData reports whether the PID names a data packet.
func (p PID) IsData() bool {
	switch p.Canonical() {
	case PIDData0, PIDData1:
		return true
	}
	return false
}

// IsHandshake reports whether the PID names a handshake packet.
func (p PID) IsHandshake() bool {
	switch p.Canonical() {
	case PIDAck, PIDNak, PIDStall:
		return true
	}
	return false
}

// ParsePID returns the PID with the given protocol name.
func ParsePID(name string) (PID, bool) {
	for _, e := range pidNames {
		if e.name == name {
			return e.pid, true
		}
	}
	return 0, false
}
