package session

import (
	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/timing"
)

// Transfer describes one transaction.
type Transfer struct {
	Endpoint uint8
	Length   int

	// InterEventDelay is the number of clocks before the token. Zero keeps
	// the timing table default.
	InterEventDelay int
}

func (s *Session) token(pid packet.PID, t Transfer) *packet.Packet {
	cfg := packet.TokenConfig{
		PID:      pid,
		Endpoint: t.Endpoint,
		Address:  s.Address,
	}
	if t.InterEventDelay > 0 {
		cfg.Timing.InterEventDelay = timing.Clocks(t.InterEventDelay)
	}
	return packet.NewToken(cfg)
}

// BulkIn adds an IN token, the expected data packet and the host ACK. It
// returns the payload the DUT is expected to send.
func (s *Session) BulkIn(t Transfer) []byte {
	payload := s.PayloadIn(t.Endpoint, t.Length, false)
	s.Add(
		s.token(packet.PIDIn, t),
		packet.NewRxData(packet.DataConfig{PID: s.Toggle(t.Endpoint, packet.Rx), Payload: payload}),
		packet.NewTxHandshake(packet.HandshakeConfig{PID: packet.PIDAck}),
	)
	s.flip(t.Endpoint, packet.Rx)
	return payload
}

// BulkOut adds an OUT token, the data packet and the expected DUT ACK. It
// returns the payload sent.
func (s *Session) BulkOut(t Transfer) []byte {
	payload := s.PayloadOut(t.Endpoint, t.Length, false)
	s.Add(
		s.token(packet.PIDOut, t),
		packet.NewTxData(packet.DataConfig{PID: s.Toggle(t.Endpoint, packet.Tx), Payload: payload}),
		packet.NewRxHandshake(packet.HandshakeConfig{PID: packet.PIDAck}),
	)
	s.flip(t.Endpoint, packet.Tx)
	return payload
}

// IsoIn adds an IN token and the expected DATA0 packet. Isochronous
// transactions carry no handshake.
func (s *Session) IsoIn(t Transfer) []byte {
	payload := s.PayloadIn(t.Endpoint, t.Length, false)
	s.Add(
		s.token(packet.PIDIn, t),
		packet.NewRxData(packet.DataConfig{PID: packet.PIDData0, Payload: payload}),
	)
	return payload
}

// IsoOut adds an OUT token and a DATA0 packet.
func (s *Session) IsoOut(t Transfer) []byte {
	payload := s.PayloadOut(t.Endpoint, t.Length, false)
	s.Add(
		s.token(packet.PIDOut, t),
		packet.NewTxData(packet.DataConfig{PID: packet.PIDData0, Payload: payload}),
	)
	return payload
}

// SOF adds a start-of-frame token.
func (s *Session) SOF(frame uint16, badCRC bool) {
	s.Add(packet.NewSOF(frame, badCRC, packet.DefaultSOFInterEventDelay))
}
