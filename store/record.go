package store

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/gopacket"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/session"
)

// VectorRecord is a stored test vector. Wire holds the exact bytes to drive,
// hex encoded, so corrupted PIDs and check fields survive storage.
type VectorRecord struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Direction   string `json:"direction"`
	PID         string `json:"pid"`
	Wire        string `json:"wire"`
	CRCValid    bool   `json:"crcValid"`
}

// FromVector converts a catalog vector to a record. The wire bytes are
// serialized through the packet layer without recomputing check fields, so
// deliberate corruption is stored as is.
func FromVector(v packet.Vector) (VectorRecord, error) {
	p := v.Packet
	wire, err := packet.Serialize(p.Layer(), gopacket.SerializeOptions{})
	if err != nil {
		return VectorRecord{}, fmt.Errorf("vector %q: %w", v.Name, err)
	}
	return VectorRecord{
		Name:        v.Name,
		Description: v.Description,
		Kind:        p.Kind.String(),
		Direction:   p.Direction.String(),
		PID:         p.PIDName(),
		Wire:        hex.EncodeToString(wire),
		CRCValid:    p.CRCValid(),
	}, nil
}

// Bytes returns the decoded wire bytes.
func (r VectorRecord) Bytes() ([]byte, error) {
	b, err := hex.DecodeString(r.Wire)
	if err != nil {
		return nil, fmt.Errorf("vector %q: %w", r.Name, err)
	}
	return b, nil
}

// Packet rebuilds the stored packet for driving toward the DUT.
func (r VectorRecord) Packet() (*packet.Packet, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	l, err := packet.Decode(b)
	if err != nil {
		// A lone byte outside the PID table is still a valid handshake vector.
		if len(b) == 1 {
			return packet.NewTxHandshake(packet.HandshakeConfig{PID: packet.PID(b[0]), RawPID: true}), nil
		}
		return nil, fmt.Errorf("vector %q: %w", r.Name, err)
	}
	return l.Packet(packet.Tx), nil
}

// FaultRecord is a stored packet fault.
type FaultRecord struct {
	Packet int    `json:"packet"`
	PID    string `json:"pid"`
	Kind   string `json:"kind"`
	Index  int    `json:"index"`
	Detail string `json:"detail"`
}

// RunRecord is a stored session run.
type RunRecord struct {
	ID       uint64        `json:"id"`
	Name     string        `json:"name"`
	Speed    string        `json:"speed"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Passed   bool          `json:"passed"`
	Packets  int           `json:"packets"`
	Edges    int           `json:"edges"`
	Summary  string        `json:"summary"`
	Faults   []FaultRecord `json:"faults,omitempty"`
}

// FromReport converts a session report to a run record.
func FromReport(name string, rep *session.Report, started time.Time, elapsed time.Duration) *RunRecord {
	rec := &RunRecord{
		Name:     name,
		Speed:    rep.Speed.String(),
		Started:  started.UTC(),
		Duration: elapsed,
		Passed:   rep.Passed(),
		Packets:  len(rep.Results),
		Edges:    rep.Edges(),
		Summary:  rep.Summary(),
	}
	for i, res := range rep.Results {
		for _, f := range res.Faults {
			rec.Faults = append(rec.Faults, FaultRecord{
				Packet: i,
				PID:    res.Packet.PIDName(),
				Kind:   f.Kind.String(),
				Index:  f.Index,
				Detail: f.Error(),
			})
		}
	}
	return rec
}
