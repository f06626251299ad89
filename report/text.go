package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/phy"
	"github.com/ardnew/utmisim/session"
)

// WriteText writes the packet trace of rep followed by its faults and
// verdict. The trace uses the same lines a verification log prints for
// each packet, so it can be diffed against an expected-output file.
func WriteText(w io.Writer, name string, rep *session.Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Run: %s (%s, address %d)\n", name, rep.Speed, rep.Address)
	for _, res := range rep.Results {
		writePacket(bw, res)
	}

	faults := rep.Faults()
	if len(faults) > 0 {
		fmt.Fprintf(bw, "Faults: %d\n", len(faults))
		for i, res := range rep.Results {
			for _, f := range res.Faults {
				fmt.Fprintf(bw, "\tpacket %d (%s): ERROR: %s\n", i, res.Packet.PIDName(), f)
			}
		}
	}
	fmt.Fprintln(bw, rep.Summary())
	return bw.Flush()
}

// ExpectedText returns the trace a passing run of packets produces.
func ExpectedText(packets []*packet.Packet) string {
	var sb strings.Builder
	for _, p := range packets {
		sb.WriteString(packetLines(p, p.Bytes(packet.FormWire)))
	}
	return sb.String()
}

func writePacket(w io.Writer, res *phy.Result) {
	p := res.Packet
	if p.Direction == packet.Rx {
		if res.State == phy.StateTimedOut {
			fmt.Fprintf(w, "ERROR: Timed out waiting for packet\n")
			return
		}
		io.WriteString(w, packetLines(p, res.Captured))
		return
	}
	io.WriteString(w, packetLines(p, nil))
}

func packetLines(p *packet.Packet, captured []byte) string {
	if p.Direction == packet.Rx {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Packet:\t%s\n", p.Direction)
		for _, b := range captured {
			fmt.Fprintf(&sb, "\tRX byte: %#x\n", b)
		}
		return sb.String()
	}
	return fmt.Sprintf("Packet:\t%s\n\tPID: %s (%#x)\n", p.Direction, p.PIDName(), p.Bytes(packet.FormWire)[0])
}
