package session

import (
	"fmt"

	"github.com/ardnew/utmisim/phy"
	"github.com/ardnew/utmisim/timing"
)

// Report aggregates the results of a session run. A run passes only when
// every packet completed without a fault.
type Report struct {
	Speed   timing.Speed
	Address uint8
	Results []*phy.Result
}

// Passed reports whether every packet passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// Faults returns every fault in packet order.
func (r *Report) Faults() []*phy.Fault {
	var out []*phy.Fault
	for _, res := range r.Results {
		out = append(out, res.Faults...)
	}
	return out
}

// Edges returns the total rising edges waited across the run.
func (r *Report) Edges() int {
	n := 0
	for _, res := range r.Results {
		n += res.Edges
	}
	return n
}

// Summary returns a one-line verdict.
func (r *Report) Summary() string {
	verdict := "PASS"
	if !r.Passed() {
		verdict = "FAIL"
	}
	return fmt.Sprintf("%s: %d packets, %d faults, %d edges (%s)",
		verdict, len(r.Results), len(r.Faults()), r.Edges(), r.Speed)
}
