// Package sim provides a deterministic, in-memory [phy.Transceiver] and a
// scripted DUT model for exercising the driver without an RTL simulator.
//
// The [Bus] clock advances only while the driver waits on it. Every packet
// the host side drives is recorded as a [Capture] when RxActive falls, and
// the installed [Responder] may answer with a DUT transmission after a
// turnaround delay. [Device] is such a responder: it filters by address,
// checks PIDs and CRCs, and models bulk and isochronous endpoints with
// data toggles and retransmission until acknowledged.
package sim
