// Package session sequences packets into transactions and runs them
// against a DUT through a [phy.Driver].
//
// A [Session] tracks the per-endpoint data toggles and running payload
// counters a host would keep, so transaction builders such as
// [Session.BulkIn] and [Session.IsoOut] produce the expected packets for
// each step. Packets can also be added directly to build negative vectors:
//
//	s := session.New(timing.SpeedHigh, 1)
//	s.BulkIn(session.Transfer{Endpoint: 1, Length: 10})
//	s.Add(packet.NewTxHandshake(packet.HandshakeConfig{PID: 0xFF}))
//	rep, err := s.Run(ctx, drv)
//
// Faults never stop a run. The [Report] aggregates every packet result and
// fails if any packet recorded a fault.
//
// Named [Scenario] values pair a session with the simulated DUT behaviour
// it expects and are used by the command line tool.
package session
