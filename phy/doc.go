// Package phy drives packets across the parallel transceiver interface of a
// simulated DUT.
//
// The simulator is reached only through the [Transceiver] capability set:
// edge waits, pin samples and pin drives. A [Driver] turns a
// [packet.Packet] into the clock-accurate pin sequence for its direction:
//
//   - Host to DUT: RxActive is raised, each wire byte is presented on RxData
//     with an RxValid strobe and held for the speed-dependent strobe hold,
//     then RxActive falls after the end delay. RxError can be raised for
//     one byte to inject a receive error.
//   - DUT to host: the driver waits up to the timeout for TxValid, then
//     raises TxReady and samples TxData on every clock until TxValid falls.
//     The capture is compared with the expected wire bytes.
//
// Protocol faults (timeout, contention, length or content mismatch) are
// recorded in the [Result] and never abort the caller. Driver methods
// return an error only when the transceiver itself fails or the context is
// done.
//
//	drv := phy.NewDriver(bus, timing.SpeedHigh, timing.DefaultTable())
//	res, err := drv.Do(ctx, packet.NewRxHandshake(packet.HandshakeConfig{}))
//	if err == nil && !res.Passed() {
//	    for _, f := range res.Faults {
//	        log.Println(f)
//	    }
//	}
package phy
