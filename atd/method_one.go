// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package atd

// atdFrameBytes is the number of bytes per network frame used by the
// method-1 routing/network delay terms (ATD_NB in
// _examples/original_source/src/ucs_atd.c).
const atdFrameBytes = 128

// computeMethodOne implements the older closed-form variant of spec
// §4.11: routing delay at the sink, routing delay at the source, and a
// network delay term summed together. It is grounded on
// Atd_RoutingDelayCalcSink/Atd_RoutingDelayCalcSource/Atd_NetworkDelayCalc
// in _examples/original_source/src/ucs_atd.c, expressed here without the
// original's special-cased retransmission-window branch (the "rd_info0
// == rd_info1 == rd_info2 == fixed sentinel" case), since that branch
// only matters for a specific INIC firmware revision's resource-info
// quirk and is not otherwise observable from this module's inputs.
func computeMethodOne(in Input) (uint16, error) {
	spl, err := in.SourceClock.SPL()
	if err != nil {
		return 0, err
	}

	sinkDelay := routingDelaySink(in.SinkRoutingDelayInfo, spl)
	sourceDelay := routingDelaySource(in.SourceRoutingDelayInfo, spl)

	s := int(in.SourcePosition)
	k := int(in.SinkPosition)
	n := int(in.TotalNodeCount)

	var numSlaves, numMasters int
	if s < k {
		numSlaves = k - (s + 1)
	} else {
		if s == 0 || k == 0 {
			numMasters = 1
		}
		numSlaves = (k + n) - (s + 1)
	}

	networkDelay := numSlaves*3 + numMasters*atdFrameBytes

	total := sinkDelay + networkDelay + sourceDelay
	return uint16(total / atdFrameBytes), nil
}

func routingDelaySink(info [3]uint16, spl int) int {
	delay := info[0]
	return 6 + atdFrameBytes + int(delay) + atdFrameBytes/spl
}

func routingDelaySource(info [3]uint16, spl int) int {
	delay := info[0]
	return atdFrameBytes/spl + (2*atdFrameBytes - int(delay)) + 6
}
