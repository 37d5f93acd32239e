// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package atd

// computeMethodTwo implements the byte-accurate formula of spec §4.10.
//
// Parameter derivation, with N = TotalNodeCount, s = SourcePosition,
// k = SinkPosition:
//
//	s == 0:        M1=1, M2=0, M3=0, M4=0
//	k == 0:        M1=0, M2=1, M3=0, M4=0
//	otherwise:     M1=0, M2=0, M3=(s>k), M4=(s<k)
//
// S1/S2 count the nodes on either side of the source/sink pair around
// the ring; SP is 1 when the source's streaming-port-loads-per-frame is
// 1 (64Fs), else 0.
//
//	atd = M1*(41 + S1*41)
//	    + M2*(2040 - S2*41)
//	    + M3*(2040 - S2*41)
//	    + M4*(40  + S1*41)
//	    + SP*2083
//	    + 8333
//	atd_us = atd / 100
func computeMethodTwo(in Input) (uint16, error) {
	spl, err := in.SourceClock.SPL()
	if err != nil {
		return 0, err
	}

	s := int(in.SourcePosition)
	k := int(in.SinkPosition)
	n := int(in.TotalNodeCount)

	var m1, m2, m3, m4 int
	switch {
	case s == 0:
		m1 = 1
	case k == 0:
		m2 = 1
	case s > k:
		m3 = 1
	default: // s < k
		m4 = 1
	}

	s1, s2 := ringCounts(s, k, n)

	sp := 0
	if spl == 1 {
		sp = 1
	}

	atd := m1*(41+s1*41) +
		m2*(2040-s2*41) +
		m3*(2040-s2*41) +
		m4*(40+s1*41) +
		sp*2083 +
		8333

	return uint16(atd / 100), nil
}

// ringCounts computes S1 (nodes strictly between source and sink going
// one way around the ring) and S2 (nodes strictly between them going
// the other way, wrapping through node 0), by iterating every position
// 0..N-1 exactly as spec §4.10 describes ("computed by iterating 0...N-1
// with the two cases s>k and s<k").
func ringCounts(s, k, n int) (s1, s2 int) {
	for pos := 0; pos < n; pos++ {
		if s > k {
			if pos > k && pos < s {
				s1++
			}
			if pos > s || pos < k {
				s2++
			}
		} else if s < k {
			if pos > s && pos < k {
				s1++
			}
			if pos > k || pos < s {
				s2++
			}
		}
	}
	return s1, s2
}
