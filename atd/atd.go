// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package atd derives the audio transport delay (ATD) between a route's
// source and sink endpoint, per spec §4.10/§4.11. Two methods coexist:
// method 2 (FSY-locked, the default) is implemented to the byte-accurate
// formula spec §4.10 and §8 require; method 1 (the older closed-form
// variant, spec §4.11) is preserved behind the same Method interface so
// an operator can select it at construction time instead of via a
// compile-time macro (Go has no preprocessor; spec §9 asks that the
// knob be "surfaced").
package atd

import "github.com/unicens-go/unicens/model"

// Method selects which ATD derivation formula Calculator uses.
type Method int

const (
	MethodTwo Method = iota // FSY-locked method; spec §4.10; default.
	MethodOne                // closed-form routing/network-delay method; spec §4.11.
)

// ClockConfig is the streaming-port clock configuration byte read from
// INIC.ResourceInfoGet offset 1 (spec §4.10, step 1).
type ClockConfig byte

// SPL maps a ClockConfig to streaming-port-loads-per-frame, per spec
// §4.10's table. An unrecognized value is an error.
func (c ClockConfig) SPL() (int, error) {
	switch c {
	case 0x01:
		return 1, nil // 64Fs
	case 0x02:
		return 2, nil // 128Fs
	case 0x04:
		return 4, nil // 256Fs
	case 0x08:
		return 8, nil // 512Fs
	default:
		return 0, model.NewError(model.ParamError, "unrecognized clock config 0x%02X", byte(c))
	}
}

// Input is everything a Calculator needs once the source/sink queries
// of spec §4.10 have completed.
type Input struct {
	SourcePosition uint16
	SinkPosition   uint16
	TotalNodeCount uint16
	SourceClock    ClockConfig

	// Method-1-only fields (spec §4.11); zero values are fine for
	// Method 2.
	SourceRoutingDelayInfo [3]uint16
	SinkRoutingDelayInfo   [3]uint16
}

// Calculator derives ATD values using a fixed Method.
type Calculator struct {
	method Method
}

// New returns a Calculator using the given Method.
func New(m Method) *Calculator {
	return &Calculator{method: m}
}

// Compute derives the ATD in microseconds for in, per the selected
// Method. Source position equal to sink position is always rejected
// (spec §4.10: "'source == sink' is rejected explicitly").
func (c *Calculator) Compute(in Input) (uint16, error) {
	if in.SourcePosition == in.SinkPosition {
		return 0, model.NewError(model.ParamError, "ATD source and sink are the same node (position %d)", in.SourcePosition)
	}
	switch c.method {
	case MethodOne:
		return computeMethodOne(in)
	default:
		return computeMethodTwo(in)
	}
}
