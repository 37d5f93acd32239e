// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package atd

import (
	"time"

	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

// commandTimeout is the per-step timeout for the three queries of spec
// §4.10 (ResourceInfoGet, two NetworkInfoGet calls); no duration is
// specified for ATD specifically, so this module reuses the 100ms
// command timeout used throughout the diagnosis and programming FSMs.
const commandTimeout = 100 * time.Millisecond

// State is the ATD internal state of spec §3, extended with the
// resource-info preamble spec §4.10 describes as step 1 but spec §3
// does not name as a distinct state.
type State int

const (
	Idle State = iota
	WaitResourceInfo
	NetInfoSource
	NetInfoSink
	Done
)

// Session drives the three-query sequence of spec §4.10 ("method 2,
// FSY-locked") and reports the resulting ATD via Callback.
//
// Session is grounded on the teacher's Coordinator.performPartialComputation
// (compute/components/coordinator.go): a single outstanding request,
// timeout-bounded, whose completion triggers the next step.
type Session struct {
	facade *transport.Facade
	calc   *Calculator

	state State

	sourceINIC, sinkINIC     model.NodeAddress
	sourcePortHandle         uint16
	totalNodeCount           uint16
	sourceClock              ClockConfig
	sourcePos, sinkPos       uint16

	Callback func(result uint16, err error)
}

// NewSession builds a Session using calc for the final formula.
func NewSession(facade *transport.Facade, calc *Calculator) *Session {
	return &Session{facade: facade, calc: calc, state: Idle}
}

// Start runs the query sequence for a route whose source and sink
// addresses must differ and be nonzero (spec §4.10 precondition).
func (s *Session) Start(sourceINIC, sinkINIC model.NodeAddress, sourcePortHandle uint16, totalNodeCount uint16) {
	if sourceINIC == sinkINIC || sourceINIC == 0 || sinkINIC == 0 {
		s.finish(0, model.NewError(model.ParamError, "ATD requires distinct, nonzero source/sink node addresses"))
		return
	}
	if s.state != Idle {
		s.finish(0, model.NewError(model.ApiLocked, "ATD session already running"))
		return
	}

	s.sourceINIC = sourceINIC
	s.sinkINIC = sinkINIC
	s.sourcePortHandle = sourcePortHandle
	s.totalNodeCount = totalNodeCount
	s.state = WaitResourceInfo

	err := s.facade.Send(transport.Request{
		Target:   sourceINIC,
		FBlock:   transport.FBlockINIC,
		Function: transport.FuncResourceInfoGet,
		Payload:  s.sourcePortHandle,
	}, commandTimeout, s.onResourceInfo)
	if err != nil {
		s.finish(0, err)
	}
}

// ResourceInfoResult is the payload carried by the ResourceInfoGet
// Response: offset 1 of the info list is the clock config byte (spec
// §4.10, step 1).
type ResourceInfoResult struct {
	ClockConfig byte
}

// NetworkInfoResult is the payload carried by a NetworkInfoGet Response.
type NetworkInfoResult struct {
	NodePosition uint16
}

func (s *Session) onResourceInfo(resp transport.Response) {
	if resp.Code != model.Success {
		s.finish(0, model.NewError(resp.Code, "ResourceInfoGet failed"))
		return
	}
	info, ok := resp.Payload.(ResourceInfoResult)
	if !ok {
		s.finish(0, model.NewError(model.ProtocolError, "malformed ResourceInfoGet response"))
		return
	}
	s.sourceClock = ClockConfig(info.ClockConfig)
	if _, err := s.sourceClock.SPL(); err != nil {
		s.finish(0, err)
		return
	}

	s.state = NetInfoSource
	err := s.facade.Send(transport.Request{
		Target:   s.sourceINIC,
		FBlock:   transport.FBlockINIC,
		Function: transport.FuncNetworkInfoGet,
	}, commandTimeout, s.onSourceNetworkInfo)
	if err != nil {
		s.finish(0, err)
	}
}

func (s *Session) onSourceNetworkInfo(resp transport.Response) {
	if resp.Code != model.Success {
		s.finish(0, model.NewError(resp.Code, "NetworkInfoGet(source) failed"))
		return
	}
	info, ok := resp.Payload.(NetworkInfoResult)
	if !ok {
		s.finish(0, model.NewError(model.ProtocolError, "malformed NetworkInfoGet response"))
		return
	}
	s.sourcePos = info.NodePosition

	s.state = NetInfoSink
	err := s.facade.Send(transport.Request{
		Target:   s.sinkINIC,
		FBlock:   transport.FBlockINIC,
		Function: transport.FuncNetworkInfoGet,
	}, commandTimeout, s.onSinkNetworkInfo)
	if err != nil {
		s.finish(0, err)
	}
}

func (s *Session) onSinkNetworkInfo(resp transport.Response) {
	if resp.Code != model.Success {
		s.finish(0, model.NewError(resp.Code, "NetworkInfoGet(sink) failed"))
		return
	}
	info, ok := resp.Payload.(NetworkInfoResult)
	if !ok {
		s.finish(0, model.NewError(model.ProtocolError, "malformed NetworkInfoGet response"))
		return
	}
	s.sinkPos = info.NodePosition

	result, err := s.calc.Compute(Input{
		SourcePosition: s.sourcePos,
		SinkPosition:   s.sinkPos,
		TotalNodeCount: s.totalNodeCount,
		SourceClock:    s.sourceClock,
	})
	s.finish(result, err)
}

func (s *Session) finish(result uint16, err error) {
	s.state = Idle
	if s.Callback != nil {
		s.Callback(result, err)
	}
}
