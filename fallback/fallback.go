// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package fallback implements Fallback-Protect (spec §4.8): puts the
// local INIC into fallback mode, negotiates the fallback role through
// ReverseRequest, and stays in fallback until the network status leaves
// it with Regular availability info.
package fallback

import (
	"sync"
	"time"

	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/eventbus"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

// State is one node of the Fallback-Protect state machine.
type State int

const (
	Idle State = iota
	Started
	WaitNeg
	WaitRevReq
	StayFbp
	End
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Started:
		return "Started"
	case WaitNeg:
		return "WaitNeg"
	case WaitRevReq:
		return "WaitRevReq"
	case StayFbp:
		return "StayFbp"
	case End:
		return "End"
	default:
		return "Unknown"
	}
}

// Timing constants, per spec §4.8.
const (
	tSwitch       = 200 * time.Millisecond
	tSend         = 100 * time.Millisecond
	tNegGuard     = 500 * time.Millisecond
	tNegInitiator = 600 * time.Millisecond
	tCmd          = 100 * time.Millisecond
	tNegPhase     = 600 * time.Millisecond
	tTimeout      = tNegInitiator + 17*time.Second
)

// NeverLeave is the special t_back value meaning "never leave on the
// other nodes" (spec §4.8).
const NeverLeave uint16 = 0xFFFF

// EventKind identifies a Fallback-Protect progress notification.
type EventKind int

const (
	EventSuccess EventKind = iota
	EventEnd
	EventError
)

// Event is reported through OnEvent.
type Event struct {
	Kind EventKind
	Err  error
}

const requestIDFBP = "FBP"

type reverseRequestPayload struct {
	RequestID     string
	NegGuard      time.Duration
	NegInitiator  time.Duration
}

// Protect drives one Fallback-Protect session.
type Protect struct {
	facade *transport.Facade
	status *eventbus.MaskedSubject
	log    *clog.CLogger

	mu          sync.Mutex
	state       State
	stopPending bool
	subscribed  bool
	statusToken eventbus.Token

	OnEvent func(Event)
}

// New builds a Protect sending commands through facade and watching
// status notifications delivered on status.
func New(facade *transport.Facade, status *eventbus.MaskedSubject) *Protect {
	return &Protect{facade: facade, status: status, log: clog.New("fallback"), state: Idle}
}

// State returns the current state, primarily for tests.
func (p *Protect) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins fallback negotiation for the given duration (NeverLeave
// for "never leave on the other nodes"), per spec §4.8's start
// algorithm. It blocks the calling goroutine through the negotiation
// round trip; callers run it on its own goroutine.
func (p *Protect) Start(duration uint16) {
	p.mu.Lock()
	p.state = Started
	p.mu.Unlock()

	if _, err := p.sendAndWait(transport.FBlockINIC, transport.FuncNetworkFallback, fallbackStartPayload{Start: true, Duration: duration}, tCmd); err != nil {
		p.fail(err)
		return
	}

	p.setState(WaitNeg)
	time.Sleep(tNegPhase)

	if p.consumeStopPending() {
		p.doStop()
		return
	}

	p.setState(WaitRevReq)
	resp, err := p.sendAndWaitRaw(transport.FBlockExtendedNetworkControl, transport.FuncReverseRequest, reverseRequestPayload{
		RequestID: requestIDFBP, NegGuard: tNegGuard, NegInitiator: tNegInitiator,
	}, tTimeout)

	if p.consumeStopPending() {
		p.doStop()
		return
	}

	if err != nil || resp.Code != model.Success {
		p.fail(err)
		return
	}

	p.setState(StayFbp)
	if p.OnEvent != nil {
		p.OnEvent(Event{Kind: EventSuccess})
	}

	p.subscribeStatus()
}

// Stop ends fallback mode. If called while a negotiation round trip is
// still in flight (WaitNeg/WaitRevReq), the stop is queued and carried
// out once that round trip completes, per
// _examples/original_source/src/ucs_fbp.c (SPEC_FULL.md's supplemented
// features).
func (p *Protect) Stop() {
	p.mu.Lock()
	if p.state == WaitNeg || p.state == WaitRevReq {
		p.stopPending = true
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.doStop()
}

func (p *Protect) consumeStopPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopPending {
		p.stopPending = false
		return true
	}
	return false
}

func (p *Protect) doStop() {
	p.unsubscribeStatus()
	if _, err := p.sendAndWait(transport.FBlockINIC, transport.FuncNetworkFallback, fallbackStartPayload{Start: false}, tCmd); err != nil {
		p.log.Errorf("NetworkFallbackEnd failed: %v", err)
	}
	p.setState(Idle)
}

func (p *Protect) subscribeStatus() {
	p.mu.Lock()
	if p.subscribed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	tok := p.status.Subscribe(uint32(model.MaskAvailability|model.MaskAvailInfo), eventbus.ObserverFunc(p.onStatus))
	p.mu.Lock()
	p.statusToken = tok
	p.subscribed = true
	p.mu.Unlock()
}

func (p *Protect) unsubscribeStatus() {
	p.mu.Lock()
	if !p.subscribed {
		p.mu.Unlock()
		return
	}
	p.subscribed = false
	tok := p.statusToken
	p.mu.Unlock()
	p.status.Unsubscribe(tok)
}

func (p *Protect) onStatus(evt eventbus.Event) {
	status, ok := evt.Payload.(model.NetworkStatus)
	if !ok {
		return
	}
	// spec §4.8 step 5: "When the network status changes away from
	// Fallback with Regular availability info, report End and return to
	// Idle."
	if status.AvailInfo == model.AvailInfoRegular {
		p.unsubscribeStatus()
		p.setState(Idle)
		if p.OnEvent != nil {
			p.OnEvent(Event{Kind: EventEnd})
		}
	}
}

func (p *Protect) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Protect) fail(err error) {
	p.log.Errorf("fallback negotiation failed: %v", err)
	p.setState(Idle)
	if p.OnEvent != nil {
		p.OnEvent(Event{Kind: EventError, Err: err})
	}
}

type fallbackStartPayload struct {
	Start    bool
	Duration uint16
}

func (p *Protect) sendAndWait(fblock transport.FBlockID, fn transport.FunctionID, payload any, timeout time.Duration) (bool, error) {
	resp, err := p.sendAndWaitRaw(fblock, fn, payload, timeout)
	if err != nil {
		return false, err
	}
	if resp.Code != model.Success {
		return false, model.NewError(resp.Code, "%v failed", fn)
	}
	return true, nil
}

func (p *Protect) sendAndWaitRaw(fblock transport.FBlockID, fn transport.FunctionID, payload any, timeout time.Duration) (transport.Response, error) {
	done := make(chan transport.Response, 1)
	err := p.facade.Send(transport.Request{
		Target:   0,
		FBlock:   fblock,
		Function: fn,
		Payload:  payload,
	}, timeout, func(r transport.Response) { done <- r })
	if err != nil {
		return transport.Response{}, err
	}
	return <-done, nil
}
