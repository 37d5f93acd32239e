// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package diaghdx implements HalfDuplex-Diag (spec §4.7): a
// position-by-position walk that enables TX on the master, reverse-
// requests each successive node, and tears the ring back down once the
// walk ends, whatever its outcome.
package diaghdx

import (
	"time"

	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

// State is one node of the HalfDuplex-Diag state machine.
type State int

const (
	Idle State = iota
	Started
	WaitEnabled
	WaitSigProp
	WaitResult
	WaitSignalOn
	WaitForEnd
	End
	Startup
	Shutdown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Started:
		return "Started"
	case WaitEnabled:
		return "WaitEnabled"
	case WaitSigProp:
		return "WaitSigProp"
	case WaitResult:
		return "WaitResult"
	case WaitSignalOn:
		return "WaitSignalOn"
	case WaitForEnd:
		return "WaitForEnd"
	case End:
		return "End"
	case Startup:
		return "Startup"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Timing constants, per spec §4.7. t_signal_on is not given numerically
// in spec §4.7 itself; ucs_diag_hdx.c clarifies it equals t_switch
// (SPEC_FULL.md's supplemented features).
const (
	tSwitch    = 100 * time.Millisecond
	tSend      = 100 * time.Millisecond
	tBack      = 500 * time.Millisecond
	tWait      = 300 * time.Millisecond
	tSigProp   = tSend + 100*time.Millisecond
	tCmd       = 100 * time.Millisecond
	tRevTimeout = tSwitch + tBack + 100*time.Millisecond
	tSignalOn  = tSwitch

	startupSettle  = 2 * time.Second
	shutdownSettle = 300 * time.Millisecond
)

// TesterResult is the outcome of one ReverseRequest round trip, per
// spec §4.7 step 6.
type TesterResult int

const (
	NoResult TesterResult = iota
	SlaveOK
	SlaveWrongNodePosition
	MasterNoRxSignal
	MasterRxLock
)

// ReverseRequestResult is the payload of a FuncReverseRequest response.
type ReverseRequestResult struct {
	Tester     TesterResult
	Signature  model.Signature
	CableDiag  uint16
}

// Outcome enumerates the final reports of spec §4.7.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSlaveWrongPos
	OutcomeRingBreak
	OutcomeNoRingBreak
	OutcomeNoResult
	OutcomeTimeout
	OutcomeError
	OutcomeEnd
)

// EventKind identifies a HalfDuplex-Diag progress notification.
type EventKind int

const (
	EventPositionResult EventKind = iota
	EventEnd
)

// Event is reported through OnEvent.
type Event struct {
	Kind      EventKind
	Outcome   Outcome
	Position  uint16
	Signature model.Signature
	CableDiag uint16
}

// Diag drives one HalfDuplex-Diag run at a time.
type Diag struct {
	facade *transport.Facade
	log    *clog.CLogger

	state          State
	currentPos     uint16
	firstErrorSent bool

	OnEvent func(Event)
}

// New builds a Diag sending every command through facade.
func New(facade *transport.Facade) *Diag {
	return &Diag{facade: facade, log: clog.New("hdx-diag"), state: Idle}
}

// State returns the diag's current state, primarily for tests.
func (d *Diag) State() State { return d.state }

// Start runs the position-by-position walk to completion, blocking the
// calling goroutine; callers run it on its own goroutine.
func (d *Diag) Start(versionLimit uint16) {
	d.state = Started
	if _, err := d.sendAndWait(0, transport.FBlockINIC, transport.FuncDiagHalfDuplex, nil, tCmd); err != nil {
		d.reportOnce(OutcomeError, 0, model.Signature{}, 0)
		d.end()
		return
	}

	d.currentPos = 1
	d.firstErrorSent = false

	for {
		d.state = WaitEnabled
		if _, err := d.sendAndWait(0, transport.FBlockINIC, transport.FuncEnableTx, true, tCmd); err != nil {
			d.reportOnce(OutcomeError, d.currentPos, model.Signature{}, 0)
			break
		}

		d.state = WaitSigProp
		time.Sleep(tSigProp)

		d.state = WaitResult
		admin := model.AdminAddress(int(d.currentPos) - 1)
		resp, err := d.sendAndWaitRaw(admin, transport.FBlockExtendedNetworkControl, transport.FuncReverseRequest,
			reverseRequestPayload{Wait: tWait, VersionLimit: versionLimit}, tRevTimeout)
		if err != nil {
			d.reportOnce(OutcomeTimeout, d.currentPos, model.Signature{}, 0)
			break
		}
		if resp.Code != model.Success {
			d.reportOnce(OutcomeError, d.currentPos, model.Signature{}, 0)
			break
		}

		rr, ok := resp.Payload.(ReverseRequestResult)
		if !ok {
			d.reportOnce(OutcomeError, d.currentPos, model.Signature{}, 0)
			break
		}

		switch rr.Tester {
		case SlaveOK:
			d.report(EventPositionResult, OutcomeSuccess, d.currentPos, rr.Signature, rr.CableDiag)
			d.currentPos++
			d.state = WaitSignalOn
			time.Sleep(tSignalOn)
			continue
		case SlaveWrongNodePosition:
			d.reportOnce(OutcomeSlaveWrongPos, d.currentPos, rr.Signature, 0)
		case MasterNoRxSignal:
			d.reportOnce(OutcomeRingBreak, d.currentPos, rr.Signature, 0)
		case MasterRxLock:
			d.reportOnce(OutcomeNoRingBreak, d.currentPos, rr.Signature, 0)
		default:
			d.reportOnce(OutcomeNoResult, d.currentPos, rr.Signature, 0)
		}
		break
	}

	d.waitForEnd()
}

func (d *Diag) waitForEnd() {
	d.state = WaitForEnd
	time.Sleep(tBack)

	if _, err := d.sendAndWait(0, transport.FBlockINIC, transport.FuncDiagHalfDuplexEnd, nil, tCmd); err != nil {
		d.log.Errorf("NetworkDiagnosisHalfDuplexEnd failed: %v", err)
	}
	d.end()
}

func (d *Diag) end() {
	d.state = Startup
	if _, err := d.sendAndWait(0, transport.FBlockINIC, transport.FuncNetworkStartup, nil, tCmd); err != nil {
		d.log.Errorf("NetworkStartup failed: %v", err)
	}
	time.Sleep(startupSettle)
	d.state = Shutdown
	if _, err := d.sendAndWait(0, transport.FBlockINIC, transport.FuncNetworkShutdown, nil, tCmd); err != nil {
		d.log.Errorf("NetworkShutdown failed: %v", err)
	}
	time.Sleep(shutdownSettle)

	d.state = Idle
	if d.OnEvent != nil {
		d.OnEvent(Event{Kind: EventEnd, Outcome: OutcomeEnd})
	}
}

// reportOnce reports an Outcome, but only the first error of a run, per
// spec §4.7 ("first error only is reported"). Success is always
// reported, never suppressed.
func (d *Diag) reportOnce(outcome Outcome, pos uint16, sig model.Signature, cableDiag uint16) {
	if outcome != OutcomeSuccess {
		if d.firstErrorSent {
			return
		}
		d.firstErrorSent = true
	}
	d.report(EventPositionResult, outcome, pos, sig, cableDiag)
}

func (d *Diag) report(kind EventKind, outcome Outcome, pos uint16, sig model.Signature, cableDiag uint16) {
	if d.OnEvent != nil {
		d.OnEvent(Event{Kind: kind, Outcome: outcome, Position: pos, Signature: sig, CableDiag: cableDiag})
	}
}

type reverseRequestPayload struct {
	Wait         time.Duration
	VersionLimit uint16
}

func (d *Diag) sendAndWait(target model.NodeAddress, fblock transport.FBlockID, fn transport.FunctionID, payload any, timeout time.Duration) (bool, error) {
	resp, err := d.sendAndWaitRaw(target, fblock, fn, payload, timeout)
	if err != nil {
		return false, err
	}
	if resp.Code != model.Success {
		return false, model.NewError(resp.Code, "%v failed", fn)
	}
	return true, nil
}

func (d *Diag) sendAndWaitRaw(target model.NodeAddress, fblock transport.FBlockID, fn transport.FunctionID, payload any, timeout time.Duration) (transport.Response, error) {
	done := make(chan transport.Response, 1)
	err := d.facade.Send(transport.Request{
		Target:   target,
		FBlock:   fblock,
		Function: fn,
		Payload:  payload,
	}, timeout, func(r transport.Response) { done <- r })
	if err != nil {
		return transport.Response{}, err
	}
	return <-done, nil
}
