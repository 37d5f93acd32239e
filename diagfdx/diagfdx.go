// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package diagfdx implements FullDuplex-Diag (spec §4.6): a branch-and-
// segment walk over the ring, using Hello/Welcome to enumerate each
// segment and EnablePort/CableLinkDiagnosis to walk from branch to
// branch, entirely through transport.Facade.
package diagfdx

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

// State is one node of the FullDuplex-Diag state machine.
type State int

const (
	Idle State = iota
	WaitDiagMode
	WaitHello
	HelloTimeout
	WaitWelcome
	NextPort
	WaitEnable
	WaitDisable
	CableLinkDiag
	End
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case WaitDiagMode:
		return "WaitDiagMode"
	case WaitHello:
		return "WaitHello"
	case HelloTimeout:
		return "HelloTimeout"
	case WaitWelcome:
		return "WaitWelcome"
	case NextPort:
		return "NextPort"
	case WaitEnable:
		return "WaitEnable"
	case WaitDisable:
		return "WaitDisable"
	case CableLinkDiag:
		return "CableLinkDiag"
	case End:
		return "End"
	default:
		return "Unknown"
	}
}

// ErrorKind enumerates the error reports of spec §4.6.
type ErrorKind int

const (
	ErrorUnspecified ErrorKind = iota
	WelcomeNoSuccess
	PortNotUsed
	NoFdxMode
	StopDiagFailed
	Terminated
)

// commandTimeout bounds every step except the cable-link diagnosis.
const commandTimeout = 100 * time.Millisecond

// cableLinkTimeout bounds CableLinkDiagnosis, per spec §4.6.
const cableLinkTimeout = 3000 * time.Millisecond

// helloRetryCount and helloRetryInterval implement spec §4.6 step 2
// ("Broadcast Hello with retry count = 10, inter-retry 150 ms"), modeled
// with backoff.WithMaxRetries over a fixed interval — a bounded
// retry-count scenario the library's API fits directly, unlike
// Network-Starter's two open-ended guard timers.
const helloRetryCount = 10
const helloRetryInterval = 150 * time.Millisecond

// SegmentReport is delivered for every welcomed segment, per spec §4.6
// ("Each segment report carries {branch, segment_nr, source_signature,
// target_signature}").
type SegmentReport struct {
	Branch           int
	SegmentNr        int
	SourceSignature  model.Signature
	TargetSignature  model.Signature
}

// CableLinkReport is delivered when Hello retries exhaust on a branch.
type CableLinkReport struct {
	Branch          int
	SegmentNr       int
	Source          model.Signature
	CableLinkInfo   uint16
}

// EventKind identifies a FullDuplex-Diag progress notification.
type EventKind int

const (
	EventSegment EventKind = iota
	EventCableLink
	EventFinished
	EventError
)

// Event is reported through OnEvent.
type Event struct {
	Kind       EventKind
	Segment    SegmentReport
	CableLink  CableLinkReport
	Err        ErrorKind
}

// HelloResponse is the payload of an ENC.Hello result delivered on the
// facade's broadcast path, shared with package discovery's shape.
type HelloResponse struct {
	Signature model.Signature
}

// Diag drives one FullDuplex-Diag run at a time.
type Diag struct {
	facade *transport.Facade
	log    *clog.CLogger

	state       State
	numPorts    int
	currBranch  int
	currSegment int
	lastSource  model.Signature

	OnEvent func(Event)
}

// New builds a Diag sending every command through facade.
func New(facade *transport.Facade) *Diag {
	return &Diag{facade: facade, log: clog.New("fdx-diag"), state: Idle}
}

// State returns the diag's current state, primarily for tests.
func (d *Diag) State() State { return d.state }

// Start runs the branch-and-segment walk to completion (or failure),
// blocking the calling goroutine; callers run it on its own goroutine
// the same way netstarter.Starter.runQueue does for job queues.
func (d *Diag) Start() {
	d.state = WaitDiagMode
	if _, err := d.sendAndWait(0, transport.FBlockINIC, transport.FuncDiagFullDuplex, nil); err != nil {
		d.fail(NoFdxMode)
		return
	}

	d.numPorts = 0
	d.currBranch = 0
	d.currSegment = 0

	for {
		sig, ok := d.helloOnSegment(d.currSegment)
		if !ok {
			d.runCableLinkDiag()
			return
		}

		admin := model.AdminAddress(d.currSegment)
		d.state = WaitWelcome
		if _, err := d.sendAndWait(admin, transport.FBlockExtendedNetworkControl, transport.FuncWelcome, nil); err != nil {
			d.fail(WelcomeNoSuccess)
			return
		}

		if d.currSegment == 0 {
			d.numPorts = int(sig.NumPorts)
		}

		source := d.lastSource
		d.lastSource = sig
		d.report(SegmentReport{Branch: d.currBranch, SegmentNr: d.currSegment, SourceSignature: source, TargetSignature: sig})

		if sig.NumPorts > 1 {
			d.state = WaitEnable
			if _, err := d.sendAndWait(admin, transport.FBlockINIC, transport.FuncEnablePort, uint8(1)); err != nil {
				d.fail(PortNotUsed)
				return
			}
			d.currSegment++
			continue
		}

		// exactly one port: end of branch.
		if d.currBranch+1 < d.numPorts {
			d.state = WaitDisable
			if _, err := d.sendAndWait(admin, transport.FBlockINIC, transport.FuncEnablePort, uint8(0)); err != nil {
				d.fail(PortNotUsed)
				return
			}
			d.currBranch++
			d.currSegment = 0
			continue
		}

		d.finish()
		return
	}
}

// helloOnSegment broadcasts Hello for the current segment, retrying up
// to helloRetryCount times, and reports the first responding node's
// signature, or false once retries exhaust.
func (d *Diag) helloOnSegment(segment int) (model.Signature, bool) {
	d.state = WaitHello

	var result model.Signature
	found := false

	op := func() error {
		resp, err := d.sendAndWaitRaw(model.AddressBroadcastBlocking, transport.FBlockExtendedNetworkControl, transport.FuncHello, nil, commandTimeout)
		if err != nil {
			return err
		}
		if resp.Code != model.Success {
			return model.NewError(resp.Code, "Hello")
		}
		hr, ok := resp.Payload.(HelloResponse)
		if !ok {
			return model.NewError(model.ProtocolError, "Hello payload")
		}
		result = hr.Signature
		found = true
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(helloRetryInterval), helloRetryCount)
	_ = backoff.Retry(op, policy)

	if !found {
		d.state = HelloTimeout
	}
	return result, found
}

func (d *Diag) runCableLinkDiag() {
	d.state = CableLinkDiag
	resp, err := d.sendAndWaitRaw(0, transport.FBlockINIC, transport.FuncCableLinkDiag, d.lastSource.NodeAddress, cableLinkTimeout)
	if err != nil || resp.Code != model.Success {
		d.fail(ErrorUnspecified)
		return
	}
	info, _ := resp.Payload.(uint16)
	d.report2(CableLinkReport{Branch: d.currBranch, SegmentNr: d.currSegment, Source: d.lastSource, CableLinkInfo: info})
	d.finish()
}

func (d *Diag) finish() {
	d.state = End
	if _, err := d.sendAndWait(0, transport.FBlockINIC, transport.FuncDiagFullDuplexEnd, nil); err != nil {
		d.fail(StopDiagFailed)
		return
	}
	d.state = Idle
	if d.OnEvent != nil {
		d.OnEvent(Event{Kind: EventFinished})
	}
}

func (d *Diag) fail(kind ErrorKind) {
	d.log.Errorf("FullDuplex-Diag failed in state %s: %s", d.state, kindName(kind))
	d.state = Idle
	if d.OnEvent != nil {
		d.OnEvent(Event{Kind: EventError, Err: kind})
	}
}

func (d *Diag) report(seg SegmentReport) {
	if d.OnEvent != nil {
		d.OnEvent(Event{Kind: EventSegment, Segment: seg})
	}
}

func (d *Diag) report2(cl CableLinkReport) {
	if d.OnEvent != nil {
		d.OnEvent(Event{Kind: EventCableLink, CableLink: cl})
	}
}

func kindName(k ErrorKind) string {
	switch k {
	case WelcomeNoSuccess:
		return "WelcomeNoSuccess"
	case PortNotUsed:
		return "PortNotUsed"
	case NoFdxMode:
		return "NoFdxMode"
	case StopDiagFailed:
		return "StopDiagFailed"
	case Terminated:
		return "Terminated"
	default:
		return "ErrorUnspecified"
	}
}

func (d *Diag) sendAndWait(target model.NodeAddress, fblock transport.FBlockID, fn transport.FunctionID, payload any) (bool, error) {
	resp, err := d.sendAndWaitRaw(target, fblock, fn, payload, commandTimeout)
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
