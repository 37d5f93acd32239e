// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package discovery implements Node-Discovery (spec §4.5): broadcast
// ENC.Hello.Get, decide each responding node's fate through an
// application-supplied eval function, and allocate it the next transient
// admin address on Welcome.
package discovery

import (
	"sync"
	"time"

	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/eventbus"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/scheduler"
	"github.com/unicens-go/unicens/transport"
)

// broadcastObserver adapts a func(transport.Response) to eventbus.Observer,
// unwrapping the transport.Response the facade's DispatchBroadcast wraps
// into an eventbus.Event's Payload.
type broadcastObserver func(transport.Response)

func (o broadcastObserver) Notify(evt eventbus.Event) {
	if resp, ok := evt.Payload.(transport.Response); ok {
		o(resp)
	}
}

// helloWindow bounds how long Discovery waits for further Hello
// responses before concluding the round; spec §4.5 does not give this
// value explicitly, so this module reuses the 150ms inter-retry interval
// spec §4.6's Hello retry uses for the same broadcast.
const helloWindow = 150 * time.Millisecond

// welcomeTimeout bounds a single Welcome.SetResult round trip, matching
// the 100ms command timeout used throughout the diagnosis FSMs.
const welcomeTimeout = 100 * time.Millisecond

// EvalResult is the outcome of evaluating a responding node's signature.
type EvalResult int

const (
	Ignore EvalResult = iota
	Welcome
	UnknownNode
)

// EvalFunc decides a responding node's fate, per spec §4.5's
// "eval_fptr(signature) -> {Welcome, Ignore, Unknown}".
type EvalFunc func(sig model.Signature) EvalResult

// EventKind identifies a Node-Discovery progress notification.
type EventKind int

const (
	EventTargetFound EventKind = iota
	EventStopped
	EventUnknown
	EventWelcomeSuccess
)

// Event is reported through OnEvent.
type Event struct {
	Kind      EventKind
	Signature model.Signature
	Admin     model.NodeAddress
}

// HelloResponse is the payload carried by an EXC Hello response
// delivered through the facade's broadcast path.
type HelloResponse struct {
	Signature model.Signature
}

// WelcomeRequest is the payload sent with ENC.Welcome.SetResult.
type WelcomeRequest struct {
	Signature model.Signature
	Admin     model.NodeAddress
}

// Discovery drives one Node-Discovery round at a time.
type Discovery struct {
	facade *transport.Facade
	eval   EvalFunc
	log    *clog.CLogger

	tracker *welcomeTracker

	mu          sync.Mutex
	running     bool
	nextSegment int
	gotResponse bool
	windowTimer scheduler.OneShot
	subscribed  bool
	subToken    eventbus.Token

	OnEvent func(Event)
}

// New builds a Discovery using facade for every command and eval to
// classify each responding node.
func New(facade *transport.Facade, eval EvalFunc) *Discovery {
	return &Discovery{
		facade:  facade,
		eval:    eval,
		log:     clog.New("discovery"),
		tracker: newWelcomeTracker(),
	}
}

// helloKey is the broadcast key Hello responses are delivered on.
var helloKey = transport.Key{FBlock: transport.FBlockExtendedNetworkControl, Function: transport.FuncHello, OpType: transport.OpTypeStatus}

// Start broadcasts ENC.Hello.Get with the given version limit and begins
// collecting responses. Calling Start while already running is a no-op.
func (d *Discovery) Start(versionLimit uint16) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.nextSegment = 0
	d.gotResponse = false
	d.mu.Unlock()

	tok := d.facade.SubscribeBroadcast(helloKey, broadcastObserver(d.onHello))
	d.mu.Lock()
	d.subToken = tok
	d.subscribed = true
	d.mu.Unlock()

	if err := d.facade.Fire(transport.Request{
		Target:   model.AddressBroadcastBlocking,
		FBlock:   transport.FBlockExtendedNetworkControl,
		Function: transport.FuncHello,
		Payload:  versionLimit,
	}); err != nil {
		d.Stop()
		return err
	}

	d.armWindow()
	return nil
}

// Stop ends the current round, unsubscribes, and reports Stopped.
func (d *Discovery) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.windowTimer.Cancel()
	if d.subscribed {
		d.facade.UnsubscribeBroadcast(helloKey, d.subToken)
		d.subscribed = false
	}
	d.mu.Unlock()

	if d.OnEvent != nil {
		d.OnEvent(Event{Kind: EventStopped})
	}
}

// InitAll broadcasts ENC.Init.StartResult and resets every welcomed
// admin address, per spec §4.5: "The InitAll broadcast resets every node
// to un-welcomed state."
func (d *Discovery) InitAll() error {
	d.tracker.Reset()
	return d.facade.Fire(transport.Request{
		Target:   model.AddressBroadcastBlocking,
		FBlock:   transport.FBlockExtendedNetworkControl,
		Function: transport.FuncInit,
	})
}

func (d *Discovery) armWindow() {
	d.windowTimer.Arm(helloWindow, d.onWindowExpired)
}

func (d *Discovery) onWindowExpired() {
	d.mu.Lock()
	running := d.running
	gotResponse := d.gotResponse
	d.mu.Unlock()
	if !running {
		return
	}
	if !gotResponse && d.OnEvent != nil {
		d.OnEvent(Event{Kind: EventUnknown})
	}
	d.Stop()
}

func (d *Discovery) onHello(resp transport.Response) {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return
	}

	hr, ok := resp.Payload.(HelloResponse)
	if !ok {
		return
	}
	d.mu.Lock()
	d.gotResponse = true
	d.mu.Unlock()

	// any response restarts the window, per the window's own purpose
	// (conclude the round once responses stop arriving).
	d.windowTimer.Cancel()
	d.armWindow()

	switch d.eval(hr.Signature) {
	case Welcome:
		d.welcome(hr.Signature)
	case UnknownNode:
		// an unrecognized signature does not end the round by itself;
		// only the absence of further responses does (spec §4.5).
	case Ignore:
	}
}

func (d *Discovery) welcome(sig model.Signature) {
	d.mu.Lock()
	segment := d.nextSegment
	d.nextSegment++
	d.mu.Unlock()

	admin := model.AdminAddress(segment)

	done := make(chan transport.Response, 1)
	err := d.facade.Send(transport.Request{
		Target:   admin,
		FBlock:   transport.FBlockExtendedNetworkControl,
		Function: transport.FuncWelcome,
		Payload:  WelcomeRequest{Signature: sig, Admin: admin},
	}, welcomeTimeout, func(r transport.Response) { done <- r })
	if err != nil {
		d.log.Errorf("Welcome.SetResult send failed for %s: %v", sig, err)
		return
	}

	go func() {
		resp := <-done
		if resp.Code != model.Success {
			d.log.Errorf("Welcome.SetResult failed for %s: %v", sig, resp.Code)
			return
		}
		if !d.tracker.TryWelcome(admin) {
			return
		}
		if d.OnEvent != nil {
			d.OnEvent(Event{Kind: EventWelcomeSuccess, Signature: sig, Admin: admin})
			d.OnEvent(Event{Kind: EventTargetFound, Signature: sig, Admin: admin})
		}
	}()
}
