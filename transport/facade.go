// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package transport

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/unicens-go/unicens/eventbus"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/scheduler"
)

// ResponseObserver is notified exactly once with the outcome of a single
// request: either the matching Response, or a synthetic timeout Response
// (Code == model.Timeout) if no reply arrived within the command
// timeout. This is the Go shape of spec §4.1's "register single-shot
// observer for the typed response ... On timeout, the registered
// observer is invoked with a synthetic timeout result."
type ResponseObserver func(resp Response)

// Facade is the single request/response primitive every stateful
// component (Network-Starter, Node-Discovery, the diagnosis and
// programming FSMs, the ATD calculator) sends through. It never
// retries; see the package doc comment.
type Facade struct {
	client INICClient

	mu      sync.Mutex
	pending map[Key]map[string]*pendingCall // Key -> CorrelationID -> call

	broadcast map[Key]*eventbus.BroadcastSubject
}

type pendingCall struct {
	observer ResponseObserver
	timer    *scheduler.OneShot
}

// NewFacade wires a Facade to the given INICClient. The caller must
// route the client's asynchronous responses back into the returned
// Facade's DispatchResponse/DispatchBroadcast methods (the Facade
// implements Dispatcher).
func NewFacade(client INICClient) *Facade {
	return &Facade{
		client:    client,
		pending:   make(map[Key]map[string]*pendingCall),
		broadcast: make(map[Key]*eventbus.BroadcastSubject),
	}
}

// Send issues req, arms a timeout of d, and notifies obs exactly once
// with either the matching Response or a synthetic Code == model.Timeout
// Response if d elapses first. It returns a synchronous error only for
// the conditions Send itself rejects (spec §4.1's "Errors surfaced")
// before any timer is armed.
func (f *Facade) Send(req Request, d time.Duration, obs ResponseObserver) error {
	if obs == nil {
		return model.NewError(model.ParamError, "nil observer")
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	key := Key{FBlock: req.FBlock, Function: req.Function, OpType: OpTypeRequest}

	call := &pendingCall{observer: obs}
	f.register(key, req.CorrelationID, call)

	if err := f.client.Send(req); err != nil {
		f.unregister(key, req.CorrelationID)
		return err
	}

	timer := &scheduler.OneShot{}
	call.timer = timer
	corrID := req.CorrelationID
	if err := timer.Arm(d, func() { f.timeout(key, corrID) }); err != nil {
		// Arming a fresh OneShot can only fail if this Facade reused a
		// pendingCall across Send calls, which it never does; treat as
		// an internal invariant violation surfaced to the caller rather
		// than silently losing the timeout.
		f.unregister(key, req.CorrelationID)
		return model.NewError(model.ParamError, "internal: %v", err)
	}

	return nil
}

// Fire sends req without registering any response expectation, for
// broadcast commands a variable, unbounded number of nodes may answer to
// (spec §4.5's Hello broadcast): callers observe the answers through
// SubscribeBroadcast instead of a Send-style single-shot observer.
func (f *Facade) Fire(req Request) error {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	return f.client.Send(req)
}

func (f *Facade) register(key Key, corrID string, call *pendingCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byCorr, ok := f.pending[key]
	if !ok {
		byCorr = make(map[string]*pendingCall)
		f.pending[key] = byCorr
	}
	byCorr[corrID] = call
}

func (f *Facade) unregister(key Key, corrID string) *pendingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	byCorr, ok := f.pending[key]
	if !ok {
		return nil
	}
	call := byCorr[corrID]
	delete(byCorr, corrID)
	if len(byCorr) == 0 {
		delete(f.pending, key)
	}
	return call
}

func (f *Facade) timeout(key Key, corrID string) {
	call := f.unregister(key, corrID)
	if call == nil {
		return // response already arrived and was dispatched first
	}
	call.observer(Response{
		FBlock:        key.FBlock,
		Function:      key.Function,
		OpType:        OpTypeError,
		CorrelationID: corrID,
		Code:          model.Timeout,
	})
}

// DispatchResponse implements Dispatcher: it is called by the INICClient
// integration when a Response arrives on the receive path.
func (f *Facade) DispatchResponse(resp Response) {
	key := Key{FBlock: resp.FBlock, Function: resp.Function, OpType: OpTypeRequest}
	call := f.unregister(key, resp.CorrelationID)
	if call == nil {
		return // stale: timeout already fired, or unsolicited
	}
	call.timer.Cancel()
	call.observer(resp)
}

// SubscribeBroadcast registers obs on the broadcast-receive path for the
// given Key (e.g. ENC.AliveMessage.Status, spec §4.1), returning a Token
// that can later be passed to UnsubscribeBroadcast. Any number of
// observers may subscribe to the same Key.
func (f *Facade) SubscribeBroadcast(key Key, obs eventbus.Observer) eventbus.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.broadcast[key]
	if !ok {
		sub = &eventbus.BroadcastSubject{}
		f.broadcast[key] = sub
	}
	return sub.Subscribe(obs)
}

// UnsubscribeBroadcast removes a prior SubscribeBroadcast registration.
func (f *Facade) UnsubscribeBroadcast(key Key, tok eventbus.Token) {
	f.mu.Lock()
	sub, ok := f.broadcast[key]
	f.mu.Unlock()
	if ok {
		sub.Unsubscribe(tok)
	}
}

// DispatchBroadcast implements Dispatcher for unsolicited notifications.
func (f *Facade) DispatchBroadcast(resp Response) {
	key := Key{FBlock: resp.FBlock, Function: resp.Function, OpType: resp.OpType}
	f.mu.Lock()
	sub, ok := f.broadcast[key]
	f.mu.Unlock()
	if ok {
		sub.Notify(eventbus.Event{Kind: uint32(resp.OpType), Payload: resp})
	}
}
