// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package netstarter

import (
	"sync"
	"testing"
	"time"

	"github.com/unicens-go/unicens/eventbus"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

type fakeClient struct {
	facade *transport.Facade
}

func (c *fakeClient) Send(req transport.Request) error {
	go c.facade.DispatchResponse(transport.Response{
		FBlock: req.FBlock, Function: req.Function, OpType: transport.OpTypeResult,
		CorrelationID: req.CorrelationID, Code: model.Success,
	})
	return nil
}

func newStarter() (*Starter, *eventbus.MaskedSubject) {
	client := &fakeClient{}
	facade := transport.NewFacade(client)
	client.facade = facade
	status := &eventbus.MaskedSubject{}
	return New(facade, status), status
}

func publish(status *eventbus.MaskedSubject, st model.NetworkStatus) {
	status.Notify(eventbus.Event{Kind: uint32(model.MaskAll), Payload: st})
}

func TestStarterRunsStartupQueueThenDeclaresReady(t *testing.T) {
	s, status := newStarter()

	var mu sync.Mutex
	var states []model.ModeState
	s.OnStateChange = func(ms model.ModeState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, ms)
	}

	s.SetTarget(model.ModeNormal, Params{PacketBandwidth: 100})

	mu.Lock()
	if len(states) != 1 || states[0].State != model.StateBusy {
		mu.Unlock()
		t.Fatalf("expected an immediate Busy report, got %+v", states)
	}
	mu.Unlock()

	publish(status, model.NetworkStatus{Availability: model.Unavailable, AvailInfo: model.AvailInfoRegular})

	// the Startup queue runs asynchronously on its own goroutine.
	time.Sleep(50 * time.Millisecond)

	publish(status, model.NetworkStatus{
		Availability: model.Available, PacketBandwidth: 100, NodePosition: 0,
	})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	last := states[len(states)-1]
	if last.State != model.StateReady {
		t.Fatalf("expected Ready after InitAllOnly, got %+v (all: %+v)", last, states)
	}
}

func TestStarterGuardTimerRetriesOnFailure(t *testing.T) {
	failOnce := true
	var attempts int

	client := &failThenSucceedClient{failOnce: &failOnce, attempts: &attempts}
	facade := transport.NewFacade(client)
	client.facade = facade

	status := &eventbus.MaskedSubject{}
	s := New(facade, status)

	var mu sync.Mutex
	var gotFailed, gotTimeout bool
	s.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Kind == EventQueueFailed {
			gotFailed = true
		}
		if e.Kind == EventStartupTimeout {
			gotTimeout = true
		}
	}

	s.SetTarget(model.ModeInactive, Params{})
	publish(status, model.NetworkStatus{Availability: model.Available})

	time.Sleep(400 * time.Millisecond) // allow the ~200ms guard to re-fire

	mu.Lock()
	defer mu.Unlock()
	if !gotFailed {
		t.Fatal("expected at least one EventQueueFailed")
	}
	_ = gotTimeout // threshold is 3 consecutive failures; not necessarily reached here
}

type failThenSucceedClient struct {
	facade   *transport.Facade
	failOnce *bool
	attempts *int
}

func (c *failThenSucceedClient) Send(req transport.Request) error {
	*c.attempts++
	code := model.Success
	if *c.failOnce {
		*c.failOnce = false
		code = model.NotAvailable
	}
	go c.facade.DispatchResponse(transport.Response{
		FBlock: req.FBlock, Function: req.Function, OpType: transport.OpTypeResult,
		CorrelationID: req.CorrelationID, Code: code,
	})
	return nil
}
