// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package discovery

import (
	"sync"
	"testing"
	"time"

	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

type fakeClient struct {
	facade *transport.Facade

	mu   sync.Mutex
	sent []transport.Request
}

func (c *fakeClient) Send(req transport.Request) error {
	c.mu.Lock()
	c.sent = append(c.sent, req)
	c.mu.Unlock()

	if req.Function == transport.FuncWelcome {
		go c.facade.DispatchResponse(transport.Response{
			FBlock: req.FBlock, Function: req.Function, OpType: transport.OpTypeResult,
			CorrelationID: req.CorrelationID, Code: model.Success,
		})
	}
	return nil
}

func (c *fakeClient) replyHello(facade *transport.Facade, sig model.Signature) {
	facade.DispatchBroadcast(transport.Response{
		FBlock: transport.FBlockExtendedNetworkControl, Function: transport.FuncHello, OpType: transport.OpTypeStatus,
		Payload: HelloResponse{Signature: sig},
	})
}

func TestDiscoveryWelcomesEveryRespondingNode(t *testing.T) {
	client := &fakeClient{}
	facade := transport.NewFacade(client)
	client.facade = facade

	eval := func(sig model.Signature) EvalResult { return Welcome }
	d := New(facade, eval)

	var mu sync.Mutex
	var events []Event
	d.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}

	if err := d.Start(0x0200); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client.replyHello(facade, model.Signature{NodeAddress: 0x0401, NumPorts: 1})
	time.Sleep(20 * time.Millisecond)
	client.replyHello(facade, model.Signature{NodeAddress: 0x0402, NumPorts: 2})

	time.Sleep(250 * time.Millisecond) // let the hello window close

	mu.Lock()
	defer mu.Unlock()

	var targetFound, stopped int
	for _, e := range events {
		switch e.Kind {
		case EventTargetFound:
			targetFound++
		case EventStopped:
			stopped++
		}
	}
	if targetFound != 2 {
		t.Fatalf("TargetFound events = %d, want 2 (all: %+v)", targetFound, events)
	}
	if stopped != 1 {
		t.Fatalf("Stopped events = %d, want 1", stopped)
	}
}

func TestDiscoveryReportsUnknownWhenNoResponses(t *testing.T) {
	client := &fakeClient{}
	facade := transport.NewFacade(client)
	client.facade = facade

	d := New(facade, func(model.Signature) EvalResult { return Ignore })

	var mu sync.Mutex
	var sawUnknown bool
	d.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Kind == EventUnknown {
			sawUnknown = true
		}
	}

	if err := d.Start(0x0200); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !sawUnknown {
		t.Fatal("expected EventUnknown when no node responds within the window")
	}
}

func TestWelcomeTrackerResetsOnInitAll(t *testing.T) {
	tr := newWelcomeTracker()
	if !tr.TryWelcome(0x0F00) {
		t.Fatal("first TryWelcome must succeed")
	}
	if tr.TryWelcome(0x0F00) {
		t.Fatal("second TryWelcome for the same address must fail")
	}
	tr.Reset()
	if !tr.TryWelcome(0x0F00) {
		t.Fatal("TryWelcome must succeed again after Reset")
	}
	if tr.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", tr.Count())
	}
}
