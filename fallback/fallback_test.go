// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package fallback

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

func TestProtectReachesStayFbpThenEndsOnStatus(t *testing.T) {
	client := &fakeClient{}
	facade := transport.NewFacade(client)
	client.facade = facade
	status := &eventbus.MaskedSubject{}

	p := New(facade, status)

	var mu sync.Mutex
	var sawSuccess, sawEnd bool
	p.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Kind {
		case EventSuccess:
			sawSuccess = true
		case EventEnd:
			sawEnd = true
		}
	}

	done := make(chan struct{})
	go func() {
		p.Start(NeverLeave)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	mu.Lock()
	if !sawSuccess {
		mu.Unlock()
		t.Fatal("expected EventSuccess after negotiation")
	}
	mu.Unlock()

	if p.State() != StayFbp {
		t.Fatalf("State() = %v, want StayFbp", p.State())
	}

	status.Notify(eventbus.Event{
		Kind:    uint32(model.MaskAvailability | model.MaskAvailInfo),
		Payload: model.NetworkStatus{Availability: model.Available, AvailInfo: model.AvailInfoRegular},
	})

	mu.Lock()
	defer mu.Unlock()
	if !sawEnd {
		t.Fatal("expected EventEnd once status leaves Fallback with Regular")
	}
	if p.State() != Idle {
		t.Fatalf("State() = %v, want Idle", p.State())
	}
}

func TestProtectQueuesStopDuringNegotiation(t *testing.T) {
	client := &fakeClient{}
	facade := transport.NewFacade(client)
	client.facade = facade
	status := &eventbus.MaskedSubject{}

	p := New(facade, status)

	done := make(chan struct{})
	go func() {
		p.Start(NeverLeave)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond) // land inside WaitNeg's tNegPhase sleep
	p.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after a queued Stop")
	}

	if p.State() != Idle {
		t.Fatalf("State() = %v, want Idle after a queued Stop took effect", p.State())
	}
}
