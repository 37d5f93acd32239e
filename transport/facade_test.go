// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/unicens-go/unicens/model"
)

// fakeClient records every Send and lets the test script a reply by
// calling Facade.DispatchResponse directly, simulating the INIC's
// receive path.
type fakeClient struct {
	mu   sync.Mutex
	sent []Request
	fail error
}

func (c *fakeClient) Send(req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, req)
	return nil
}

func TestFacadeSendAndMatchResponse(t *testing.T) {
	client := &fakeClient{}
	f := NewFacade(client)

	results := make(chan Response, 1)
	req := Request{FBlock: FBlockExtendedNetworkControl, Function: FuncHello}
	if err := f.Send(req, time.Second, func(r Response) { results <- r }); err != nil {
		t.Fatalf("Send: %v", err)
	}

	client.mu.Lock()
	sent := client.sent[0]
	client.mu.Unlock()

	f.DispatchResponse(Response{
		FBlock:        FBlockExtendedNetworkControl,
		Function:      FuncHello,
		CorrelationID: sent.CorrelationID,
		Code:          model.Success,
	})

	select {
	case r := <-results:
		if r.Code != model.Success {
			t.Fatalf("Code = %v, want Success", r.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("observer not notified")
	}
}

func TestFacadeTimeoutSynthesizesResponse(t *testing.T) {
	client := &fakeClient{}
	f := NewFacade(client)

	results := make(chan Response, 1)
	req := Request{FBlock: FBlockExtendedNetworkControl, Function: FuncWelcome}
	if err := f.Send(req, 20*time.Millisecond, func(r Response) { results <- r }); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case r := <-results:
		if r.Code != model.Timeout {
			t.Fatalf("Code = %v, want Timeout", r.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("expected synthetic timeout response")
	}
}

func TestFacadeSendErrorDoesNotArmTimer(t *testing.T) {
	client := &fakeClient{fail: model.NewError(model.BufferOverflow, "no tx slot")}
	f := NewFacade(client)

	called := false
	err := f.Send(Request{FBlock: FBlockINIC, Function: FuncInit}, time.Second, func(r Response) { called = true })
	if err == nil {
		t.Fatal("expected error from Send")
	}
	time.Sleep(10 * time.Millisecond)
	if called {
		t.Fatal("observer must not be invoked when Send itself fails")
	}
}

func TestFacadeLateResponseAfterTimeoutIsDropped(t *testing.T) {
	client := &fakeClient{}
	f := NewFacade(client)

	var calls int
	var mu sync.Mutex
	req := Request{FBlock: FBlockExtendedNetworkControl, Function: FuncHello}
	if err := f.Send(req, 10*time.Millisecond, func(r Response) {
		mu.Lock()
		calls++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	time.Sleep(50 * time.Millisecond) // let timeout fire

	client.mu.Lock()
	sent := client.sent[0]
	client.mu.Unlock()
	f.DispatchResponse(Response{FBlock: FBlockExtendedNetworkControl, Function: FuncHello, CorrelationID: sent.CorrelationID})

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1 (the timeout)", calls)
	}
}

func TestServiceLockMutualExclusion(t *testing.T) {
	l := NewServiceLock()
	if err := l.TryAcquire("discovery"); err != nil {
		t.Fatalf("first TryAcquire: %v", err)
	}
	if err := l.TryAcquire("programming"); err == nil {
		t.Fatal("expected ApiLocked on second TryAcquire")
	} else if merr, ok := err.(*model.Error); !ok || merr.Code != model.ApiLocked {
		t.Fatalf("expected ApiLocked, got %v", err)
	}
	l.Release()
	if err := l.TryAcquire("fdx-diag"); err != nil {
		t.Fatalf("TryAcquire after release: %v", err)
	}
}
