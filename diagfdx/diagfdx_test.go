// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package diagfdx

import (
	"sync"
	"testing"

	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

// fakeClient answers every command with Success immediately, and every
// Hello with a 1-port node: the local node (segment 0) ends the walk
// right away.
type fakeClient struct {
	facade *transport.Facade

	mu   sync.Mutex
	sent []transport.Request
}

func (c *fakeClient) Send(req transport.Request) error {
	c.mu.Lock()
	c.sent = append(c.sent, req)
	c.mu.Unlock()

	var payload any
	if req.Function == transport.FuncHello {
		payload = HelloResponse{Signature: model.Signature{NodeAddress: 0x0401, NumPorts: 1}}
	}
	go c.facade.DispatchResponse(transport.Response{
		FBlock: req.FBlock, Function: req.Function, OpType: transport.OpTypeResult,
		CorrelationID: req.CorrelationID, Code: model.Success, Payload: payload,
	})
	return nil
}

func TestDiagFinishesSinglePortLocalNode(t *testing.T) {
	client := &fakeClient{}
	facade := transport.NewFacade(client)
	client.facade = facade

	d := New(facade)

	var mu sync.Mutex
	var finished bool
	d.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Kind == EventFinished {
			finished = true
		}
	}

	d.Start()

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Fatal("expected EventFinished for a single-port local node")
	}
	if d.State() != Idle {
		t.Fatalf("State() = %v, want Idle", d.State())
	}
}

type failingHelloClient struct {
	facade *transport.Facade
}

func (c *failingHelloClient) Send(req transport.Request) error {
	if req.Function == transport.FuncHello {
		// never respond: forces the retry policy to exhaust.
		return nil
	}
	go c.facade.DispatchResponse(transport.Response{
		FBlock: req.FBlock, Function: req.Function, OpType: transport.OpTypeResult,
		CorrelationID: req.CorrelationID, Code: model.Success,
	})
	return nil
}

func TestDiagRunsCableLinkDiagWhenHelloExhausts(t *testing.T) {
	client := &failingHelloClient{}
	facade := transport.NewFacade(client)
	client.facade = facade

	d := New(facade)

	var mu sync.Mutex
	var sawCableLink bool
	d.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Kind == EventCableLink {
			sawCableLink = true
		}
	}

	d.Start()

	mu.Lock()
	defer mu.Unlock()
	if !sawCableLink {
		t.Fatal("expected EventCableLink once Hello retries exhaust")
	}
}
