// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package diaghdx

import (
	"sync"
	"testing"

	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

type fakeClient struct {
	facade *transport.Facade

	mu       sync.Mutex
	requests int
}

// Send answers ReverseRequest with SlaveWrongNodePosition on the first
// call, ending the walk at position 1 without a long settle loop.
func (c *fakeClient) Send(req transport.Request) error {
	var payload any
	code := model.Success
	if req.Function == transport.FuncReverseRequest {
		payload = ReverseRequestResult{Tester: SlaveWrongNodePosition}
	}
	go c.facade.DispatchResponse(transport.Response{
		FBlock: req.FBlock, Function: req.Function, OpType: transport.OpTypeResult,
		CorrelationID: req.CorrelationID, Code: code, Payload: payload,
	})
	return nil
}

func TestDiagReportsSlaveWrongPosAndEnds(t *testing.T) {
	client := &fakeClient{}
	facade := transport.NewFacade(client)
	client.facade = facade

	d := New(facade)

	var mu sync.Mutex
	var outcomes []Outcome
	var ended bool
	d.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Kind == EventPositionResult {
			outcomes = append(outcomes, e.Outcome)
		}
		if e.Kind == EventEnd {
			ended = true
		}
	}

	d.Start(0x0200)

	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 1 || outcomes[0] != OutcomeSlaveWrongPos {
		t.Fatalf("outcomes = %+v, want [SlaveWrongPos]", outcomes)
	}
	if !ended {
		t.Fatal("expected EventEnd after the walk stops")
	}
	if d.State() != Idle {
		t.Fatalf("State() = %v, want Idle", d.State())
	}
}
