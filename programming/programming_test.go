// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package programming

import (
	"sync"
	"testing"

	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

type fakeClient struct {
	facade *transport.Facade

	mu         sync.Mutex
	writes     []memWritePayload
	failWrites bool
}

func (c *fakeClient) Send(req transport.Request) error {
	var payload any
	code := model.Success

	switch req.Function {
	case transport.FuncMemSessionOpen:
		payload = memOpenResult{SessionHandle: 7}
	case transport.FuncMemWrite:
		w := req.Payload.(memWritePayload)
		c.mu.Lock()
		c.writes = append(c.writes, w)
		fail := c.failWrites
		c.mu.Unlock()
		if fail {
			code = model.ProtocolError
			payload = fsErrorPayload{Code: model.FSAddrEven}
		}
	case transport.FuncMemSessionClose:
		payload = memCloseResult{SessionResult: 0}
	}

	go c.facade.DispatchResponse(transport.Response{
		FBlock: req.FBlock, Function: req.Function, OpType: transport.OpTypeResult,
		CorrelationID: req.CorrelationID, Code: code, Payload: payload,
	})
	return nil
}

func TestProgramLocalNodeChunksWritesAndInits(t *testing.T) {
	client := &fakeClient{}
	facade := transport.NewFacade(client)
	client.facade = facade

	p := New(facade, SessionType(MemIDIS))

	var mu sync.Mutex
	var succeeded bool
	p.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Kind == EventSuccess {
			succeeded = true
		}
	}

	data := make([]byte, 40) // 3 chunks: 18 + 18 + 4
	for i := range data {
		data[i] = byte(i)
	}

	p.Program(model.AddressLocalConfig, true, []Command{{MemID: MemIDIS, Address: 0x100, Data: data}})

	mu.Lock()
	defer mu.Unlock()
	if !succeeded {
		t.Fatal("expected EventSuccess")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(client.writes))
	}
	if len(client.writes[0].Data) != 18 || len(client.writes[1].Data) != 18 || len(client.writes[2].Data) != 4 {
		t.Fatalf("chunk sizes = %d/%d/%d, want 18/18/4", len(client.writes[0].Data), len(client.writes[1].Data), len(client.writes[2].Data))
	}
	if client.writes[0].Address != 0x100 || client.writes[1].Address != 0x100+18 || client.writes[2].Address != 0x100+36 {
		t.Fatalf("addresses did not auto-advance: %04x %04x %04x", client.writes[0].Address, client.writes[1].Address, client.writes[2].Address)
	}
}

func TestProgramRecoversFromAddrEvenError(t *testing.T) {
	client := &fakeClient{failWrites: true}
	facade := transport.NewFacade(client)
	client.facade = facade

	p := New(facade, SessionType(MemIDIS))

	var mu sync.Mutex
	var sawError bool
	p.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Kind == EventError {
			sawError = true
		}
	}

	p.Program(model.AddressLocalConfig, true, []Command{{MemID: MemIDIS, Address: 0x100, Data: []byte{1, 2, 3}}})

	mu.Lock()
	defer mu.Unlock()
	if !sawError {
		t.Fatal("expected EventError after an unrecoverable ADDR_EVEN failure")
	}
	if p.State() != Idle {
		t.Fatalf("State() = %v, want Idle after error recovery completes", p.State())
	}
}
