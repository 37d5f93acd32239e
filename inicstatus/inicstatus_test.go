// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package inicstatus

import (
	"sync"
	"testing"

	"github.com/unicens-go/unicens/eventbus"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

type fakeClient struct{}

func (fakeClient) Send(transport.Request) error { return nil }

func publish(facade *transport.Facade, status model.NetworkStatus) {
	facade.DispatchBroadcast(transport.Response{
		FBlock: transport.FBlockINIC, Function: transport.FuncNetworkStatus, OpType: transport.OpTypeStatus,
		Payload: status,
	})
}

func TestWatcherSuppressesDuplicatesAndReportsChangedMask(t *testing.T) {
	facade := transport.NewFacade(fakeClient{})
	w := New(facade)
	w.Start()
	defer w.Stop()

	var mu sync.Mutex
	var masks []model.StatusChangeMask
	w.Subject().Subscribe(uint32(model.MaskAll), eventbus.ObserverFunc(func(evt eventbus.Event) {
		mu.Lock()
		defer mu.Unlock()
		masks = append(masks, model.StatusChangeMask(evt.Kind))
	}))

	s1 := model.NetworkStatus{Availability: model.Available, NodePosition: 3}
	publish(facade, s1)
	publish(facade, s1) // duplicate, must be suppressed

	s2 := s1
	s2.NodePosition = 4
	publish(facade, s2)

	mu.Lock()
	defer mu.Unlock()
	if len(masks) != 2 {
		t.Fatalf("masks = %+v, want 2 notifications (first-ever + the NodePosition change)", masks)
	}
	if masks[0] != model.MaskAll {
		t.Fatalf("first notification mask = %v, want MaskAll", masks[0])
	}
	if masks[1] != model.MaskNodePosition {
		t.Fatalf("second notification mask = %v, want MaskNodePosition only", masks[1])
	}

	cur, have := w.Current()
	if !have || cur.NodePosition != 4 {
		t.Fatalf("Current() = %+v, %v, want NodePosition=4", cur, have)
	}
}
