// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package inicstatus owns the canonical NetworkStatus subject every
// other component (netstarter, discovery's route-manager consumers,
// fallback) observes: it subscribes to the local INIC's unsolicited
// status notification, suppresses duplicates, and republishes the
// change through a masked subject so observers only wake for the fields
// they asked about (spec §4.4's "4-bit change mask").
package inicstatus

import (
	"sync"

	"github.com/unicens-go/unicens/eventbus"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

// broadcastObserver adapts a func(transport.Response) to eventbus.Observer,
// the same adapter shape package discovery uses for its own broadcast
// subscription.
type broadcastObserver func(transport.Response)

func (o broadcastObserver) Notify(evt eventbus.Event) {
	if resp, ok := evt.Payload.(transport.Response); ok {
		o(resp)
	}
}

var statusKey = transport.Key{FBlock: transport.FBlockINIC, Function: transport.FuncNetworkStatus, OpType: transport.OpTypeStatus}

// Watcher tracks the local INIC's NetworkStatus and republishes changes.
type Watcher struct {
	facade *transport.Facade

	mu         sync.Mutex
	current    model.NetworkStatus
	have       bool
	subscribed bool
	token      eventbus.Token

	subject *eventbus.MaskedSubject
}

// New builds a Watcher observing facade's broadcast path. Subject
// returns the masked subject components should Subscribe to.
func New(facade *transport.Facade) *Watcher {
	return &Watcher{facade: facade, subject: &eventbus.MaskedSubject{}}
}

// Subject returns the canonical NetworkStatus subject, per spec §4.4's
// 4-bit change mask dispatch.
func (w *Watcher) Subject() *eventbus.MaskedSubject { return w.subject }

// Start begins observing the local INIC's status notifications.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.subscribed {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	tok := w.facade.SubscribeBroadcast(statusKey, broadcastObserver(w.onNotification))
	w.mu.Lock()
	w.token = tok
	w.subscribed = true
	w.mu.Unlock()
}

// Stop ends observation.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.subscribed {
		w.mu.Unlock()
		return
	}
	w.subscribed = false
	tok := w.token
	w.mu.Unlock()
	w.facade.UnsubscribeBroadcast(statusKey, tok)
}

// Current returns the last observed status, and whether any has arrived
// yet.
func (w *Watcher) Current() (model.NetworkStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, w.have
}

func (w *Watcher) onNotification(resp transport.Response) {
	status, ok := resp.Payload.(model.NetworkStatus)
	if !ok {
		return
	}

	w.mu.Lock()
	prev, have := w.current, w.have
	mask := changeMask(prev, status, have)
	w.current = status
	w.have = true
	w.mu.Unlock()

	if mask == 0 {
		return // duplicate notification, suppressed
	}
	w.subject.Notify(eventbus.Event{Kind: uint32(mask), Payload: status})
}

// changeMask compares prev and next and reports which of spec §6's 4
// observable bits differ. Every bit is reported the first time a status
// ever arrives (have == false).
func changeMask(prev, next model.NetworkStatus, have bool) model.StatusChangeMask {
	if !have {
		return model.MaskAll
	}
	var m model.StatusChangeMask
	if prev.Availability != next.Availability {
		m |= model.MaskAvailability
	}
	if prev.AvailInfo != next.AvailInfo {
		m |= model.MaskAvailInfo
	}
	if prev.NodeAddress != next.NodeAddress {
		m |= model.MaskNodeAddress
	}
	if prev.NodePosition != next.NodePosition {
		m |= model.MaskNodePosition
	}
	return m
}
