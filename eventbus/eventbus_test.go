// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package eventbus

import "testing"

func TestSingleShotSubjectDeliversOnce(t *testing.T) {
	var got []Event
	s := &SingleShotSubject{}
	s.Subscribe(ObserverFunc(func(evt Event) { got = append(got, evt) }))

	s.Notify(Event{Kind: 1})
	s.Notify(Event{Kind: 2}) // no observer pending anymore

	if len(got) != 1 || got[0].Kind != 1 {
		t.Fatalf("got %v, want single delivery of kind 1", got)
	}
	if s.Pending() {
		t.Fatalf("expected no pending observer after delivery")
	}
}

func TestSingleShotSubjectResubscribeDuringCallback(t *testing.T) {
	s := &SingleShotSubject{}
	var second bool
	var first ObserverFunc
	first = func(evt Event) {
		s.Subscribe(ObserverFunc(func(evt Event) { second = true }))
	}
	s.Subscribe(first)
	s.Notify(Event{Kind: 1})
	if !s.Pending() {
		t.Fatalf("expected resubscription from within callback to stick")
	}
	s.Notify(Event{Kind: 2})
	if !second {
		t.Fatalf("expected second observer to be notified")
	}
}

func TestMaskedSubjectFiltersByMask(t *testing.T) {
	s := &MaskedSubject{}
	var a, b int
	s.Subscribe(0b01, ObserverFunc(func(evt Event) { a++ }))
	s.Subscribe(0b10, ObserverFunc(func(evt Event) { b++ }))

	s.Notify(Event{Kind: 0b01})
	s.Notify(Event{Kind: 0b10})
	s.Notify(Event{Kind: 0b11})

	if a != 2 || b != 2 {
		t.Fatalf("a=%d b=%d, want 2 and 2", a, b)
	}
}

func TestMaskedSubjectUnsubscribeDuringNotify(t *testing.T) {
	s := &MaskedSubject{}
	var calls int
	var tok Token
	tok = s.Subscribe(0xFF, ObserverFunc(func(evt Event) {
		calls++
		s.Unsubscribe(tok)
	}))
	_ = tok

	s.Notify(Event{Kind: 0xFF})
	s.Notify(Event{Kind: 0xFF})

	if calls != 1 {
		t.Fatalf("calls=%d, want 1 (observer should have unsubscribed itself)", calls)
	}
}

func TestBroadcastSubjectDeliversToAll(t *testing.T) {
	s := &BroadcastSubject{}
	var a, b int
	s.Subscribe(ObserverFunc(func(evt Event) { a++ }))
	tok := s.Subscribe(ObserverFunc(func(evt Event) { b++ }))

	s.Notify(Event{})
	s.Unsubscribe(tok)
	s.Notify(Event{})

	if a != 2 || b != 1 {
		t.Fatalf("a=%d b=%d, want 2 and 1", a, b)
	}
}
