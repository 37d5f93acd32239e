// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package eventbus

import "sync"

// MaskedSubject holds any number of masked observers, e.g. the
// TERMINATION_EVENTS/UNSYNC_STARTED cancellation subject every component
// subscribes to with a mask selecting which kinds it tears down on
// (spec §4.3).
type MaskedSubject struct {
	mu   sync.Mutex
	subs []*maskedSub
	next int
}

type maskedSub struct {
	id     int
	masked Masked
	live   bool
}

// Token identifies a subscription for later Unsubscribe calls.
type Token int

// Subscribe registers obs for events whose Kind has a bit in common with
// mask, returning a Token that can be used to unsubscribe later,
// including from within the observer's own Notify callback.
func (s *MaskedSubject) Subscribe(mask uint32, obs Observer) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs = append(s.subs, &maskedSub{id: id, masked: Masked{Observer: obs, Mask: mask}, live: true})
	return Token(id)
}

// Unsubscribe removes the subscription identified by tok, if still
// present. Safe to call during Notify delivery (see Notify).
func (s *MaskedSubject) Unsubscribe(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.id == int(tok) {
			sub.live = false
		}
	}
	s.compact()
}

func (s *MaskedSubject) compact() {
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.live {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
}

// Notify delivers evt to every live observer whose mask matches
// Event.Kind. A snapshot of the subscriber list is taken before
// iterating so an observer that unsubscribes itself (or another
// observer) during its own callback does not corrupt the in-flight
// iteration; the removal still takes effect for the next Notify call.
func (s *MaskedSubject) Notify(evt Event) {
	s.mu.Lock()
	snapshot := make([]*maskedSub, len(s.subs))
	copy(snapshot, s.subs)
	s.mu.Unlock()

	for _, sub := range snapshot {
		if sub.live && sub.masked.wants(evt.Kind) {
			sub.masked.Notify(evt)
		}
	}

	s.mu.Lock()
	s.compact()
	s.mu.Unlock()
}
