// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package eventbus

import "sync"

// SingleShotSubject holds at most one pending observer, matching the
// transport facade's "send request, register single-shot observer for
// the response" usage (spec §4.1). Subscribing while a previous
// subscription is still pending replaces it; the replaced observer is
// never notified (this mirrors the source's behavior of abandoning a
// stale single-shot registration when a new command is issued on the
// same logical channel).
//
// Locking is defensive, not load-bearing: the cooperative scheduler
// (spec §5) guarantees single-threaded delivery, but keeping the
// primitive safe for concurrent use lets callers (including tests) drive
// it from goroutines without re-deriving that guarantee.
type SingleShotSubject struct {
	mu  sync.Mutex
	obs Observer
}

// Subscribe registers obs to receive the next Notify call.
func (s *SingleShotSubject) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = obs
}

// Unsubscribe clears any pending observer without notifying it.
func (s *SingleShotSubject) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = nil
}

// Pending reports whether an observer is currently registered.
func (s *SingleShotSubject) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obs != nil
}

// Notify delivers evt to the pending observer, if any, then clears the
// subscription. The subscription is cleared before the callback runs,
// so it is safe for the observer's own callback to call Subscribe again
// (e.g. to arm the next step of a state machine): that new subscription
// stays in place after Notify returns.
func (s *SingleShotSubject) Notify(evt Event) {
	s.mu.Lock()
	obs := s.obs
	s.obs = nil
	s.mu.Unlock()

	if obs != nil {
		obs.Notify(evt)
	}
}
