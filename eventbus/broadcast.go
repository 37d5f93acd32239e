// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package eventbus

import "sync"

// BroadcastSubject delivers every Notify call to every subscribed
// observer, unconditionally — used for the ENC.AliveMessage.Status
// broadcast-receive path (spec §4.1) and for the InitAll reset signal
// (spec §4.5), both of which any number of components may subscribe to.
type BroadcastSubject struct {
	mu   sync.Mutex
	subs []*broadcastSub
	next int
}

type broadcastSub struct {
	id   int
	obs  Observer
	live bool
}

// Subscribe registers obs to receive every future Notify call.
func (s *BroadcastSubject) Subscribe(obs Observer) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs = append(s.subs, &broadcastSub{id: id, obs: obs, live: true})
	return Token(id)
}

// Unsubscribe removes the subscription identified by tok.
func (s *BroadcastSubject) Unsubscribe(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.id == int(tok) {
			sub.live = false
		}
	}
	s.compact()
}

func (s *BroadcastSubject) compact() {
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.live {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
}

// Notify delivers evt to every live subscriber, tolerating
// unsubscription from within a callback the same way MaskedSubject does.
func (s *BroadcastSubject) Notify(evt Event) {
	s.mu.Lock()
	snapshot := make([]*broadcastSub, len(s.subs))
	copy(snapshot, s.subs)
	s.mu.Unlock()

	for _, sub := range snapshot {
		if sub.live {
			sub.obs.Notify(evt)
		}
	}

	s.mu.Lock()
	s.compact()
	s.mu.Unlock()
}
