// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package eventbus implements the three subject/observer flavors spec
// §4.2 requires: single-shot (one callback, auto-unsubscribe once
// notified), masked-multi (observers filtered by a bitmask of event
// kinds), and broadcast (every subscriber, no mask). All notification is
// synchronous, matching the cooperative, single-threaded scheduler of
// spec §5 — there is no concurrent delivery to race against, but an
// observer is allowed to unsubscribe itself (or another observer) during
// its own callback, so iteration must tolerate mutation.
package eventbus

// Event is the payload delivered to an Observer. Kind identifies the
// event (used by MaskedSubject for filtering); Payload carries whatever
// data the publishing component attaches (a response, a timeout marker,
// a terminal error).
type Event struct {
	Kind    uint32
	Payload any
}

// Observer is notified of an Event. It is the single collapsed
// interface spec §9 calls for in place of the source's CSingleObserver/
// CMaskedObserver/CObserver inheritance hierarchy.
type Observer interface {
	Notify(evt Event)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(evt Event)

func (f ObserverFunc) Notify(evt Event) { f(evt) }

// SingleShot is a plain wrapper marking an Observer as single-shot. No
// subject in this package consumes it: SingleShotSubject implements
// single-shot delivery itself, by clearing its one pending observer on
// Notify.
type SingleShot struct {
	Observer
}

// Masked wraps an Observer with a bitmask of event kinds it wants to
// receive; a Notify call whose Event.Kind has no bit in common with Mask
// is not delivered.
type Masked struct {
	Observer
	Mask uint32
}

func (m Masked) wants(kind uint32) bool {
	return m.Mask&kind != 0
}
