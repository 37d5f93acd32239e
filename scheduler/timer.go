// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package scheduler

import (
	"errors"
	"sync"
	"time"

	dtimer "github.com/desertbit/timer"
)

// ErrAlreadyArmed is returned by OneShot.Arm/Periodic.Arm when the timer
// is already running — spec §5 calls re-arming an armed timer "a
// programming error"; this module surfaces it as an error rather than a
// panic so a component under test can assert on it instead of crashing
// the process.
var ErrAlreadyArmed = errors.New("scheduler: timer already armed")

// OneShot is a single-fire timer keyed on the host clock, backed by
// github.com/desertbit/timer's pooled timer implementation to avoid
// repeatedly allocating a runtime timer for the many short (100ms-3s)
// command timeouts the diagnosis and programming state machines arm and
// disarm in quick succession.
type OneShot struct {
	mu    sync.Mutex
	armed bool
	t     *dtimer.Timer
}

// Arm starts the timer; fn is invoked on its own goroutine when d
// elapses, unless Cancel is called first. Arming an already-armed timer
// returns ErrAlreadyArmed without disturbing the existing arm.
func (o *OneShot) Arm(d time.Duration, fn func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.armed {
		return ErrAlreadyArmed
	}
	o.armed = true
	o.t = dtimer.AfterFunc(d, func() {
		o.mu.Lock()
		o.armed = false
		o.mu.Unlock()
		fn()
	})
	return nil
}

// Cancel stops the timer if armed; it is always safe to call, including
// when not armed. It returns true if the timer was armed and has been
// stopped before firing.
func (o *OneShot) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.armed || o.t == nil {
		return false
	}
	stopped := o.t.Stop()
	o.armed = false
	return stopped
}

// Armed reports whether the timer is currently running.
func (o *OneShot) Armed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.armed
}

// Periodic fires fn every d until Cancel is called. It re-arms its own
// underlying timer from within the fired callback (it does not use
// OneShot), the
// same pattern the guard-status re-injection timer (spec §4.4, ~10s) and
// the FSM's internal watchdogs use.
type Periodic struct {
	mu        sync.Mutex
	armed     bool
	t         *dtimer.Timer
	interval  time.Duration
	fn        func()
}

// Arm starts firing fn every d, starting after the first interval
// elapses (not immediately).
func (p *Periodic) Arm(d time.Duration, fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.armed {
		return ErrAlreadyArmed
	}
	p.armed = true
	p.interval = d
	p.fn = fn
	p.scheduleNextLocked()
	return nil
}

func (p *Periodic) scheduleNextLocked() {
	p.t = dtimer.AfterFunc(p.interval, p.fire)
}

func (p *Periodic) fire() {
	p.mu.Lock()
	if !p.armed {
		p.mu.Unlock()
		return
	}
	fn := p.fn
	p.scheduleNextLocked()
	p.mu.Unlock()

	fn()
}

// Cancel stops further firing. Safe to call when not armed.
func (p *Periodic) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.armed {
		return false
	}
	p.armed = false
	if p.t != nil {
		p.t.Stop()
	}
	return true
}

// Armed reports whether the periodic timer is currently running.
func (p *Periodic) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.armed
}
