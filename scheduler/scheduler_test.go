// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package scheduler

import (
	"testing"
	"time"
)

type fakeService struct {
	prio    int
	pending bool
	ran     []int
	tag     int
}

func (f *fakeService) Priority() int        { return f.prio }
func (f *fakeService) HasPendingWork() bool { return f.pending }
func (f *fakeService) RunService() {
	f.pending = false
	f.ran = append(f.ran, f.tag)
}

func TestSchedulerRunsEveryPendingServiceOnce(t *testing.T) {
	low := &fakeService{prio: 10, pending: true, tag: 10}
	high := &fakeService{prio: 1, pending: true, tag: 1}

	s := New(nil)
	s.Register(low)
	s.Register(high)
	s.Service()

	if len(high.ran) != 1 || len(low.ran) != 1 {
		t.Fatalf("expected both services to run exactly once, got high=%v low=%v", high.ran, low.ran)
	}
}

func TestSchedulerReScansOnCascade(t *testing.T) {
	high := &fakeService{prio: 1, tag: 1}
	low := &wrapService{fakeService: &fakeService{prio: 10, pending: true, tag: 10}, cascade: high}

	s := New(nil)
	s.Register(high)
	s.Register(low)
	s.Service()

	if len(high.ran) != 1 {
		t.Fatalf("expected high priority service to pick up cascaded work, ran=%v", high.ran)
	}
}

// wrapService simulates a Service whose RunService call arms pending
// work on another, higher-priority Service — e.g. a termination cascade.
type wrapService struct {
	*fakeService
	cascade *fakeService
}

func (w *wrapService) RunService() {
	w.cascade.pending = true
	w.fakeService.RunService()
}

func TestOneShotArmFiresOnce(t *testing.T) {
	var o OneShot
	done := make(chan struct{})
	if err := o.Arm(5*time.Millisecond, func() { close(done) }); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not fire")
	}
	if o.Armed() {
		t.Fatalf("expected timer to be disarmed after firing")
	}
}

func TestOneShotArmTwiceFails(t *testing.T) {
	var o OneShot
	if err := o.Arm(50*time.Millisecond, func() {}); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	defer o.Cancel()
	if err := o.Arm(50*time.Millisecond, func() {}); err != ErrAlreadyArmed {
		t.Fatalf("expected ErrAlreadyArmed, got %v", err)
	}
}

func TestOneShotCancel(t *testing.T) {
	var o OneShot
	fired := make(chan struct{}, 1)
	if err := o.Arm(30*time.Millisecond, func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if !o.Cancel() {
		t.Fatalf("expected Cancel to report it stopped a running timer")
	}
	select {
	case <-fired:
		t.Fatal("timer fired despite being canceled")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestPeriodicFiresRepeatedly(t *testing.T) {
	var p Periodic
	count := make(chan struct{}, 10)
	if err := p.Arm(5*time.Millisecond, func() { count <- struct{}{} }); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	defer p.Cancel()

	for i := 0; i < 3; i++ {
		select {
		case <-count:
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("expected periodic fire #%d", i)
		}
	}
}
