// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package netstarter implements Network-Starter (spec §4.4): it maps the
// current network availability, as reported by the local INIC, against a
// target supervisor mode, and dispatches the matching pre-built job
// queue from spec §4.4's table.
package netstarter

import (
	"sync"
	"time"

	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/eventbus"
	"github.com/unicens-go/unicens/job"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/scheduler"
	"github.com/unicens-go/unicens/transport"
)

// commandTimeout bounds every INIC command a job queue's actions send,
// matching the 100ms used throughout the diagnosis/programming FSMs.
const commandTimeout = 100 * time.Millisecond

// guardDelay is the short per-failure guard of spec §4.4 ("~200ms").
const guardDelay = 200 * time.Millisecond

// periodicGuardInterval is the periodic re-injection guard of spec §4.4
// ("~10s ... to catch silent misses").
const periodicGuardInterval = 10 * time.Second

// defaultStartupTimeoutThreshold is the number of consecutive guard
// re-injections allowed before StartupTimeout is reported, per
// ucs_netstarter.c's startup-timeout detection (SPEC_FULL.md).
const defaultStartupTimeoutThreshold = 3

// EventKind identifies a Network-Starter progress notification.
type EventKind int

const (
	EventQueueFailed EventKind = iota
	EventStartupTimeout
	EventUnexpectedStatus
)

// Event is reported through OnEvent.
type Event struct {
	Kind      EventKind
	QueueName string
	Err       error
	Status    model.NetworkStatus
}

// Params configures the jobs a queue run needs beyond the target mode
// itself (spec §4.4: "NwStartup ... accept packet bandwidth, an
// auto-forced-NA time (5s), and (optionally) the proxy bandwidth").
type Params struct {
	PacketBandwidth    uint16
	ProxyChannelBW     uint16 // 0 means "no proxy channel configured"
	AutoForcedNATime   time.Duration
	FallbackDuration   uint16
}

// Starter drives Network-Starter for a single instance. It is not a
// scheduler.Service itself (its job queues block on facade round trips
// from their own goroutine); the Starter only arms scheduler timers for
// the guard delays spec §4.4 describes.
type Starter struct {
	facade *transport.Facade
	status *eventbus.MaskedSubject
	log    *clog.CLogger

	catalog *job.Catalog

	mu               sync.Mutex
	target           model.SupervisorMode
	state            model.SupervisorState
	params           Params
	initial          bool
	jobRunning       bool
	lastStatus       model.NetworkStatus
	haveLastStatus   bool
	statusToken      eventbus.Token
	subscribed       bool
	guardTimer       scheduler.OneShot
	periodicGuard    scheduler.Periodic
	periodicArmed    bool
	consecutiveFails int

	StartupTimeoutThreshold int

	OnStateChange func(model.ModeState)
	OnEvent       func(Event)
}

// New builds a Starter sending commands through facade to the local INIC
// (target address 0), driven by NetworkStatus notifications delivered on
// status.
func New(facade *transport.Facade, status *eventbus.MaskedSubject) *Starter {
	s := &Starter{
		facade:                  facade,
		status:                  status,
		log:                     clog.New("netstarter"),
		StartupTimeoutThreshold: defaultStartupTimeoutThreshold,
	}
	s.catalog = buildCatalog(s)
	return s
}

func statusKind(mask model.StatusChangeMask) uint32 { return uint32(mask) }

// statusMask is the 4-bit change mask spec §4.4 registers the
// network-status observer with.
const statusMask = model.MaskAvailability | model.MaskAvailInfo | model.MaskNodeAddress | model.MaskNodePosition

// SetTarget changes the target supervisor mode, per spec §4.4's
// algorithm: unregister the previous observer, reset the initial flag,
// re-register with the 4-bit mask, and declare Busy.
func (s *Starter) SetTarget(mode model.SupervisorMode, params Params) {
	s.mu.Lock()
	if s.subscribed {
		s.status.Unsubscribe(s.statusToken)
		s.subscribed = false
	}
	s.guardTimer.Cancel()
	if s.periodicArmed {
		s.periodicGuard.Cancel()
		s.periodicArmed = false
	}

	s.target = mode
	s.params = params
	s.initial = true
	s.jobRunning = false
	s.haveLastStatus = false
	s.consecutiveFails = 0
	s.state = model.StateBusy
	s.mu.Unlock()

	s.reportState()

	s.mu.Lock()
	s.statusToken = s.status.Subscribe(statusKind(statusMask), eventbus.ObserverFunc(s.onStatusEvent))
	s.subscribed = true
	s.periodicGuard.Arm(periodicGuardInterval, s.onPeriodicGuard)
	s.periodicArmed = true
	s.mu.Unlock()
}

// Stop tears down the current subscription and timers without changing
// the reported state; used when the instance shuts down entirely.
func (s *Starter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		s.status.Unsubscribe(s.statusToken)
		s.subscribed = false
	}
	s.guardTimer.Cancel()
	if s.periodicArmed {
		s.periodicGuard.Cancel()
		s.periodicArmed = false
	}
}

// State reports the current {mode, state} pair.
func (s *Starter) State() model.ModeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.ModeState{Mode: s.target, State: s.state}
}

func (s *Starter) onStatusEvent(evt eventbus.Event) {
	status, ok := evt.Payload.(model.NetworkStatus)
	if !ok {
		return
	}
	s.handleStatus(status)
}

func (s *Starter) onPeriodicGuard() {
	s.mu.Lock()
	status, have := s.lastStatus, s.haveLastStatus
	s.mu.Unlock()
	if have {
		s.handleStatus(status)
	}
}

func (s *Starter) onGuardTimer() {
	s.mu.Lock()
	status := s.lastStatus
	s.mu.Unlock()
	s.handleStatus(status)
}

// handleStatus is the mode-specific dispatch of spec §4.4.
func (s *Starter) handleStatus(status model.NetworkStatus) {
	s.mu.Lock()
	if s.jobRunning {
		s.mu.Unlock()
		return // a queue is already in flight for the previous notification
	}
	s.lastStatus = status
	s.haveLastStatus = true
	initial := s.initial
	mode := s.target
	s.initial = false
	s.mu.Unlock()

	if mode == model.ModeDiagnosis && !initial {
		return // spec §4.4: "only the initial notification drives a job ... then silence"
	}

	d := decide(mode, status, initial, s.params)
	if d.queueName != "" {
		s.runQueue(d.queueName, status)
		return
	}
	if d.ready {
		s.setReady()
	}
}

func (s *Starter) runQueue(name string, status model.NetworkStatus) {
	q := s.catalog.Lookup(name)
	if q == nil {
		s.log.Errorf("no such job queue %q", name)
		return
	}

	s.mu.Lock()
	s.jobRunning = true
	s.mu.Unlock()

	q.Reset()
	go func() {
		outcome := q.Run()

		s.mu.Lock()
		s.jobRunning = false
		s.mu.Unlock()

		if outcome.Succeeded {
			s.mu.Lock()
			s.consecutiveFails = 0
			s.mu.Unlock()
			if name == "InitAllOnly" {
				// spec §4.4: "trigger InitAll and declare Ready".
				s.setReady()
			}
			return
		}
		s.onQueueFailed(name, outcome, status)
	}()
}

func (s *Starter) onQueueFailed(name string, outcome job.Outcome, status model.NetworkStatus) {
	s.log.Errorf("job queue %q failed at %q: %v", name, outcome.FailedJob, outcome.FailedErr)
	if s.OnEvent != nil {
		s.OnEvent(Event{Kind: EventQueueFailed, QueueName: name, Err: outcome.FailedErr, Status: status})
	}

	s.mu.Lock()
	s.consecutiveFails++
	fails := s.consecutiveFails
	threshold := s.StartupTimeoutThreshold
	s.mu.Unlock()

	if threshold > 0 && fails >= threshold {
		s.mu.Lock()
		s.consecutiveFails = 0
		s.mu.Unlock()
		if s.OnEvent != nil {
			s.OnEvent(Event{Kind: EventStartupTimeout, QueueName: name, Status: status})
		}
	}

	s.guardTimer.Arm(guardDelay, s.onGuardTimer)
}

func (s *Starter) setReady() {
	s.mu.Lock()
	already := s.state == model.StateReady
	s.state = model.StateReady
	s.mu.Unlock()
	if !already {
		s.reportState()
	}
}

func (s *Starter) reportState() {
	if s.OnStateChange != nil {
		s.OnStateChange(s.State())
	}
}
