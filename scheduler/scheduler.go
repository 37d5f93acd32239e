// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package scheduler

import "sort"

// RequestServiceFunc is the host callback invoked whenever a Service
// wants to be run but the host has not yet called Service() for this
// round — the Go analogue of spec §6's general.request_service_fptr.
// The host is free to call Scheduler.Service() synchronously from
// within this callback, or to defer it (e.g. by sending on a channel
// consumed by a dedicated goroutine); the Scheduler places no
// constraint on timing beyond "eventually".
type RequestServiceFunc func()

// Scheduler dispatches registered Services in strict priority order.
type Scheduler struct {
	requestService RequestServiceFunc
	services       []Service
}

// New creates a Scheduler. requestService may be nil, in which case the
// host is expected to call Service() on its own cadence (e.g. a ticker)
// instead of being nudged on demand.
func New(requestService RequestServiceFunc) *Scheduler {
	return &Scheduler{requestService: requestService}
}

// Register adds svc to the dispatch set, keeping the set sorted by
// Priority ascending (lower value = higher importance, spec §4.3).
// Register is not safe to call concurrently with Service; register all
// components during startup before the scheduler is driven.
func (s *Scheduler) Register(svc Service) {
	s.services = append(s.services, svc)
	sort.SliceStable(s.services, func(i, j int) bool {
		return s.services[i].Priority() < s.services[j].Priority()
	})
}

// RequestService notifies the host that at least one Service has new
// pending work. Components call this after arming an event (e.g. after
// an observer callback stores a result) instead of calling RunService
// directly, so the host retains control of when callbacks actually run.
func (s *Scheduler) RequestService() {
	if s.requestService != nil {
		s.requestService()
	}
}

// Service runs every Service with pending work, in priority order,
// repeating the full pass until none has pending work left. Because a
// RunService call can itself create pending work for a higher-priority
// Service (e.g. a termination event cascading into several components),
// the outer loop re-scans from the top of the priority order each pass
// rather than doing a single linear sweep — this is what gives
// higher-priority Services their "preempt at the next service boundary"
// guarantee from spec §4.3.
func (s *Scheduler) Service() {
	for {
		ranAny := false
		for _, svc := range s.services {
			if svc.HasPendingWork() {
				svc.RunService()
				ranAny = true
				break // re-scan from the top in priority order
			}
		}
		if !ranAny {
			return
		}
	}
}
