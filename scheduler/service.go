// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package scheduler implements the cooperative, priority-ordered service
// dispatch loop and the one-shot/periodic timer manager of spec §4.3.
//
// A single Scheduler runs every registered Service in strict priority
// order (lower Priority value is more important) whenever the host
// calls Service, exactly mirroring the embedding model of spec §5: the
// host drives the stack by invoking Service() when it has been told to
// (via RequestServiceFunc) or when a timer it armed has elapsed. There
// is no preemption — RunService always runs to completion before the
// next Service is considered, so a higher-priority Service only ever
// jumps ahead at the next Service-boundary, never mid-callback.
package scheduler

// Service is one cooperatively scheduled component (Network-Starter,
// Node-Discovery, FullDuplex-Diag, ...). HasPendingWork/RunService let
// the Scheduler ask "does this Service have anything to do right now?"
// without the Service needing to expose its internal event mask type.
type Service interface {
	// Priority orders dispatch; lower values run first.
	Priority() int
	// HasPendingWork reports whether RunService would do anything if
	// called right now.
	HasPendingWork() bool
	// RunService drains whatever pending work HasPendingWork observed.
	// It must clear the condition(s) it handles so a subsequent
	// HasPendingWork call reflects only newly arrived work.
	RunService()
}

// Named is an optional interface a Service can implement to improve
// diagnostics; the Scheduler does not require it.
type Named interface {
	Name() string
}
