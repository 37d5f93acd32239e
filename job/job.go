// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package job implements the Job/JobQueue primitive of spec §3: a named,
// ordered sequence of actions run one at a time, stopping at the first
// failure, with a single observer notified of the overall outcome.
//
// The named-lookup shape (Catalog.Register/Lookup/Names) is grounded on
// the teacher's compute/registry.Registry, generalized from holding
// Computation implementations to holding pre-built job queues (spec
// §4.4's Startup/ForceStartup/Shutdown/... table).
package job

import "fmt"

// Result is the terminal state of a Job, per spec §3: a Job transitions
// only Pending->Success or Pending->Failed, never back to Pending
// without an explicit Reset.
type Result int

const (
	Pending Result = iota
	Success
	Failed
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case Failed:
		return "Failed"
	default:
		return "Pending"
	}
}

// ActionFunc performs one Job's work. It returns true on success; any
// error value is attached to the Job for diagnostics but does not
// change the pass/fail contract, which is carried purely by the bool.
type ActionFunc func() (ok bool, err error)

// Job is one action plus its outcome.
type Job struct {
	Name   string
	Action ActionFunc
	result Result
	err    error
}

// Result returns the job's current outcome.
func (j *Job) Result() Result { return j.result }

// Err returns the error, if any, recorded by the last run.
func (j *Job) Err() error { return j.err }

// Reset returns the Job to Pending so it can be reused across queue
// runs, per spec §3 ("not reused across queue runs without reset").
func (j *Job) Reset() {
	j.result = Pending
	j.err = nil
}

// run executes the job's action exactly once, transitioning
// Pending->Success or Pending->Failed. Calling run on a non-Pending job
// is a logic error in this package's own callers and panics, the same
// way re-using a sync.WaitGroup incorrectly panics — job queues never
// call run twice on the same Job without an intervening Reset.
func (j *Job) run() bool {
	if j.result != Pending {
		panic(fmt.Sprintf("job: %q run twice without Reset", j.Name))
	}
	ok, err := j.Action()
	j.err = err
	if ok {
		j.result = Success
	} else {
		j.result = Failed
	}
	return ok
}
