// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package job

// Queue is an ordered sequence of Jobs, run in order, stopping at the
// first failure (spec §3).
type Queue struct {
	Name string
	jobs []*Job
}

// NewQueue builds a Queue named name from the given jobs, in order.
func NewQueue(name string, jobs ...*Job) *Queue {
	return &Queue{Name: name, jobs: jobs}
}

// Reset returns every Job in the queue to Pending so the queue can be
// run again.
func (q *Queue) Reset() {
	for _, j := range q.jobs {
		j.Reset()
	}
}

// Outcome is reported to a Queue's observer once it stops, either
// because every Job succeeded or because one failed.
type Outcome struct {
	QueueName  string
	Succeeded  bool
	FailedJob  string // name of the failing Job; empty if Succeeded
	FailedErr  error
}

// Run executes every Job in order, stopping at the first failure, and
// returns the Outcome. The queue must be in a freshly Reset (or never
// run) state; running a queue whose jobs are not all Pending panics via
// Job.run's own guard.
func (q *Queue) Run() Outcome {
	for _, j := range q.jobs {
		if ok := j.run(); !ok {
			return Outcome{QueueName: q.Name, Succeeded: false, FailedJob: j.Name, FailedErr: j.Err()}
		}
	}
	return Outcome{QueueName: q.Name, Succeeded: true}
}

// Jobs returns the queue's jobs in run order, primarily for tests and
// diagnostics.
func (q *Queue) Jobs() []*Job {
	return q.jobs
}
