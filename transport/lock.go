// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/unicens-go/unicens/model"
)

// ServiceLock is the EXC sub-channel mutual-exclusion guard of spec §5:
// at most one of Node-Discovery, Programming, FullDuplex-Diag,
// HalfDuplex-Diag, and Fallback-Protect may run at a time. It is a
// weighted semaphore of size 1 (golang.org/x/sync/semaphore) so a second
// caller gets a non-blocking model.ApiLocked instead of queuing, which
// is the behavior spec §7 requires ("ApiLocked when the EXC service lock
// is held").
type ServiceLock struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	holder string
}

// NewServiceLock returns an unheld ServiceLock.
func NewServiceLock() *ServiceLock {
	return &ServiceLock{sem: semaphore.NewWeighted(1)}
}

// TryAcquire attempts to take the lock on behalf of owner (a component
// name used for diagnostics, e.g. "discovery", "fdx-diag"). It returns
// nil on success or a *model.Error{Code: model.ApiLocked} if another
// component already holds it.
func (l *ServiceLock) TryAcquire(owner string) error {
	if !l.sem.TryAcquire(1) {
		return model.NewError(model.ApiLocked, "EXC service lock held by %s", l.Holder())
	}
	l.mu.Lock()
	l.holder = owner
	l.mu.Unlock()
	return nil
}

// Acquire blocks until the lock is available or ctx is canceled.
func (l *ServiceLock) Acquire(ctx context.Context, owner string) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.mu.Lock()
	l.holder = owner
	l.mu.Unlock()
	return nil
}

// Release gives the lock back. Calling Release without a matching
// successful Acquire/TryAcquire is a programming error (mirrors
// sync.Mutex.Unlock on an unlocked mutex) and will panic via the
// underlying semaphore.
func (l *ServiceLock) Release() {
	l.mu.Lock()
	l.holder = ""
	l.mu.Unlock()
	l.sem.Release(1)
}

// Holder returns the name of the component currently holding the lock,
// or "" if unheld. Intended for diagnostics/logging only.
func (l *ServiceLock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}
