// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package discovery

import (
	"sync"

	"github.com/unicens-go/unicens/model"
)

// welcomeTracker records which admin addresses have already been
// welcomed this discovery round (spec §4.5: "the InitAll broadcast
// resets every node to un-welcomed state").
//
// Adapted from the teacher's compute/components.Tracker: the same
// RWMutex-guarded set-membership shape, generalized from tracking
// coordinator/worker ids by role to tracking admin addresses by segment.
type welcomeTracker struct {
	mu       sync.RWMutex
	welcomed map[model.NodeAddress]struct{}
}

func newWelcomeTracker() *welcomeTracker {
	return &welcomeTracker{welcomed: make(map[model.NodeAddress]struct{})}
}

// TryWelcome records addr as welcomed. It returns true the first time
// addr is welcomed, false if addr was already recorded.
func (t *welcomeTracker) TryWelcome(addr model.NodeAddress) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.welcomed[addr]; ok {
		return false
	}
	t.welcomed[addr] = struct{}{}
	return true
}

// Reset clears every welcomed address, per spec §4.5's InitAll behavior.
func (t *welcomeTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.welcomed = make(map[model.NodeAddress]struct{})
}

// Count reports how many admin addresses are currently welcomed.
func (t *welcomeTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.welcomed)
}
