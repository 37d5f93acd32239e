// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package supervisor

import (
	"testing"

	"github.com/unicens-go/unicens/config"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/netstarter"
	"github.com/unicens-go/unicens/programming"
	"github.com/unicens-go/unicens/transport"
)

type fakeClient struct{}

func (fakeClient) Send(transport.Request) error { return nil }

type fakeManager struct{}

func (fakeManager) Activate(*model.Route) error   { return nil }
func (fakeManager) Deactivate(*model.Route) error { return nil }
func (fakeManager) ObserveRoutes(func(*model.Route)) {}

func newTestInstance(t *testing.T, initialMode string, cb Callbacks) *Instance {
	t.Helper()
	cfg := &config.InitData{Supv: config.Supv{Mode: initialMode}}
	catalog := model.NewNodeCatalog(nil)
	return New(fakeClient{}, cfg, catalog, fakeManager{}, cb)
}

func TestModeCoalescingSkipsIntermediateReady(t *testing.T) {
	var reports []model.ModeState
	inst := newTestInstance(t, "Inactive", Callbacks{
		OnModeState: func(ms model.ModeState) { reports = append(reports, ms) },
	})

	if err := inst.SetMode(model.ModeNormal, netstarter.Params{}); err != nil {
		t.Fatalf("SetMode(Normal): %v", err)
	}
	if err := inst.SetMode(model.ModeFallback, netstarter.Params{}); err != nil {
		t.Fatalf("SetMode(Fallback) while transitioning: %v", err)
	}

	if ms := inst.ModeState(); ms.Mode != model.ModeNormal || ms.State != model.StateBusy {
		t.Fatalf("ModeState after coalesced request = %+v, want Normal/Busy (visible state unchanged until resolution)", ms)
	}

	// Network-Starter reports the (stale) Normal target ready; the
	// coalesced Fallback request should preempt it instead of surfacing
	// a Normal/Ready transition to the application.
	inst.onStarterStateChange(model.ModeState{Mode: model.ModeNormal, State: model.StateReady})

	if ms := inst.ModeState(); ms.Mode != model.ModeFallback || ms.State != model.StateBusy {
		t.Fatalf("ModeState after preemption = %+v, want Fallback/Busy", ms)
	}
	for _, r := range reports {
		if r.Mode == model.ModeNormal && r.State == model.StateReady {
			t.Fatalf("Normal/Ready was reported to the application despite being superseded: %+v", reports)
		}
	}

	inst.onStarterStateChange(model.ModeState{Mode: model.ModeFallback, State: model.StateReady})
	if ms := inst.ModeState(); ms.Mode != model.ModeFallback || ms.State != model.StateReady {
		t.Fatalf("final ModeState = %+v, want Fallback/Ready", ms)
	}
}

func TestProgramNodeRejectedOutsideProgrammingMode(t *testing.T) {
	inst := newTestInstance(t, "Inactive", Callbacks{})
	err := inst.ProgramNode(model.AddressLocalConfig, true, []programming.Command{}, netstarter.Params{})
	if err == nil {
		t.Fatal("expected ProgramNode to be rejected outside Programming mode")
	}
}

func TestStartDiscoveryLocksOutConcurrentStart(t *testing.T) {
	inst := newTestInstance(t, "Manual", Callbacks{})
	if err := inst.StartDiscovery(2); err != nil {
		t.Fatalf("StartDiscovery: %v", err)
	}
	if err := inst.StartDiscovery(2); err == nil {
		t.Fatal("expected second concurrent StartDiscovery to fail with ApiLocked")
	}
}
