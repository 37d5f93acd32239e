// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package routemanager

import (
	"errors"
	"testing"

	"github.com/unicens-go/unicens/model"
)

type fakeManager struct {
	activated, deactivated []*model.Route
	obs                    RouteObserver
}

func (m *fakeManager) Activate(r *model.Route) error {
	m.activated = append(m.activated, r)
	r.State = model.RouteBuilding
	if m.obs != nil {
		m.obs(r)
	}
	return nil
}

func (m *fakeManager) Deactivate(r *model.Route) error {
	m.deactivated = append(m.deactivated, r)
	r.State = model.RouteIdle
	r.Active = false
	if m.obs != nil {
		m.obs(r)
	}
	return nil
}

func (m *fakeManager) ObserveRoutes(obs RouteObserver) { m.obs = obs }

func TestManagerInterfaceDrivesRouteLifecycle(t *testing.T) {
	var mgr Manager = &fakeManager{}
	fm := mgr.(*fakeManager)

	var notified []*model.Route
	mgr.ObserveRoutes(func(r *model.Route) { notified = append(notified, r) })

	route := &model.Route{}
	if err := mgr.Activate(route); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if route.State != model.RouteBuilding {
		t.Fatalf("state = %v, want RouteBuilding", route.State)
	}
	if len(notified) != 1 || notified[0] != route {
		t.Fatalf("observer not notified on activate")
	}

	if err := mgr.Deactivate(route); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if route.State != model.RouteIdle || route.Active {
		t.Fatalf("state after deactivate = %+v", route)
	}
	if len(fm.activated) != 1 || len(fm.deactivated) != 1 {
		t.Fatalf("call counts = %d/%d, want 1/1", len(fm.activated), len(fm.deactivated))
	}
}

func TestApplyATDRecordsSuccessAndFailure(t *testing.T) {
	route := &model.Route{}

	ApplyATD(route, 1234, nil)
	if !route.ATDSucceeded || route.ATDValue != 1234 {
		t.Fatalf("route after success = %+v", route)
	}

	ApplyATD(route, 0, errors.New("timeout"))
	if route.ATDSucceeded || route.ATDValue != 0 {
		t.Fatalf("route after failure = %+v, want cleared", route)
	}
}

func TestMarkEndpointsBuilt(t *testing.T) {
	route := &model.Route{}
	MarkEndpointsBuilt(route, true, false)
	if !route.Source.Built || route.Sink.Built {
		t.Fatalf("route endpoints = %+v", route)
	}
}
