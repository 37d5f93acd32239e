// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package main

import (
	"sync"

	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/routemanager"
)

// staticRouteManager is a placeholder routemanager.Manager: it treats
// Activate/Deactivate as immediate, unconditional transitions of the
// routes it was seeded with. The application routing graph engine
// (path computation, bandwidth admission, multi-hop rebuilding) is an
// explicit Non-goal of this module and is supplied externally; this
// stand-in only lets the daemon exercise Rm_SetRouteActive end to end
// without one attached.
type staticRouteManager struct {
	mu     sync.Mutex
	routes []*model.Route
	obs    routemanager.RouteObserver
}

func newStaticRouteManager(routes []*model.Route) *staticRouteManager {
	return &staticRouteManager{routes: routes}
}

func (m *staticRouteManager) Activate(route *model.Route) error {
	routemanager.MarkEndpointsBuilt(route, true, true)
	route.State = model.RouteActive
	route.Active = true
	m.notify(route)
	return nil
}

func (m *staticRouteManager) Deactivate(route *model.Route) error {
	routemanager.MarkEndpointsBuilt(route, false, false)
	route.State = model.RouteIdle
	route.Active = false
	m.notify(route)
	return nil
}

func (m *staticRouteManager) ObserveRoutes(obs routemanager.RouteObserver) {
	m.mu.Lock()
	m.obs = obs
	m.mu.Unlock()
}

func (m *staticRouteManager) notify(route *model.Route) {
	m.mu.Lock()
	obs := m.obs
	m.mu.Unlock()
	if obs != nil {
		obs(route)
	}
}
