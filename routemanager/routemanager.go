// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package routemanager defines the boundary to the (external) routing
// graph engine, per spec §2 ("Route Manager interface: Activate/
// deactivate/observe routes; consumed, not implemented here") and the
// Non-goals ("the application routing graph engine accepted as an
// external module invoked by the supervisor"). The supervisor only
// calls through Manager and only ever mutates a Route's ATD field and
// its endpoints' Built flags, per spec §3's ownership rule — everything
// else about a Route belongs to whatever implements Manager.
package routemanager

import "github.com/unicens-go/unicens/model"

// RouteObserver is notified whenever Manager's owner changes a route's
// state out from under the supervisor (e.g. the application deactivates
// a route directly).
type RouteObserver func(route *model.Route)

// Manager is implemented by the external routing engine. Rm_SetRouteActive
// (spec §4.12's permission table) is the supervisor API that calls
// through to Activate/Deactivate.
type Manager interface {
	// Activate brings route up: builds both endpoints and requests ATD
	// calculation once they're built. Returns once accepted for
	// processing, not once fully active — callers observe completion
	// through ObserveRoutes.
	Activate(route *model.Route) error
	// Deactivate tears route down.
	Deactivate(route *model.Route) error
	// ObserveRoutes registers obs for every route state change the
	// manager makes.
	ObserveRoutes(obs RouteObserver)
}

// ApplyATD records the outcome of an atd.Session query onto route,
// the one field of a Route (besides endpoint Built flags) this module
// is allowed to mutate directly, per spec §3 ("the core only
// reads/updates the ATD field and the endpoint-built flag").
func ApplyATD(route *model.Route, valueUs uint16, err error) {
	if err != nil {
		route.ATDSucceeded = false
		route.ATDValue = 0
		return
	}
	route.ATDValue = valueUs
	route.ATDSucceeded = true
}

// MarkEndpointsBuilt records that both of route's endpoints have
// completed connection setup, the other field this module may mutate
// directly.
func MarkEndpointsBuilt(route *model.Route, sourceBuilt, sinkBuilt bool) {
	route.Source.Built = sourceBuilt
	route.Sink.Built = sinkBuilt
}
