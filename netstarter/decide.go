// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package netstarter

import "github.com/unicens-go/unicens/model"

// decision is the outcome of applying spec §4.4's per-mode rule table to
// one NetworkStatus notification: either run a named job queue, or (if
// queueName is empty) optionally declare Ready directly.
type decision struct {
	queueName string
	ready     bool
}

// decide implements spec §4.4's "Rules per mode" table.
func decide(mode model.SupervisorMode, st model.NetworkStatus, initial bool, params Params) decision {
	switch mode {
	case model.ModeNormal:
		return decideNormal(st, params)
	case model.ModeInactive:
		return decideInactive(st)
	case model.ModeFallback:
		return decideFallback(st, initial)
	case model.ModeDiagnosis:
		// "only the initial notification drives a job (same decision
		// table as Inactive), then silence" — the caller (handleStatus)
		// already filters out non-initial notifications in this mode.
		return decideInactive(st)
	case model.ModeProgramming:
		return decideProgramming(st, initial)
	default:
		return decision{}
	}
}

func decideNormal(st model.NetworkStatus, params Params) decision {
	switch {
	case st.AvailInfo == model.AvailInfoForcedNA:
		return decision{queueName: "ForceStartup"}
	case st.AvailInfo == model.AvailInfoFallback:
		return decision{queueName: "FallbackStop"}
	case st.Availability == model.Unavailable && st.AvailInfo == model.AvailInfoRegular:
		return decision{queueName: "Startup"}
	case st.Availability == model.Available && st.PacketBandwidth != params.PacketBandwidth:
		return decision{queueName: "Restart"}
	case st.Availability == model.Available && st.NodePosition == 0:
		return decision{queueName: "InitAllOnly", ready: false}
	default:
		return decision{}
	}
}

func decideInactive(st model.NetworkStatus) decision {
	switch {
	case st.Availability == model.Available:
		return decision{queueName: "Shutdown"}
	case st.AvailInfo == model.AvailInfoForcedNA:
		return decision{queueName: "LeaveForcedNA"}
	case st.AvailInfo == model.AvailInfoFallback:
		return decision{queueName: "FallbackStop"}
	case st.Availability == model.Unavailable && st.AvailInfo == model.AvailInfoRegular:
		return decision{ready: true}
	default:
		return decision{}
	}
}

func decideFallback(st model.NetworkStatus, initial bool) decision {
	if !initial {
		return decision{}
	}
	if st.AvailInfo == model.AvailInfoFallback {
		return decision{ready: true}
	}
	return decision{queueName: "FallbackStart"}
}

func decideProgramming(st model.NetworkStatus, initial bool) decision {
	if !initial {
		return decision{}
	}
	if st.Availability == model.Unavailable && st.AvailInfo == model.AvailInfoRegular {
		return decision{ready: true}
	}
	return decision{}
}
