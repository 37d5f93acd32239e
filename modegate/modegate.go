// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package modegate implements the Supervisor's mode-gate (spec §4.12): a
// fixed permission table deciding which API groups are callable in which
// SupervisorMode, and the transition-legality table governing
// Supv_SetMode itself.
package modegate

import "github.com/unicens-go/unicens/model"

// API identifies one of spec §4.12's permission-table rows. Read-only
// APIs (allowed in every mode) need no gate check at all and are not
// enumerated here.
type API int

const (
	APIManualOnly API = iota // Rm_Start, Nd_Start/Stop, Diag_TriggerRbd, ...
	APISetMode
	APISetFbDuration
	APIProgramExit
	APIProgramNode
	APISetRouteActive
	APIGetAtdValue
	APIStreamPortConfig
	APIGetFrameCounter
	APIGetNodesCount
	APIAmsTxAllocSend
)

func (a API) String() string {
	switch a {
	case APIManualOnly:
		return "ManualOnly"
	case APISetMode:
		return "Supv_SetMode"
	case APISetFbDuration:
		return "Supv_SetFbDuration"
	case APIProgramExit:
		return "Supv_ProgramExit"
	case APIProgramNode:
		return "Supv_ProgramNode"
	case APISetRouteActive:
		return "Rm_SetRouteActive"
	case APIGetAtdValue:
		return "Rm_GetAtdValue"
	case APIStreamPortConfig:
		return "Xrm_Stream_Set/GetPortConfig"
	case APIGetFrameCounter:
		return "Network_GetFrameCounter"
	case APIGetNodesCount:
		return "Network_GetNodesCount"
	case APIAmsTxAllocSend:
		return "AmsTx_Alloc/Send"
	default:
		return "Unknown"
	}
}

// modeBit maps a SupervisorMode to its column bit in the permission
// table.
type modeBit uint8

const (
	bitManual modeBit = 1 << iota
	bitInactive
	bitNormal
	bitFallback
	bitDiagnosis
	bitProgramming
)

func bitFor(mode model.SupervisorMode) modeBit {
	switch mode {
	case model.ModeManual:
		return bitManual
	case model.ModeInactive:
		return bitInactive
	case model.ModeNormal:
		return bitNormal
	case model.ModeFallback:
		return bitFallback
	case model.ModeDiagnosis:
		return bitDiagnosis
	case model.ModeProgramming:
		return bitProgramming
	default:
		return 0
	}
}

// permissions is spec §4.12's table, transcribed row by row.
var permissions = map[API]modeBit{
	APIManualOnly:       bitManual,
	APISetMode:          bitInactive | bitNormal | bitFallback,
	APISetFbDuration:    bitInactive | bitNormal | bitFallback | bitDiagnosis | bitProgramming,
	APIProgramExit:      bitProgramming,
	APIProgramNode:      bitProgramming,
	APISetRouteActive:   bitManual | bitInactive | bitNormal | bitFallback,
	APIGetAtdValue:      bitManual | bitNormal,
	APIStreamPortConfig: bitManual | bitInactive | bitNormal,
	APIGetFrameCounter:  bitManual | bitNormal,
	APIGetNodesCount:    bitManual | bitInactive | bitNormal | bitProgramming,
	APIAmsTxAllocSend:   bitManual | bitInactive | bitNormal,
}

// Check reports whether api may be called while the supervisor is in
// mode. It returns nil for APIs not listed in permissions (the "most
// read APIs" row of spec §4.12, allowed in every mode) and
// *model.Error{Code: model.NotSupported} otherwise.
func Check(api API, mode model.SupervisorMode) error {
	allowed, ok := permissions[api]
	if !ok {
		return nil
	}
	if allowed&bitFor(mode) == 0 {
		return model.NewError(model.NotSupported, "%v not permitted in mode %v", api, mode)
	}
	return nil
}

// transitions is spec §4.12's transition-legality table. Diagnosis and
// Programming only ever transition internally back to Inactive (driven
// by the diagnosis/programming FSMs themselves, not by Supv_SetMode):
// the permissions table does not allow APISetMode in either mode, so
// their Inactive entries here are not reachable from outside.
var transitions = map[model.SupervisorMode]modeBit{
	model.ModeNormal:      bitInactive | bitFallback,
	model.ModeInactive:    bitNormal | bitFallback | bitDiagnosis | bitProgramming,
	model.ModeFallback:    bitInactive,
	model.ModeDiagnosis:   bitInactive,
	model.ModeProgramming: bitInactive,
}

// CheckTransition validates a Supv_SetMode(from -> to) request, with
// state carrying the current SupervisorState (Programming is reachable
// only from Inactive while state == Ready, spec §4.12). Per
// _examples/original_source/src/ucs_supvmode.c (SPEC_FULL.md's
// supplemented features), a same-mode request is rejected with
// AlreadySet before the transition table is even consulted.
func CheckTransition(from, to model.SupervisorMode, state model.SupervisorState) error {
	if from == to {
		return model.NewError(model.AlreadySet, "already in mode %v", to)
	}
	if from == model.ModeManual {
		return model.NewError(model.NotSupported, "Manual mode accepts no transitions")
	}
	allowed, ok := transitions[from]
	if !ok || allowed&bitFor(to) == 0 {
		return model.NewError(model.NotSupported, "%v -> %v is not a legal transition", from, to)
	}
	if to == model.ModeProgramming && state != model.StateReady {
		return model.NewError(model.NotSupported, "Programming is reachable only from Inactive while Ready")
	}
	return nil
}
