// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package model

// SupervisorMode is the top-level operating mode the supervisor drives
// the network towards. None is valid only during initialization, before
// the first mode has been adopted (spec §3).
//
// The String/Parse pair follows the same small enum idiom the teacher
// uses for ComponentRole (compute/components/common.go): a switch-based
// Stringer plus a lenient parser for config/telemetry round-tripping.
type SupervisorMode int

const (
	ModeNone SupervisorMode = iota
	ModeManual
	ModeInactive
	ModeNormal
	ModeFallback
	ModeDiagnosis
	ModeProgramming
)

func (m SupervisorMode) String() string {
	switch m {
	case ModeManual:
		return "Manual"
	case ModeInactive:
		return "Inactive"
	case ModeNormal:
		return "Normal"
	case ModeFallback:
		return "Fallback"
	case ModeDiagnosis:
		return "Diagnosis"
	case ModeProgramming:
		return "Programming"
	case ModeNone:
		return "None"
	default:
		return "Unknown"
	}
}

// ParseSupervisorMode parses a mode name as produced by String, used
// when reading supv.mode from configuration.
func ParseSupervisorMode(s string) SupervisorMode {
	switch s {
	case "Manual":
		return ModeManual
	case "Inactive":
		return ModeInactive
	case "Normal":
		return ModeNormal
	case "Fallback":
		return ModeFallback
	case "Diagnosis":
		return ModeDiagnosis
	case "Programming":
		return ModeProgramming
	default:
		return ModeNone
	}
}

// SupervisorState indicates whether the current target mode has been
// reached.
type SupervisorState int

const (
	StateBusy SupervisorState = iota
	StateReady
)

func (s SupervisorState) String() string {
	if s == StateReady {
		return "Ready"
	}
	return "Busy"
}

// ModeState is the (mode, state) pair the supervisor reports to the
// application through report_mode_fptr (spec §4.12).
type ModeState struct {
	Mode  SupervisorMode
	State SupervisorState
}

func (ms ModeState) String() string {
	return ms.Mode.String() + "/" + ms.State.String()
}
