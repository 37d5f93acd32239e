// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package modegate

import (
	"errors"
	"testing"

	"github.com/unicens-go/unicens/model"
)

func TestCheckPermissionTable(t *testing.T) {
	cases := []struct {
		api     API
		mode    model.SupervisorMode
		allowed bool
	}{
		{APIManualOnly, model.ModeManual, true},
		{APIManualOnly, model.ModeNormal, false},
		{APISetMode, model.ModeInactive, true},
		{APISetMode, model.ModeManual, false},
		{APIProgramNode, model.ModeProgramming, true},
		{APIProgramNode, model.ModeInactive, false},
		{APIGetNodesCount, model.ModeFallback, false},
		{APIGetNodesCount, model.ModeProgramming, true},
	}
	for _, c := range cases {
		err := Check(c.api, c.mode)
		if c.allowed && err != nil {
			t.Errorf("Check(%v, %v) = %v, want nil", c.api, c.mode, err)
		}
		if !c.allowed && err == nil {
			t.Errorf("Check(%v, %v) = nil, want NotSupported", c.api, c.mode)
		}
	}
}

func TestCheckTransitionAlreadySetBeforeLegality(t *testing.T) {
	err := CheckTransition(model.ModeManual, model.ModeManual, model.StateReady)
	var merr *model.Error
	if !errors.As(err, &merr) || merr.Code != model.AlreadySet {
		t.Fatalf("CheckTransition(Manual, Manual) = %v, want AlreadySet (even though Manual allows no transitions)", err)
	}
}

func TestCheckTransitionLegality(t *testing.T) {
	if err := CheckTransition(model.ModeInactive, model.ModeProgramming, model.StateReady); err != nil {
		t.Fatalf("Inactive -> Programming while Ready = %v, want nil", err)
	}
	if err := CheckTransition(model.ModeInactive, model.ModeProgramming, model.StateBusy); err == nil {
		t.Fatal("Inactive -> Programming while Busy should fail")
	}
	if err := CheckTransition(model.ModeNormal, model.ModeDiagnosis, model.StateReady); err == nil {
		t.Fatal("Normal -> Diagnosis is not a legal transition")
	}
	if err := CheckTransition(model.ModeManual, model.ModeNormal, model.StateReady); err == nil {
		t.Fatal("Manual allows no transitions")
	}
}
