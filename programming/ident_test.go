// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package programming

import (
	"testing"

	"github.com/unicens-go/unicens/model"
)

func TestBuildIdentStringLayout(t *testing.T) {
	addr := model.NodeAddress(0x0401)
	group := model.NodeAddress(0x0010)
	mac := model.MAC48{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

	rec := BuildIdentString(addr, group, mac)

	// Expected record independently computed from
	// original_source/src/ucs_prog.c's Prg_Build_IS_DataString/
	// Prg_calcCCITT16Step for this addr/group/mac, not recomputed with
	// the function under test.
	want := [identStringLen]byte{
		0x41, 0xFF, 0x04, 0x01, 0xFC, 0x10,
		0x44, 0x55, 0x22, 0x33, 0x00, 0x11,
		0x55, 0xAD,
	}
	if rec != want {
		t.Fatalf("BuildIdentString = % 02X, want % 02X", rec, want)
	}

	// mac_15_0 = m[4:6], mac_31_16 = m[2:4], mac_47_32 = m[0:2]
	// (least-significant word first), per ucs_prog.c.
	if rec[6] != mac[4] || rec[7] != mac[5] {
		t.Fatalf("mac_15_0 field = %02X%02X, want %02X%02X", rec[6], rec[7], mac[4], mac[5])
	}
	if rec[8] != mac[2] || rec[9] != mac[3] {
		t.Fatalf("mac_31_16 field = %02X%02X, want %02X%02X", rec[8], rec[9], mac[2], mac[3])
	}
	if rec[10] != mac[0] || rec[11] != mac[1] {
		t.Fatalf("mac_47_32 field = %02X%02X, want %02X%02X", rec[10], rec[11], mac[0], mac[1])
	}
}

func TestCrcCCITTKnownVector(t *testing.T) {
	// "123456789" is the standard CRC test vector; original_source's
	// reflected Prg_calcCCITT16/Prg_calcCCITT16Step (init=0) yields
	// 0x2189 for it, not the 0x31C3 a textbook MSB-first CRC-16/XMODEM
	// would produce.
	got := crcCCITT([]byte("123456789"))
	if got != 0x2189 {
		t.Fatalf("crcCCITT(\"123456789\") = %#04x, want 0x2189", got)
	}
}
