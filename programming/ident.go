// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package programming

import "github.com/unicens-go/unicens/model"

// MemID selects which of a node's memories an ident-string targets, per
// spec §4.9 ("mem_id=ISTEST" for RAM, "mem_id=IS" for ROM).
type MemID uint8

const (
	MemIDTest MemID = iota // ISTEST: RAM
	MemIDIS                // IS: ROM
)

// identStringLen is the fixed 14-byte record length of spec §4.9.
const identStringLen = 14

// BuildIdentString builds the 14-byte ident-string record of spec §4.9:
// {version=0x41, 0xFF, node_address_be, group_address_be|0xFC00,
// mac_15_0_be, mac_31_16_be, mac_47_32_be, CCITT-16(first 12 bytes,
// init=0) little-endian}, byte layout and CRC construction both taken
// from original_source/src/ucs_prog.c's Prg_Build_IS_DataString.
func BuildIdentString(addr, group model.NodeAddress, mac model.MAC48) [identStringLen]byte {
	var b [identStringLen]byte
	b[0] = 0x41
	b[1] = 0xFF
	putU16BE(b[2:4], uint16(addr))
	putU16BE(b[4:6], uint16(group)|0xFC00)
	// the MAC's 6 bytes split into three big-endian 16-bit words
	// mac_15_0/mac_31_16/mac_47_32 (original_source/src/ucs_prog.c's
	// Prg_Build_IS_DataString), least-significant word first: with MAC48
	// stored big-endian (m[0] most-significant), mac_15_0 is m[4:6].
	putU16BE(b[6:8], uint16(mac[4])<<8|uint16(mac[5]))
	putU16BE(b[8:10], uint16(mac[2])<<8|uint16(mac[3]))
	putU16BE(b[10:12], uint16(mac[0])<<8|uint16(mac[1]))

	crc := crcCCITT(b[:12])
	b[12] = byte(crc)
	b[13] = byte(crc >> 8)
	return b
}

func putU16BE(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}

// crcCCITT computes the reflected CCITT-16 variant spec §4.9's
// ident-string checks use, per original_source/src/ucs_prog.c's
// Prg_calcCCITT16/Prg_calcCCITT16Step byte-stepping construction. This
// is not the textbook MSB-first, poly-0x1021 CRC-16/XMODEM a "CCITT-16"
// name would usually suggest; the node firmware only accepts this
// byte-step variant. No library in the retrieval pack offers it, so
// this is a direct port of the original's per-byte step rather than a
// borrowed implementation.
func crcCCITT(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crcCCITTStep(crc, b)
	}
	return crc
}

func crcCCITTStep(crc uint16, value byte) uint16 {
	crcHi := byte(crc >> 8)
	crcLo := byte(crc)

	value = (value ^ crcLo) & 0xFF
	value = (value ^ (value << 4)) & 0xFF
	crcLo = (crcHi ^ (value<<3)&0xFC ^ (value>>4)&0x0F) & 0xFF
	crcHi = (value ^ (value>>5)&0x07) & 0xFF

	return uint16(crcHi)<<8 | uint16(crcLo)
}
