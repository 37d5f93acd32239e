// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package model defines the shared data types of the network supervisor:
// node signatures, application-supplied node records, routes, network
// status, and the supervisor's own mode/state pair. These types have no
// behavior of their own; every component that addresses a node or reports
// progress does so in terms of the types defined here.
package model

import "fmt"

// NodeAddress identifies a node on the ring. The admin range
// 0x0F00-0x0FFF is allocated transiently during discovery and diagnosis;
// normal addresses live in 0x0400-0x043F (local) and above.
type NodeAddress uint16

const (
	// AddressLocalINIC is the address of the local Network Interface
	// Controller itself.
	AddressLocalINIC NodeAddress = 0x0001
	// AddressBroadcastBlocking addresses every node and blocks for
	// individual acknowledgements.
	AddressBroadcastBlocking NodeAddress = 0xFFFF
	// AddressAdminBase is the first admin address handed out during
	// discovery and diagnosis; see AdminAddress.
	AddressAdminBase NodeAddress = 0x0F00
	// AddressLocalConfig addresses the local node's own configuration
	// resources.
	AddressLocalConfig NodeAddress = 0x0400
	// AddressRemoteRangeLow and AddressRemoteRangeHigh bound the node
	// position address range used by Prog_Start.
	AddressRemoteRangeLow  NodeAddress = 0x0401
	AddressRemoteRangeHigh NodeAddress = 0x043F
)

// AdminAddress allocates the transient admin address for a segment or
// position index, per spec §3: 0x0F00 + index.
func AdminAddress(index int) NodeAddress {
	return AddressAdminBase + NodeAddress(index)
}

// MAC48 is a 48-bit MAC-style hardware address, stored big-endian.
type MAC48 [6]byte

func (m MAC48) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Signature is the node identity record produced by a Hello response and
// consumed everywhere a node is addressed.
type Signature struct {
	NodeAddress   NodeAddress
	NodePosition  uint16
	GroupAddress  uint16
	MAC           MAC48
	NumPorts      uint8
	VersionLimit  uint16
	VersionActual uint16
}

func (s Signature) String() string {
	return fmt.Sprintf("node=0x%04X pos=%d group=0x%04X mac=%s ports=%d", s.NodeAddress, s.NodePosition, s.GroupAddress, s.MAC, s.NumPorts)
}
