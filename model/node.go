// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package model

// NodeRecord is an application-supplied description of a node the
// supervisor may encounter. Its lifetime is owned by the application;
// the core holds a non-owning reference (by value, copied into its own
// bookkeeping) and never assumes the application keeps the original
// around.
type NodeRecord struct {
	Signature     *Signature
	Available     bool // policy flag: node is expected to participate
	Programmable  bool // policy flag: node accepts Supv_ProgramNode
}

// NodeCatalog is an application-supplied, read-only list of NodeRecords
// handed to the supervisor at Init time (spec §6, supv.nodes_list_*).
type NodeCatalog struct {
	records []NodeRecord
}

// NewNodeCatalog copies the given records into a new catalog. Copying
// avoids any aliasing hazard with application-owned slices that may be
// mutated or freed after Init returns.
func NewNodeCatalog(records []NodeRecord) *NodeCatalog {
	c := &NodeCatalog{records: make([]NodeRecord, len(records))}
	copy(c.records, records)
	return c
}

// ByAddress looks up the record for a given node address, if present.
func (c *NodeCatalog) ByAddress(addr NodeAddress) (NodeRecord, bool) {
	if c == nil {
		return NodeRecord{}, false
	}
	for _, r := range c.records {
		if r.Signature != nil && r.Signature.NodeAddress == addr {
			return r, true
		}
	}
	return NodeRecord{}, false
}

// Len returns the number of records in the catalog.
func (c *NodeCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// All returns a copy of the underlying records, safe for the caller to
// range over without holding any lock (the catalog is immutable after
// construction).
func (c *NodeCatalog) All() []NodeRecord {
	if c == nil {
		return nil
	}
	out := make([]NodeRecord, len(c.records))
	copy(out, c.records)
	return out
}
