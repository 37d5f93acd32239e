// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package job

import "slices"

// Catalog manages a set of named, pre-built Queues for lookup by
// Network-Starter's mode-specific dispatch table (spec §4.4). Its
// Register/Lookup/Names shape mirrors the teacher's
// compute/registry.Registry, generalized from Computation values to
// *Queue values.
type Catalog struct {
	queues map[string]*Queue
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{queues: make(map[string]*Queue)}
}

// Register adds q under its own Name.
func (c *Catalog) Register(q *Queue) {
	c.queues[q.Name] = q
}

// Lookup gets the queue of the given name, if registered.
func (c *Catalog) Lookup(name string) *Queue {
	if q, ok := c.queues[name]; ok {
		return q
	}
	return nil
}

// Names gets every registered queue name, ordered ascendingly.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.queues))
	for k := range c.queues {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
