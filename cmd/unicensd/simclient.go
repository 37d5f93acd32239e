// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/transport"
)

// simulatedClient is a placeholder transport.INICClient: it accepts every
// request for transmission and logs it, but never produces a Response or
// broadcast. The actual byte-level FIFO/credit protocol to a local INIC is
// out of scope for this module (spec §1) and is supplied by a
// hardware-specific driver package at deployment time; this stand-in only
// lets the daemon start and exercise its mode-gate/wiring without one
// attached.
type simulatedClient struct {
	log *clog.CLogger
}

func newSimulatedClient(name string) *simulatedClient {
	return &simulatedClient{log: clog.New("simclient:" + name)}
}

func (c *simulatedClient) Send(req transport.Request) error {
	c.log.Debugf("send target=%#x fblock=%#x function=%#x corr=%s (no device attached)",
		req.Target, req.FBlock, req.Function, req.CorrelationID)
	return nil
}
