// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package netstarter

import (
	"github.com/unicens-go/unicens/job"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

// startupPayload mirrors spec §4.4's "NwStartup selects between two
// variants based on whether a nonzero proxy channel bandwidth is
// configured; both accept packet bandwidth, an auto-forced-NA time
// (5s), and (optionally) the proxy bandwidth".
type startupPayload struct {
	PacketBandwidth  uint16
	ProxyChannelBW   uint16
	AutoForcedNAMs   uint16
}

type fallbackPayload struct {
	Start    bool
	Duration uint16 // 0xFFFF means "never leave", spec §4.8
}

// sendAndWait issues req through s.facade with the package's command
// timeout and blocks the calling goroutine (a job's Action, always run
// off the caller's goroutine by Starter.runQueue) until the response
// arrives.
func (s *Starter) sendAndWait(target model.NodeAddress, fblock transport.FBlockID, fn transport.FunctionID, payload any) (bool, error) {
	done := make(chan transport.Response, 1)
	err := s.facade.Send(transport.Request{
		Target:   target,
		FBlock:   fblock,
		Function: fn,
		Payload:  payload,
	}, commandTimeout, func(r transport.Response) { done <- r })
	if err != nil {
		return false, err
	}
	resp := <-done
	if resp.Code != model.Success {
		// "the particular function-specific codes for packet-bandwidth-
		// out-of-range are logged but still treated as failed" (spec
		// §4.4) — every non-Success code fails the job the same way, the
		// logging happens in onQueueFailed once the queue stops.
		return false, model.NewError(resp.Code, "%v failed", fn)
	}
	return true, nil
}

func (s *Starter) autoForcedNAMs() uint16 {
	ms := s.params.AutoForcedNATime.Milliseconds()
	if ms <= 0 {
		return 5000 // spec §4.4: "an auto-forced-NA time (5s)"
	}
	return uint16(ms)
}

func (s *Starter) jobNwStartup() *job.Job {
	return &job.Job{Name: "NwStartup", Action: func() (bool, error) {
		return s.sendAndWait(0, transport.FBlockINIC, transport.FuncNetworkStartup, startupPayload{
			PacketBandwidth: s.params.PacketBandwidth,
			ProxyChannelBW:  s.params.ProxyChannelBW,
			AutoForcedNAMs:  s.autoForcedNAMs(),
		})
	}}
}

func (s *Starter) jobInitAll() *job.Job {
	return &job.Job{Name: "InitAll", Action: func() (bool, error) {
		return s.sendAndWait(0, transport.FBlockExtendedNetworkControl, transport.FuncInit, nil)
	}}
}

func (s *Starter) jobNwShutdown() *job.Job {
	return &job.Job{Name: "NwShutdown", Action: func() (bool, error) {
		return s.sendAndWait(0, transport.FBlockINIC, transport.FuncNetworkShutdown, nil)
	}}
}

func (s *Starter) jobLeaveForcedNA() *job.Job {
	return &job.Job{Name: "LeaveForcedNA", Action: func() (bool, error) {
		return s.sendAndWait(0, transport.FBlockINIC, transport.FuncNetworkForcedNA, false)
	}}
}

func (s *Starter) jobNwFallbackStart() *job.Job {
	return &job.Job{Name: "NwFallbackStart", Action: func() (bool, error) {
		return s.sendAndWait(0, transport.FBlockINIC, transport.FuncNetworkFallback, fallbackPayload{
			Start: true, Duration: s.params.FallbackDuration,
		})
	}}
}

func (s *Starter) jobNwFallbackStop() *job.Job {
	return &job.Job{Name: "NwFallbackStop", Action: func() (bool, error) {
		return s.sendAndWait(0, transport.FBlockINIC, transport.FuncNetworkFallback, fallbackPayload{Start: false})
	}}
}

// buildCatalog registers every pre-built queue of spec §4.4's table,
// plus the single-job "InitAllOnly" queue used by decideNormal's "first
// Available with node_position==0" rule.
func buildCatalog(s *Starter) *job.Catalog {
	c := job.NewCatalog()

	c.Register(job.NewQueue("Startup", s.jobNwStartup(), s.jobInitAll()))
	c.Register(job.NewQueue("ForceStartup", s.jobLeaveForcedNA(), s.jobNwStartup(), s.jobInitAll()))
	c.Register(job.NewQueue("Shutdown", s.jobNwShutdown()))
	c.Register(job.NewQueue("LeaveForcedNA", s.jobLeaveForcedNA()))
	c.Register(job.NewQueue("Restart", s.jobNwShutdown(), s.jobNwStartup(), s.jobInitAll()))
	c.Register(job.NewQueue("FallbackStart", s.jobNwFallbackStart()))
	c.Register(job.NewQueue("FallbackStop", s.jobNwFallbackStop()))
	c.Register(job.NewQueue("InitAllOnly", s.jobInitAll()))

	return c
}
