// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package telemetry is the external pub/sub facade of spec §6's "Result
// reports to the application": it publishes a supervisor.Instance's
// report_mode/report_fdx_diag/report_hdx_diag/report_fallback/
// report_programming callbacks as DDA Events and accepts Supv_SetMode,
// Supv_ProgramNode, and Nd_Start as DDA Actions, using
// github.com/coatyio/dda the same way the teacher's
// components.Coordinator/components.Worker use it for their own
// announce/trackCoordinators Action/Event request-response-with-
// correlation pattern.
package telemetry

import (
	"context"
	"encoding/json"

	"github.com/coatyio/dda/config"
	"github.com/coatyio/dda/dda"
	"github.com/coatyio/dda/services/com/api"

	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/diagfdx"
	"github.com/unicens-go/unicens/diaghdx"
	"github.com/unicens-go/unicens/fallback"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/netstarter"
	"github.com/unicens-go/unicens/programming"
	"github.com/unicens-go/unicens/supervisor"
)

// Event types published on the DDA bus.
const (
	EventTypeModeState   = "unicens.mode"
	EventTypeFdxDiag     = "unicens.diag.fdx"
	EventTypeHdxDiag     = "unicens.diag.hdx"
	EventTypeFallback    = "unicens.fallback"
	EventTypeProgramming = "unicens.programming"
)

// Action types accepted from the DDA bus, each mapped to one of spec
// §4.12's externally callable APIs.
const (
	ActionTypeSetMode        = "unicens.supv.setMode"
	ActionTypeProgramNode    = "unicens.supv.programNode"
	ActionTypeStartDiscovery = "unicens.nd.start"
)

// Config configures the embedded DDA instance; BrokerURL/IdentityName/
// IdentityID mirror the fields the teacher's Worker.initDda sets on
// dda/config.New's result.
type Config struct {
	BrokerURL    string
	IdentityName string
	IdentityID   string
}

// Gateway bridges one supervisor.Instance onto the DDA bus.
type Gateway struct {
	log          *clog.CLogger
	dda          *dda.Dda
	instanceName string
	inst         *supervisor.Instance
}

// New creates a Gateway for inst, identified on the bus as
// instanceName (so a supervisor.Pool running several Instances can be
// told apart by remote tooling). New does not open the DDA connection;
// call Open.
func New(instanceName string, inst *supervisor.Instance, cfg Config) (*Gateway, error) {
	ddaCfg := config.New()
	ddaCfg.Services.Com.Url = cfg.BrokerURL
	ddaCfg.Identity.Name = cfg.IdentityName
	ddaCfg.Identity.Id = cfg.IdentityID
	ddaCfg.Apis.Grpc.Disabled = true
	ddaCfg.Apis.GrpcWeb.Disabled = true

	d, err := dda.New(ddaCfg)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		log:          clog.New("telemetry"),
		dda:          d,
		instanceName: instanceName,
		inst:         inst,
	}, nil
}

// Open starts the DDA communication service, wires inst's report
// callbacks to the Event side, and subscribes the Action side. Open
// blocks only for the initial DDA connection; the Action handlers run on
// their own goroutines, unsubscribed automatically when ctx is
// canceled, mirroring the teacher's trackCoordinators/
// subscribePartialComputations shape.
func (g *Gateway) Open(ctx context.Context) error {
	if err := g.dda.Open(0); err != nil {
		return err
	}

	g.inst.WireCallbacks(supervisor.Callbacks{
		OnModeState:   g.publishModeState,
		OnFdxDiag:     g.publishFdxDiag,
		OnHdxDiag:     g.publishHdxDiag,
		OnFallback:    g.publishFallback,
		OnProgramming: g.publishProgramming,
	})

	if err := g.serveSetMode(ctx); err != nil {
		return err
	}
	if err := g.serveProgramNode(ctx); err != nil {
		return err
	}
	if err := g.serveStartDiscovery(ctx); err != nil {
		return err
	}
	return nil
}

// Close shuts down the DDA instance.
func (g *Gateway) Close() {
	g.dda.Close()
}

func (g *Gateway) publish(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		g.log.Errorf("marshaling %s payload: %v", eventType, err)
		return
	}
	evt := api.Event{Type: eventType, Id: g.instanceName, Source: g.instanceName, Data: data}
	if err := g.dda.PublishEvent(evt); err != nil {
		g.log.Errorf("publishing %s: %v", eventType, err)
	}
}

type modeStatePayload struct {
	Mode  string `json:"mode"`
	State string `json:"state"`
}

func (g *Gateway) publishModeState(ms model.ModeState) {
	g.publish(EventTypeModeState, modeStatePayload{Mode: ms.Mode.String(), State: ms.State.String()})
}

type fdxDiagPayload struct {
	Kind    string                  `json:"kind"`
	Segment diagfdx.SegmentReport   `json:"segment"`
	Link    diagfdx.CableLinkReport `json:"cableLink"`
}

func (g *Gateway) publishFdxDiag(e diagfdx.Event) {
	g.publish(EventTypeFdxDiag, fdxDiagPayload{Kind: fdxKindName(e.Kind), Segment: e.Segment, Link: e.CableLink})
}

func fdxKindName(k diagfdx.EventKind) string {
	switch k {
	case diagfdx.EventSegment:
		return "segment"
	case diagfdx.EventCableLink:
		return "cableLink"
	case diagfdx.EventFinished:
		return "finished"
	case diagfdx.EventError:
		return "error"
	default:
		return "unknown"
	}
}

type hdxDiagPayload struct {
	Outcome  string `json:"outcome"`
	Position uint16 `json:"position"`
}

func (g *Gateway) publishHdxDiag(e diaghdx.Event) {
	g.publish(EventTypeHdxDiag, hdxDiagPayload{Outcome: hdxOutcomeName(e.Outcome), Position: e.Position})
}

func hdxOutcomeName(o diaghdx.Outcome) string {
	switch o {
	case diaghdx.OutcomeSuccess:
		return "success"
	case diaghdx.OutcomeSlaveWrongPos:
		return "slaveWrongPosition"
	case diaghdx.OutcomeRingBreak:
		return "ringBreak"
	default:
		return "unknown"
	}
}

type fallbackPayload struct {
	Kind string `json:"kind"`
	Err  string `json:"error,omitempty"`
}

func (g *Gateway) publishFallback(e fallback.Event) {
	kind := "success"
	errStr := ""
	switch e.Kind {
	case fallback.EventEnd:
		kind = "end"
	case fallback.EventError:
		kind = "error"
		if e.Err != nil {
			errStr = e.Err.Error()
		}
	}
	g.publish(EventTypeFallback, fallbackPayload{Kind: kind, Err: errStr})
}

type programmingPayload struct {
	Kind string `json:"kind"`
	Err  string `json:"error,omitempty"`
}

func (g *Gateway) publishProgramming(e programming.Event) {
	kind := "success"
	errStr := ""
	if e.Kind == programming.EventError {
		kind = "error"
		if e.Err != nil {
			errStr = e.Err.Error()
		}
	}
	g.publish(EventTypeProgramming, programmingPayload{Kind: kind, Err: errStr})
}

type setModeParams struct {
	Mode            string `json:"mode"`
	PacketBandwidth uint16 `json:"packetBandwidth"`
	ProxyChannelBW  uint16 `json:"proxyChannelBw"`
}

func (g *Gateway) serveSetMode(ctx context.Context) error {
	acts, err := g.dda.SubscribeAction(ctx, api.SubscriptionFilter{Type: ActionTypeSetMode})
	if err != nil {
		return err
	}
	go func() {
		for ac := range acts {
			var p setModeParams
			if err := json.Unmarshal(ac.Params, &p); err != nil {
				g.reject(ac, err)
				continue
			}
			mode := model.ParseSupervisorMode(p.Mode)
			err := g.inst.SetMode(mode, netstarter.Params{PacketBandwidth: p.PacketBandwidth, ProxyChannelBW: p.ProxyChannelBW})
			g.reply(ac, err)
		}
	}()
	return nil
}

type programNodeParams struct {
	Target   uint16                `json:"target"`
	Local    bool                  `json:"local"`
	Commands []programming.Command `json:"commands"`
}

func (g *Gateway) serveProgramNode(ctx context.Context) error {
	acts, err := g.dda.SubscribeAction(ctx, api.SubscriptionFilter{Type: ActionTypeProgramNode})
	if err != nil {
		return err
	}
	go func() {
		for ac := range acts {
			var p programNodeParams
			if err := json.Unmarshal(ac.Params, &p); err != nil {
				g.reject(ac, err)
				continue
			}
			err := g.inst.ProgramNode(model.NodeAddress(p.Target), p.Local, p.Commands, netstarter.Params{})
			g.reply(ac, err)
		}
	}()
	return nil
}

type startDiscoveryParams struct {
	VersionLimit uint16 `json:"versionLimit"`
}

func (g *Gateway) serveStartDiscovery(ctx context.Context) error {
	acts, err := g.dda.SubscribeAction(ctx, api.SubscriptionFilter{Type: ActionTypeStartDiscovery})
	if err != nil {
		return err
	}
	go func() {
		for ac := range acts {
			var p startDiscoveryParams
			if err := json.Unmarshal(ac.Params, &p); err != nil {
				g.reject(ac, err)
				continue
			}
			err := g.inst.StartDiscovery(p.VersionLimit)
			g.reply(ac, err)
		}
	}()
	return nil
}

func (g *Gateway) reply(ac api.ActionWithCallback, err error) {
	result := api.ActionResult{Context: g.instanceName}
	if err != nil {
		result.Data = []byte(err.Error())
	}
	if cbErr := ac.Callback(result); cbErr != nil {
		g.log.Errorf("publishing %s action result: %v", ac.Type, cbErr)
	}
}

func (g *Gateway) reject(ac api.ActionWithCallback, err error) {
	g.log.Errorf("malformed %s action params: %v", ac.Type, err)
	if cbErr := ac.Callback(api.ActionResult{Context: g.instanceName, Data: []byte(err.Error())}); cbErr != nil {
		g.log.Errorf("publishing %s rejection: %v", ac.Type, cbErr)
	}
}
