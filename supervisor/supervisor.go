// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package supervisor wires one EXC device's full component set together
// (spec §4.12) and enforces the mode-gate and EXC service lock in front
// of every API entry point. Per _examples/original_source/src/ucs_class.c
// (SPEC_FULL.md's supplemented features), each Instance is fully
// self-contained — its own Facade, status watcher, and component set — so
// Pool can run several independent EXC devices in one process with zero
// cross-instance sharing.
package supervisor

import (
	"sync"

	"github.com/unicens-go/unicens/atd"
	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/config"
	"github.com/unicens-go/unicens/diagfdx"
	"github.com/unicens-go/unicens/diaghdx"
	"github.com/unicens-go/unicens/discovery"
	"github.com/unicens-go/unicens/eventbus"
	"github.com/unicens-go/unicens/fallback"
	"github.com/unicens-go/unicens/inicstatus"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/modegate"
	"github.com/unicens-go/unicens/netstarter"
	"github.com/unicens-go/unicens/programming"
	"github.com/unicens-go/unicens/routemanager"
	"github.com/unicens-go/unicens/transport"
)

// Callbacks are the application's report_*_fptr hooks (spec §4.12), all
// optional.
type Callbacks struct {
	OnModeState  func(model.ModeState)
	OnDiscovery  func(discovery.Event)
	OnNetStarter func(netstarter.Event)
	OnFdxDiag    func(diagfdx.Event)
	OnHdxDiag    func(diaghdx.Event)
	OnFallback   func(fallback.Event)
	OnProgramming func(programming.Event)

	// Eval classifies a node discovered while in Manual mode
	// (spec §4.5); Normal/Inactive/Fallback modes drive discovery
	// through the node catalog instead, via catalogEval.
	Eval discovery.EvalFunc
}

// Instance owns one EXC device end to end: the facade, the local-INIC
// status observer, and every stateful component spec
// §4.12 lists, plus the mode-gate and EXC service lock guarding them.
type Instance struct {
	log    *clog.CLogger
	facade *transport.Facade
	lock   *transport.ServiceLock
	status *inicstatus.Watcher

	catalog *model.NodeCatalog
	routes  routemanager.Manager
	atdCalc *atd.Calculator

	starter *netstarter.Starter
	disc    *discovery.Discovery
	fdx     *diagfdx.Diag
	hdx     *diaghdx.Diag
	fbp     *fallback.Protect
	prog    *programming.Programmer

	cb Callbacks

	mu            sync.Mutex
	mode          model.SupervisorMode
	state         model.SupervisorState
	transitioning bool
	pendingMode   *model.SupervisorMode
	pendingParams netstarter.Params
}

// New builds an Instance around client, gated by cfg's initial mode
// (spec §6), using catalog for discovery's Inactive/Normal/Fallback-mode
// node classification and routes as the (externally implemented)
// routing-graph engine. New does not start anything; call Init.
func New(client transport.INICClient, cfg *config.InitData, catalog *model.NodeCatalog, routes routemanager.Manager, cb Callbacks) *Instance {
	facade := transport.NewFacade(client)
	watcher := inicstatus.New(facade)

	ins := &Instance{
		log:     clog.New("supervisor"),
		facade:  facade,
		lock:    transport.NewServiceLock(),
		status:  watcher,
		catalog: catalog,
		routes:  routes,
		atdCalc: atd.New(atd.MethodTwo),
		cb:      cb,
		mode:    model.ParseSupervisorMode(cfg.Supv.Mode),
		state:   model.StateBusy,
	}
	ins.starter = netstarter.New(facade, watcher.Subject())
	ins.starter.OnStateChange = ins.onStarterStateChange
	ins.starter.OnEvent = func(e netstarter.Event) {
		if ins.cb.OnNetStarter != nil {
			ins.cb.OnNetStarter(e)
		}
	}
	ins.disc = discovery.New(facade, ins.evalNode)
	ins.disc.OnEvent = func(e discovery.Event) {
		if ins.cb.OnDiscovery != nil {
			ins.cb.OnDiscovery(e)
		}
		if e.Kind == discovery.EventStopped {
			ins.lock.Release()
		}
	}
	ins.fdx = diagfdx.New(facade)
	ins.hdx = diaghdx.New(facade)
	ins.fbp = fallback.New(facade, watcher.Subject())
	ins.prog = programming.New(facade, 0)
	return ins
}

// WireCallbacks chains extra into the Instance's existing Callbacks:
// every non-nil hook in extra runs in addition to (not instead of)
// whatever was already registered, so a second observer (e.g.
// telemetry's DDA Gateway) can be layered onto an Instance without
// displacing the application's own callbacks.
func (ins *Instance) WireCallbacks(extra Callbacks) {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	ins.cb.OnModeState = chain(ins.cb.OnModeState, extra.OnModeState)
	ins.cb.OnDiscovery = chainDiscovery(ins.cb.OnDiscovery, extra.OnDiscovery)
	ins.cb.OnNetStarter = chainNetStarter(ins.cb.OnNetStarter, extra.OnNetStarter)
	ins.cb.OnFdxDiag = chainFdx(ins.cb.OnFdxDiag, extra.OnFdxDiag)
	ins.cb.OnHdxDiag = chainHdx(ins.cb.OnHdxDiag, extra.OnHdxDiag)
	ins.cb.OnFallback = chainFallback(ins.cb.OnFallback, extra.OnFallback)
	ins.cb.OnProgramming = chainProgramming(ins.cb.OnProgramming, extra.OnProgramming)
	if extra.Eval != nil {
		ins.cb.Eval = extra.Eval
	}
}

func chain(a, b func(model.ModeState)) func(model.ModeState) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ms model.ModeState) { a(ms); b(ms) }
}

func chainDiscovery(a, b func(discovery.Event)) func(discovery.Event) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e discovery.Event) { a(e); b(e) }
}

func chainNetStarter(a, b func(netstarter.Event)) func(netstarter.Event) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e netstarter.Event) { a(e); b(e) }
}

func chainFdx(a, b func(diagfdx.Event)) func(diagfdx.Event) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e diagfdx.Event) { a(e); b(e) }
}

func chainHdx(a, b func(diaghdx.Event)) func(diaghdx.Event) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e diaghdx.Event) { a(e); b(e) }
}

func chainFallback(a, b func(fallback.Event)) func(fallback.Event) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e fallback.Event) { a(e); b(e) }
}

func chainProgramming(a, b func(programming.Event)) func(programming.Event) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e programming.Event) { a(e); b(e) }
}

// Facade exposes the Instance's transport facade so the host can wire an
// INICClient's asynchronous receive path into it (DispatchResponse /
// DispatchBroadcast); it is not part of the Supv_*/Rm_*/Xrm_* API
// surface itself.
func (ins *Instance) Facade() *transport.Facade { return ins.facade }

// evalNode classifies a discovered signature against the node catalog
// when one is configured, falling back to the application's Eval
// callback (e.g. for Manual mode, where there is no catalog-driven
// policy, spec §4.5).
func (ins *Instance) evalNode(sig model.Signature) discovery.EvalResult {
	if ins.catalog != nil {
		if rec, ok := ins.catalog.ByAddress(sig.NodeAddress); ok {
			if rec.Available {
				return discovery.Welcome
			}
			return discovery.Ignore
		}
	}
	if ins.cb.Eval != nil {
		return ins.cb.Eval(sig)
	}
	return discovery.UnknownNode
}

// Init starts the local-INIC status watcher and drives the instance to
// its configured initial mode (spec §6; Diagnosis/Programming are
// already rejected as initial modes by config.Validate).
func (ins *Instance) Init(params netstarter.Params) error {
	ins.status.Start()
	ins.mu.Lock()
	mode := ins.mode
	ins.transitioning = true
	ins.mu.Unlock()
	ins.applyMode(mode, params)
	return nil
}

// SetMode requests a transition to a new top-level mode (Supv_SetMode,
// spec §4.12). A request arriving while a previous one is still
// in-flight replaces the pending target rather than queuing — only the
// latest request survives, and a superseded target is never reported
// Ready (the application sees the latest target Busy, then Ready), per
// ucs_class.c's coalescing behavior (SPEC_FULL.md's supplemented
// features). Besides the transition table, the request is gated by the
// Supv_SetMode row of the permission table for the current mode.
func (ins *Instance) SetMode(to model.SupervisorMode, params netstarter.Params) error {
	ins.mu.Lock()
	from := ins.mode
	state := ins.state
	if err := modegate.CheckTransition(from, to, state); err != nil {
		ins.mu.Unlock()
		ins.log.Printf("SetMode(%v -> %v) rejected: %v", from, to, err)
		return err
	}
	if err := modegate.Check(modegate.APISetMode, from); err != nil {
		ins.mu.Unlock()
		ins.log.Printf("SetMode(%v -> %v) rejected: %v", from, to, err)
		return err
	}
	if ins.transitioning {
		ins.pendingMode = &to
		ins.pendingParams = params
		ins.mu.Unlock()
		return nil
	}
	ins.transitioning = true
	ins.mode = to
	ins.state = model.StateBusy
	ins.mu.Unlock()

	ins.reportModeState()
	ins.applyMode(to, params)
	return nil
}

// applyMode drives the subsystem(s) responsible for reaching mode.
// Manual stops Network-Starter (Manual-mode APIs drive discovery/
// diagnosis directly); every other mode, Diagnosis and Programming
// included, is handed to Network-Starter, whose rule table covers each
// of them.
func (ins *Instance) applyMode(mode model.SupervisorMode, params netstarter.Params) {
	switch mode {
	case model.ModeManual:
		ins.starter.Stop()
		ins.onStarterStateChange(model.ModeState{Mode: model.ModeManual, State: model.StateReady})
	default:
		ins.starter.SetTarget(mode, params)
	}
}

// onStarterStateChange is Network-Starter's OnStateChange hook. Busy
// updates for the in-flight mode are forwarded as-is; a Ready completion
// either resolves the in-flight transition or, if a newer SetMode
// arrived meanwhile, immediately starts the coalesced target instead of
// reporting Ready.
func (ins *Instance) onStarterStateChange(ms model.ModeState) {
	if ms.State == model.StateBusy {
		return
	}

	ins.mu.Lock()
	if ins.pendingMode != nil {
		next := *ins.pendingMode
		params := ins.pendingParams
		ins.pendingMode = nil
		ins.mode = next
		ins.mu.Unlock()
		ins.reportModeState()
		ins.applyMode(next, params)
		return
	}
	ins.transitioning = false
	ins.state = model.StateReady
	ins.mu.Unlock()
	ins.reportModeState()
}

func (ins *Instance) reportModeState() {
	if ins.cb.OnModeState != nil {
		ins.cb.OnModeState(ins.ModeState())
	}
}

// ModeState reports the current {mode, state} pair.
func (ins *Instance) ModeState() model.ModeState {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	return model.ModeState{Mode: ins.mode, State: ins.state}
}

// returnToInactive is how Diagnosis and Programming leave their mode
// internally once their FSM concludes, per modegate's comment that they
// carry no externally reachable destination in the transition table.
func (ins *Instance) returnToInactive(params netstarter.Params) {
	ins.mu.Lock()
	ins.mode = model.ModeInactive
	ins.transitioning = true
	ins.mu.Unlock()
	ins.reportModeState()
	ins.applyMode(model.ModeInactive, params)
}

// StartDiagnosis runs FullDuplex-Diag (spec §4.6) over the whole
// network, gated by the mode-gate and the EXC service lock. Exit back
// to Inactive is automatic once the walk concludes.
func (ins *Instance) StartDiagnosis(restoreParams netstarter.Params) error {
	ins.mu.Lock()
	if ins.mode != model.ModeDiagnosis {
		ins.mu.Unlock()
		return model.NewError(model.NotSupported, "diagnosis requires mode Diagnosis")
	}
	ins.mu.Unlock()

	if err := ins.lock.TryAcquire("fdx-diag"); err != nil {
		return err
	}

	ins.fdx.OnEvent = func(e diagfdx.Event) {
		if ins.cb.OnFdxDiag != nil {
			ins.cb.OnFdxDiag(e)
		}
		if e.Kind == diagfdx.EventFinished || e.Kind == diagfdx.EventError {
			ins.lock.Release()
			ins.returnToInactive(restoreParams)
		}
	}
	go ins.fdx.Start()
	return nil
}

// StartHalfDuplexDiagnosis runs HalfDuplex-Diag (spec §4.7), mirroring
// StartDiagnosis's gating and exit-to-Inactive behavior.
func (ins *Instance) StartHalfDuplexDiagnosis(versionLimit uint16, restoreParams netstarter.Params) error {
	ins.mu.Lock()
	if ins.mode != model.ModeDiagnosis {
		ins.mu.Unlock()
		return model.NewError(model.NotSupported, "diagnosis requires mode Diagnosis")
	}
	ins.mu.Unlock()

	if err := ins.lock.TryAcquire("hdx-diag"); err != nil {
		return err
	}

	ins.hdx.OnEvent = func(e diaghdx.Event) {
		if ins.cb.OnHdxDiag != nil {
			ins.cb.OnHdxDiag(e)
		}
		if e.Kind == diaghdx.EventEnd {
			ins.lock.Release()
			ins.returnToInactive(restoreParams)
		}
	}
	go ins.hdx.Start(versionLimit)
	return nil
}

// SetFbDuration starts Fallback-Protect for the given fallback duration
// (Supv_SetFbDuration, spec §4.8/§4.12's permission table).
func (ins *Instance) SetFbDuration(duration uint16) error {
	if err := modegate.Check(modegate.APISetFbDuration, ins.ModeState().Mode); err != nil {
		return err
	}
	if err := ins.lock.TryAcquire("fallback"); err != nil {
		return err
	}
	ins.fbp.OnEvent = func(e fallback.Event) {
		if ins.cb.OnFallback != nil {
			ins.cb.OnFallback(e)
		}
		if e.Kind == fallback.EventEnd || e.Kind == fallback.EventError {
			ins.lock.Release()
		}
	}
	go ins.fbp.Start(duration)
	return nil
}

// ProgramExit leaves Programming mode without running any command
// (Supv_ProgramExit, spec §4.9/§4.12).
func (ins *Instance) ProgramExit(restoreParams netstarter.Params) error {
	if err := modegate.Check(modegate.APIProgramExit, ins.ModeState().Mode); err != nil {
		return err
	}
	ins.returnToInactive(restoreParams)
	return nil
}

// ProgramNode runs Programming (spec §4.9) against one node, gated by
// mode, programmability policy, and the EXC service lock.
func (ins *Instance) ProgramNode(target model.NodeAddress, local bool, commands []programming.Command, restoreParams netstarter.Params) error {
	if err := modegate.Check(modegate.APIProgramNode, ins.ModeState().Mode); err != nil {
		return err
	}
	if rec, ok := ins.catalog.ByAddress(target); ok && !rec.Programmable {
		return model.NewError(model.NotSupported, "node %v is not marked programmable", target)
	}
	if err := ins.lock.TryAcquire("programming"); err != nil {
		return err
	}

	ins.prog.OnEvent = func(e programming.Event) {
		if ins.cb.OnProgramming != nil {
			ins.cb.OnProgramming(e)
		}
		if e.Kind == programming.EventSuccess || e.Kind == programming.EventError {
			ins.lock.Release()
			ins.returnToInactive(restoreParams)
		}
	}
	go ins.prog.Program(target, local, commands)
	return nil
}

// SetRouteActive activates or deactivates route through the (external)
// routing-graph engine (Rm_SetRouteActive, spec §4.12's permission
// table); the ATD field and endpoint-built flags are the only parts of
// route this module reads or writes directly (spec §3).
func (ins *Instance) SetRouteActive(route *model.Route, active bool) error {
	if err := modegate.Check(modegate.APISetRouteActive, ins.ModeState().Mode); err != nil {
		return err
	}
	if active {
		return ins.routes.Activate(route)
	}
	return ins.routes.Deactivate(route)
}

// GetAtdValue computes the audio transport delay for route's built
// endpoints (Rm_GetAtdValue, spec §4.10/§4.12) and records it onto
// route via routemanager.ApplyATD.
func (ins *Instance) GetAtdValue(route *model.Route, totalNodeCount uint16, done func(uint16, error)) error {
	if err := modegate.Check(modegate.APIGetAtdValue, ins.ModeState().Mode); err != nil {
		return err
	}
	session := atd.NewSession(ins.facade, ins.atdCalc)
	session.Callback = func(result uint16, err error) {
		routemanager.ApplyATD(route, result, err)
		if done != nil {
			done(result, err)
		}
	}
	session.Start(route.Source.NodeAddress, route.Sink.NodeAddress, route.Source.StreamingPortHandle, totalNodeCount)
	return nil
}

// StartDiscovery begins Node-Discovery (Nd_Start, one of spec §4.12's
// Manual-only APIs), gated by the mode-gate and the EXC service lock.
func (ins *Instance) StartDiscovery(versionLimit uint16) error {
	if err := modegate.Check(modegate.APIManualOnly, ins.ModeState().Mode); err != nil {
		return err
	}
	if err := ins.lock.TryAcquire("discovery"); err != nil {
		return err
	}
	if err := ins.disc.Start(versionLimit); err != nil {
		ins.lock.Release()
		return err
	}
	return nil
}

// StopDiscovery ends the current Node-Discovery round (Nd_Stop). The
// EXC service lock is released once discovery.Discovery reports
// EventStopped.
func (ins *Instance) StopDiscovery() error {
	if err := modegate.Check(modegate.APIManualOnly, ins.ModeState().Mode); err != nil {
		return err
	}
	ins.disc.Stop()
	return nil
}

// InitAllNodes broadcasts Init across the network, resetting every
// node's welcomed state (spec §4.5).
func (ins *Instance) InitAllNodes() error {
	if err := modegate.Check(modegate.APIManualOnly, ins.ModeState().Mode); err != nil {
		return err
	}
	return ins.disc.InitAll()
}

// Stop tears the instance down: the status watcher, Network-Starter, and
// every subscription they hold.
func (ins *Instance) Stop() {
	ins.status.Stop()
	ins.starter.Stop()
}

// Subscribe registers a raw NetworkStatus observer (e.g. telemetry)
// against the instance's canonical change-mask subject.
func (ins *Instance) Subscribe(mask model.StatusChangeMask, obs eventbus.ObserverFunc) eventbus.Token {
	return ins.status.Subject().Subscribe(uint32(mask), obs)
}

// Pool runs several independent Instances in one process, each wired to
// a distinct EXC device with no shared state between them, per
// ucs_class.c's instance-pool pattern (SPEC_FULL.md's supplemented
// features).
type Pool struct {
	mu        sync.Mutex
	instances map[string]*Instance
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{instances: make(map[string]*Instance)}
}

// Add registers inst under name. Adding a second instance under a
// name already in use replaces the previous one without stopping it —
// callers are expected to Stop a replaced instance themselves first.
func (p *Pool) Add(name string, inst *Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[name] = inst
}

// Get returns the instance registered under name, if any.
func (p *Pool) Get(name string) (*Instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instances[name]
	return inst, ok
}

// Remove unregisters and returns the instance under name without
// stopping it.
func (p *Pool) Remove(name string) (*Instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instances[name]
	delete(p.instances, name)
	return inst, ok
}

// StopAll stops every registered instance.
func (p *Pool) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, inst := range p.instances {
		inst.Stop()
	}
}
