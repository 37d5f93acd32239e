// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package programming implements Programming (spec §4.9): bind a remote
// node's admin address through Welcome, then open a memory session,
// write a command's payload in ≤18-byte chunks, and close the session —
// repeating for every queued command before resetting the node with
// Init. Local-node programming skips the Welcome step but still ends in
// Init, per _examples/original_source/src/ucs_prog.c (SPEC_FULL.md's
// supplemented features).
package programming

import (
	"time"

	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/transport"
)

// State is one node of the Programming state machine.
type State int

const (
	Idle State = iota
	WaitWelcome
	WaitMemOpen
	WaitMemWrite
	WaitMemClose
	WaitMemErrClose
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case WaitWelcome:
		return "WaitWelcome"
	case WaitMemOpen:
		return "WaitMemOpen"
	case WaitMemWrite:
		return "WaitMemWrite"
	case WaitMemClose:
		return "WaitMemClose"
	case WaitMemErrClose:
		return "WaitMemErrClose"
	default:
		return "Unknown"
	}
}

// maxChunkBytes is the 18-byte MemoryWrite payload limit of spec §4.9.
const maxChunkBytes = 18

// commandTimeout bounds every step, per spec §4.9.
const commandTimeout = 100 * time.Millisecond

// SessionType selects the memory session kind passed to
// MemorySessionOpen.
type SessionType uint8

// Command is one programming command: a target memory plus the bytes
// to write into it, starting at Address.
type Command struct {
	MemID   MemID
	Address uint16
	Data    []byte
}

// EventKind identifies a Programming progress notification.
type EventKind int

const (
	EventSuccess EventKind = iota
	EventError
)

// Event is reported through OnEvent.
type Event struct {
	Kind EventKind
	Err  error
}

// memOpenResult is the payload of a successful MemorySessionOpen.
type memOpenResult struct {
	SessionHandle uint16
}

// memCloseResult carries the nonzero session-result spec §4.9 step 4
// treats as a CRC error.
type memCloseResult struct {
	SessionResult uint16
}

// fsErrorPayload is attached to a Failed response whose Code maps to an
// FS-specific error, per spec §4.9's error recovery table.
type fsErrorPayload struct {
	Code          model.FSErrorCode
	SessionHandle uint16 // valid only for FSSessionActive
}

// Programmer drives one Programming run at a time.
type Programmer struct {
	facade *transport.Facade
	log    *clog.CLogger

	state   State
	session SessionType

	OnEvent func(Event)
}

// New builds a Programmer sending every command through facade.
func New(facade *transport.Facade, session SessionType) *Programmer {
	return &Programmer{facade: facade, log: clog.New("programming"), state: Idle, session: session}
}

// State returns the programmer's current state, primarily for tests.
func (p *Programmer) State() State { return p.state }

// Program runs the algorithm of spec §4.9 for nodePosAddr against the
// given command list, blocking the calling goroutine; callers run it on
// its own goroutine. local selects the local-node branch, which skips
// the Welcome/admin-address step.
func (p *Programmer) Program(nodePosAddr model.NodeAddress, local bool, commands []Command) {
	target := nodePosAddr
	if !local {
		p.state = WaitWelcome
		admin := model.AdminAddress(int(nodePosAddr) & 0x00FF)
		if _, err := p.sendAndWait(admin, transport.FBlockExtendedNetworkControl, transport.FuncWelcome, nil); err != nil {
			p.fail(err)
			return
		}
		target = admin
	}

	for _, cmd := range commands {
		if !p.runCommand(target, cmd) {
			return
		}
	}

	p.state = Idle
	if _, err := p.sendAndWait(target, transport.FBlockExtendedNetworkControl, transport.FuncInit, nil); err != nil {
		p.fail(err)
		return
	}

	if p.OnEvent != nil {
		p.OnEvent(Event{Kind: EventSuccess})
	}
}

// runCommand opens a session, writes cmd's data in ≤18-byte chunks, and
// closes the session, returning false (having already reported the
// failure) if any step fails.
func (p *Programmer) runCommand(target model.NodeAddress, cmd Command) bool {
	p.state = WaitMemOpen
	resp, err := p.sendAndWaitRaw(target, transport.FBlockExtendedNetworkControl, transport.FuncMemSessionOpen, p.session)
	if err != nil {
		p.fail(err)
		return false
	}
	if resp.Code != model.Success {
		p.recover(target, resp, 0)
		return false
	}
	open, _ := resp.Payload.(memOpenResult)
	handle := open.SessionHandle

	addr := cmd.Address
	for offset := 0; offset < len(cmd.Data); offset += maxChunkBytes {
		end := offset + maxChunkBytes
		if end > len(cmd.Data) {
			end = len(cmd.Data)
		}
		chunk := cmd.Data[offset:end]

		p.state = WaitMemWrite
		resp, err := p.sendAndWaitRaw(target, transport.FBlockExtendedNetworkControl, transport.FuncMemWrite, memWritePayload{
			SessionHandle: handle, MemID: cmd.MemID, Address: addr, UnitSize: 1, Data: chunk,
		})
		if err != nil {
			p.fail(err)
			return false
		}
		if resp.Code != model.Success {
			p.recover(target, resp, handle)
			return false
		}
		addr += uint16(len(chunk)) // spec §4.9: "after each write the address auto-advances by len"
	}

	p.state = WaitMemClose
	resp, err = p.sendAndWaitRaw(target, transport.FBlockExtendedNetworkControl, transport.FuncMemSessionClose, handle)
	if err != nil {
		p.fail(err)
		return false
	}
	if resp.Code != model.Success {
		p.recover(target, resp, handle)
		return false
	}
	if close, ok := resp.Payload.(memCloseResult); ok && close.SessionResult != 0 {
		// spec §4.9 step 4: "If result carries a nonzero session-result,
		// treat as CRC error and transition to error-close-init."
		p.errorCloseInit(target, handle)
		return false
	}

	return true
}

// recover applies the error recovery table of spec §4.9 to a failed
// MemOpen/MemWrite/MemClose response.
func (p *Programmer) recover(target model.NodeAddress, resp transport.Response, handle uint16) {
	fe, ok := resp.Payload.(fsErrorPayload)
	if !ok {
		p.fail(model.NewError(resp.Code, "programming step failed"))
		return
	}

	switch fe.Code {
	case model.FSHwResetReq:
		p.initAndFail(target, model.NewError(resp.Code, "HW_RESET_REQ"))
	case model.FSSessionActive:
		p.errorCloseInit(target, fe.SessionHandle)
	case model.FSCfgStringError, model.FSCfgWriteError, model.FSCfgFullError,
		model.FSAddrEven, model.FSLenEven, model.FSSumOutOfRange, model.FSMemIDError:
		p.errorCloseInit(target, handle)
	case model.FSHdlMatchError:
		p.initAndFail(target, model.NewError(resp.Code, "HDL_MATCH_ERROR"))
	default:
		p.fail(model.NewError(resp.Code, "unrecognized FS error %v", fe.Code))
	}
}

// errorCloseInit closes the (possibly already-broken) session, then
// runs Init.Start before reporting the failure, per the error recovery
// table's "Close session, Init.Start, exit" rows.
func (p *Programmer) errorCloseInit(target model.NodeAddress, handle uint16) {
	p.state = WaitMemErrClose
	if _, err := p.sendAndWait(target, transport.FBlockExtendedNetworkControl, transport.FuncMemSessionClose, handle); err != nil {
		p.log.Errorf("error-recovery MemorySessionClose failed: %v", err)
	}
	p.initAndFail(target, model.NewError(model.ProtocolError, "programming aborted, session closed"))
}

func (p *Programmer) initAndFail(target model.NodeAddress, cause error) {
	if _, err := p.sendAndWait(target, transport.FBlockExtendedNetworkControl, transport.FuncInit, nil); err != nil {
		p.log.Errorf("error-recovery Init.Start failed: %v", err)
	}
	p.fail(cause)
}

func (p *Programmer) fail(err error) {
	p.log.Errorf("programming failed in state %s: %v", p.state, err)
	p.state = Idle
	if p.OnEvent != nil {
		p.OnEvent(Event{Kind: EventError, Err: err})
	}
}

type memWritePayload struct {
	SessionHandle uint16
	MemID         MemID
	Address       uint16
	UnitSize      uint8
	Data          []byte
}

func (p *Programmer) sendAndWait(target model.NodeAddress, fblock transport.FBlockID, fn transport.FunctionID, payload any) (bool, error) {
	resp, err := p.sendAndWaitRaw(target, fblock, fn, payload)
	if err != nil {
		return false, err
	}
	if resp.Code != model.Success {
		return false, model.NewError(resp.Code, "%v failed", fn)
	}
	return true, nil
}

func (p *Programmer) sendAndWaitRaw(target model.NodeAddress, fblock transport.FBlockID, fn transport.FunctionID, payload any) (transport.Response, error) {
	done := make(chan transport.Response, 1)
	err := p.facade.Send(transport.Request{
		Target:   target,
		FBlock:   fblock,
		Function: fn,
		Payload:  payload,
	}, commandTimeout, func(r transport.Response) { done <- r })
	if err != nil {
		return transport.Response{}, err
	}
	return <-done, nil
}
