// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package transport implements the facade of spec §4.1: a typed
// request/response call to the local INIC (or, through it, to a remote
// node's FBlock), with a command-timeout timer and a single-shot
// observer registered for the matching response. The facade never
// retries on its own — retry policy belongs to the caller (spec §4.1,
// "The facade never retries on its own; retry policy is the caller's.").
//
// The byte-level FIFO/credit protocol, the port-message framing, and the
// wire encoding of individual FBlock operations are out of scope (spec
// §1): INICClient is the typed boundary this module calls through.
package transport

import "github.com/unicens-go/unicens/model"

// OpType is the port-message op-type of a request or response, per
// spec §6 ("Each has request/response op-types on the port-message
// channel").
type OpType uint8

const (
	OpTypeRequest OpType = iota
	OpTypeResult
	OpTypeError
	OpTypeStatus // unsolicited/broadcast notification, e.g. AliveMessage.Status
)

// FunctionID enumerates the ExtendedNetworkControl (EXC) FBlock function
// IDs this module addresses, per spec §6.
type FunctionID uint16

const (
	FuncHello             FunctionID = 0x200
	FuncWelcome           FunctionID = 0x201
	FuncSignature         FunctionID = 0x202
	FuncInit              FunctionID = 0x203
	FuncAliveMessage      FunctionID = 0x204
	FuncEnablePort        FunctionID = 0x210
	FuncCableLinkDiag     FunctionID = 0x211
	FuncPhyLayTest        FunctionID = 0x220
	FuncPhyLayTestResult  FunctionID = 0x221
	FuncReverseRequest    FunctionID = 0x222
	FuncEnableTx          FunctionID = 0x223
	FuncMemSessionOpen    FunctionID = 0x300
	FuncMemSessionClose   FunctionID = 0x301
	FuncMemRead           FunctionID = 0x302
	FuncMemWrite          FunctionID = 0x303

	// INIC FBlock functions consumed by the ATD calculator (spec §4.10);
	// the source spec enumerates only the EXC function IDs explicitly,
	// these two live on the local INIC FBlock (0x01) itself.
	FuncResourceInfoGet FunctionID = 0x130
	FuncNetworkInfoGet  FunctionID = 0x131

	// INIC FBlock functions consumed by Network-Starter's job queues
	// (spec §4.4: NwStartup, NwShutdown, LeaveForcedNA, NwFallbackStart,
	// NwFallbackStop). Like FuncResourceInfoGet/FuncNetworkInfoGet above,
	// these are not part of spec §6's explicit EXC list because they
	// address the local INIC FBlock directly rather than EXC.
	FuncNetworkStartup          FunctionID = 0x101
	FuncNetworkShutdown         FunctionID = 0x102
	FuncNetworkForcedNA         FunctionID = 0x103
	FuncNetworkFallback         FunctionID = 0x104

	// FuncNetworkStatus is the unsolicited local-INIC status notification
	// package inicstatus subscribes to on the facade's broadcast path
	// (spec §2/§4.4's "as reported by the local INIC").
	FuncNetworkStatus FunctionID = 0x105

	// INIC FBlock functions entering/leaving the two diagnosis modes
	// (spec §4.6 step 1, §4.7 step 1, §4.6 step 7, §4.7 step 7), for the
	// same reason as the block above: these address the INIC FBlock
	// directly and spec §6 only enumerates the EXC list.
	FuncDiagFullDuplex    FunctionID = 0x110
	FuncDiagFullDuplexEnd FunctionID = 0x111
	FuncDiagHalfDuplex    FunctionID = 0x112
	FuncDiagHalfDuplexEnd FunctionID = 0x113
)

// FBlockID identifies the logical function block a request targets.
type FBlockID uint8

const (
	FBlockINIC                  FBlockID = 0x01
	FBlockExtendedNetworkControl FBlockID = 0x02
)

// Key identifies the request/response channel a message is dispatched
// on, per spec §4.1 ("The response decoder dispatches by {fblock_id,
// function_id, op_type} on the receive path").
type Key struct {
	FBlock   FBlockID
	Function FunctionID
	OpType   OpType
}

// Request is one outbound, typed message to the local INIC or, via it,
// to a remote node's FBlock.
type Request struct {
	Target   model.NodeAddress
	FBlock   FBlockID
	Function FunctionID
	Payload  any

	// CorrelationID is assigned by the facade before Send and echoed
	// back by the INIC client in the matching Response, so that several
	// outstanding requests sharing the same Key can be told apart.
	CorrelationID string
}

// Response is one inbound, typed message, matched to a Request by Key
// and CorrelationID.
type Response struct {
	FBlock        FBlockID
	Function      FunctionID
	OpType        OpType
	CorrelationID string
	Code          model.ResultCode
	Payload       any
}

// INICClient is the external collaborator this module calls through; it
// owns the byte-level FIFO/credit protocol and wire encoding (spec §1,
// out of scope here).
type INICClient interface {
	// Send transmits req. It returns an error synchronously only for
	// conditions the caller must react to immediately: no Tx slot
	// (model.BufferOverflow) or the device not being attached
	// (model.NotInitialized, model.NotAvailable). A nil error means the
	// request was accepted for transmission; the eventual Response (or
	// lack thereof, handled by the facade's own timeout) arrives
	// asynchronously through the Dispatcher passed to NewFacade.
	Send(req Request) error
}

// Dispatcher is implemented by Facade and driven by the INICClient (or
// whatever demultiplexes the port-message receive path) to deliver
// Responses and unsolicited broadcast Status notifications.
type Dispatcher interface {
	// DispatchResponse routes resp to the observer registered for its
	// (Key, CorrelationID), if any. Responses with no matching
	// registration are dropped (e.g. a response that arrived after its
	// command-timeout already fired).
	DispatchResponse(resp Response)
	// DispatchBroadcast routes an unsolicited notification (e.g.
	// ENC.AliveMessage.Status) to every subscriber of that Key.
	DispatchBroadcast(resp Response)
}
