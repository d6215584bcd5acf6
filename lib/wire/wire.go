// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/bureau-foundation/scriptgate/lib/codec"
)

// ProtocolVersion is exchanged in the hello handshake. A host refuses a
// client that announces a different version.
const ProtocolVersion = 1

// Actions accepted on the host's listening endpoint.
const (
	// ActionHello opens a session. Payload [Hello], result [Welcome].
	ActionHello = "hello"

	// ActionSetCallback tells the host where the external process's
	// callback listener is. Payload [CallbackAddress].
	ActionSetCallback = "set-callback"

	// ActionGetTable returns the host's named reference table.
	ActionGetTable = "get-table"

	// ActionSetTable replaces the host's named reference table with the
	// table in Args[0].
	ActionSetTable = "set-table"

	// ActionInvoke calls Method on the object named by Object with Args.
	ActionInvoke = "invoke"

	// ActionBye announces an orderly end of the session. The host
	// answers and then closes the connection.
	ActionBye = "bye"
)

// Actions accepted on the external process's callback endpoint.
const (
	// ActionCallback delivers Args to the callback registered under
	// Object.
	ActionCallback = "callback"

	// ActionPing checks that the callback endpoint is alive.
	ActionPing = "ping"
)

// Object kinds. The kind travels with every [Ref] so the receiving side
// can refuse to bind a reference to the wrong capability.
const (
	KindWidget     = "widget"
	KindPV         = "pv"
	KindPVUtil     = "pvutil"
	KindScriptUtil = "scriptutil"
)

// Well-known keys of the named reference table.
const (
	KeyWidget     = "widget"
	KeyPVs        = "pvs"
	KeyPVUtil     = "PVUtil"
	KeyScriptUtil = "ScriptUtil"
)

// Ref is a reference to an object living in the host process.
type Ref = codec.Handle

// Request is one call on either connection.
type Request struct {
	// ID is chosen by the sender and echoed in the matching Response.
	ID uint64 `cbor:"id"`

	// Action selects the handler; see the Action constants.
	Action string `cbor:"action"`

	// Object is the target object id for invoke, or the callback id for
	// callback.
	Object uint64 `cbor:"object,omitempty"`

	// Method is the method name for invoke.
	Method string `cbor:"method,omitempty"`

	// Args holds the call arguments, each encoded separately so the
	// receiver can decode them into the types the method expects.
	Args []codec.RawMessage `cbor:"args,omitempty"`
}

// Response is the answer to a Request.
type Response struct {
	ID    uint64           `cbor:"id"`
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Hello is the payload of ActionHello.
type Hello struct {
	Protocol int    `cbor:"protocol"`
	Client   string `cbor:"client,omitempty"`
}

// Welcome is the result of ActionHello.
type Welcome struct {
	Protocol int    `cbor:"protocol"`
	Session  string `cbor:"session"`
}

// CallbackAddress is the payload of ActionSetCallback.
type CallbackAddress struct {
	// Address is host:port of the callback listener.
	Address string `cbor:"address"`
}

// EncodeArgs encodes each value as its own CBOR item.
func EncodeArgs(values ...any) ([]codec.RawMessage, error) {
	if len(values) == 0 {
		return nil, nil
	}
	args := make([]codec.RawMessage, len(values))
	for i, value := range values {
		data, err := codec.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding argument %d: %w", i, err)
		}
		args[i] = data
	}
	return args, nil
}
