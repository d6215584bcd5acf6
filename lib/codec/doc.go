// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by both
// ends of the script gateway.
//
// Every message on the gateway (requests, responses, call arguments,
// call results, the reference table) is CBOR. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2), so the same logical value
// always produces identical bytes, which keeps the tests able to compare
// encoded tables directly.
//
// Remote object references travel as [Handle] values wrapped in CBOR tag
// [HandleTag]. The tag is required in both directions: a plain map that
// happens to have "id" and "kind" keys does not decode as a Handle, and
// a Handle never encodes without its tag.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the gateway connections):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types in this module use `cbor` struct tags only; nothing here is
// serialized as JSON.
package codec
