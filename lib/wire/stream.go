// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"net"

	"github.com/bureau-foundation/scriptgate/lib/codec"
)

// Stream wraps one gateway connection with a persistent CBOR encoder and
// decoder. A Stream is not safe for concurrent use; each side serializes
// its own calls.
type Stream struct {
	conn    net.Conn
	encoder *codec.Encoder
	decoder *codec.Decoder
}

// NewStream returns a Stream over conn.
func NewStream(conn net.Conn) *Stream {
	return &Stream{
		conn:    conn,
		encoder: codec.NewEncoder(conn),
		decoder: codec.NewDecoder(conn),
	}
}

// Conn returns the underlying connection.
func (s *Stream) Conn() net.Conn {
	return s.conn
}

// Send writes one value.
func (s *Stream) Send(v any) error {
	return s.encoder.Encode(v)
}

// Receive reads the next value into v.
func (s *Stream) Receive(v any) error {
	return s.decoder.Decode(v)
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}
