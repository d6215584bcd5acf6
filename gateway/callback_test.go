// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/scriptgate/lib/codec"
	"github.com/bureau-foundation/scriptgate/lib/testutil"
	"github.com/bureau-foundation/scriptgate/lib/wire"
)

func dialCallbacks(t *testing.T, server *callbackServer) *wire.Stream {
	t.Helper()
	conn, err := net.DialTimeout("tcp", server.Address(), 5*time.Second)
	if err != nil {
		t.Fatalf("dialing callback server: %v", err)
	}
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	stream := wire.NewStream(conn)
	t.Cleanup(func() { stream.Close() })
	return stream
}

func callbackExchange(t *testing.T, stream *wire.Stream, request wire.Request) wire.Response {
	t.Helper()
	if err := stream.Send(request); err != nil {
		t.Fatalf("sending: %v", err)
	}
	var response wire.Response
	if err := stream.Receive(&response); err != nil {
		t.Fatalf("receiving: %v", err)
	}
	if response.ID != request.ID {
		t.Fatalf("response id %d, want %d", response.ID, request.ID)
	}
	return response
}

func TestCallbackServerDispatch(t *testing.T) {
	server, err := startCallbackServer(testLogger())
	if err != nil {
		t.Fatalf("startCallbackServer: %v", err)
	}
	defer server.Stop()

	received := make(chan string, 1)
	id := server.register(func(args []codec.RawMessage) error {
		var text string
		if err := codec.Unmarshal(args[0], &text); err != nil {
			return err
		}
		received <- text
		return nil
	})
	failing := server.register(func([]codec.RawMessage) error { return errors.New("rejected") })
	panicking := server.register(func([]codec.RawMessage) error { panic("callback bug") })

	stream := dialCallbacks(t, server)
	args, err := wire.EncodeArgs("hello")
	if err != nil {
		t.Fatalf("EncodeArgs: %v", err)
	}

	if response := callbackExchange(t, stream, wire.Request{ID: 1, Action: wire.ActionPing}); !response.OK {
		t.Errorf("ping failed: %s", response.Error)
	}
	if response := callbackExchange(t, stream, wire.Request{ID: 2, Action: wire.ActionCallback, Object: id, Args: args}); !response.OK {
		t.Errorf("callback failed: %s", response.Error)
	}
	if text := testutil.RequireReceive(t, received, 5*time.Second, "callback argument"); text != "hello" {
		t.Errorf("callback received %q, want hello", text)
	}

	cases := []struct {
		request wire.Request
		want    string
	}{
		{wire.Request{ID: 3, Action: wire.ActionCallback, Object: failing}, "rejected"},
		{wire.Request{ID: 4, Action: wire.ActionCallback, Object: panicking}, "panicked"},
		{wire.Request{ID: 5, Action: wire.ActionCallback, Object: 999}, "no callback registered"},
		{wire.Request{ID: 6, Action: "reboot"}, "unknown callback action"},
	}
	for _, tc := range cases {
		response := callbackExchange(t, stream, tc.request)
		if response.OK || !strings.Contains(response.Error, tc.want) {
			t.Errorf("request %+v: response = %+v, want error containing %q", tc.request, response, tc.want)
		}
	}

	// The connection survives failed callbacks.
	server.unregister(id)
	response := callbackExchange(t, stream, wire.Request{ID: 7, Action: wire.ActionCallback, Object: id, Args: args})
	if response.OK {
		t.Error("callback still dispatched after unregister")
	}
}

func TestCallbackServerStop(t *testing.T) {
	server, err := startCallbackServer(testLogger())
	if err != nil {
		t.Fatalf("startCallbackServer: %v", err)
	}
	stream := dialCallbacks(t, server)
	if response := callbackExchange(t, stream, wire.Request{ID: 1, Action: wire.ActionPing}); !response.OK {
		t.Fatalf("ping failed: %s", response.Error)
	}

	server.Stop()
	server.Stop()

	testutil.RequireRefused(t, server.Address())
	var response wire.Response
	if err := stream.Receive(&response); err == nil {
		t.Error("accepted connection still open after Stop")
	}
}
