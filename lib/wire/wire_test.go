// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/scriptgate/lib/codec"
)

func TestTableRoundTrip(t *testing.T) {
	table := Table{
		KeyWidget: Single(Ref{ID: 1, Kind: KindWidget}),
		KeyPVs:    List(Ref{ID: 2, Kind: KindPV}, Ref{ID: 3, Kind: KindPV}),
		"empty":   List(),
	}

	data, err := codec.Marshal(table)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Table
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(table, decoded); diff != "" {
		t.Errorf("table round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEntryShapes(t *testing.T) {
	single := Single(Ref{ID: 4, Kind: KindWidget})
	if ref, ok := single.Ref(); !ok || ref.ID != 4 {
		t.Errorf("Single.Ref() = %v, %v", ref, ok)
	}

	list := List(Ref{ID: 5, Kind: KindPV})
	if _, ok := list.Ref(); ok {
		t.Error("a one-element list must not read as a single entry")
	}

	if _, err := (Entry{}).MarshalCBOR(); err == nil {
		t.Error("a single entry with no reference must not encode")
	}
}

func TestEntryRejectsPlainData(t *testing.T) {
	data, err := codec.Marshal("not a handle")
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var entry Entry
	if err := entry.UnmarshalCBOR(data); err == nil {
		t.Errorf("plain string decoded as entry %+v", entry)
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := Table{KeyPVs: List(Ref{ID: 2, Kind: KindPV})}
	clone := original.Clone()
	clone[KeyPVs].Refs[0] = Ref{ID: 99, Kind: KindPV}
	clone["extra"] = Single(Ref{ID: 1, Kind: KindWidget})

	if original[KeyPVs].Refs[0].ID != 2 {
		t.Error("mutating the clone changed the original's list")
	}
	if _, ok := original["extra"]; ok {
		t.Error("adding to the clone changed the original")
	}
	if Table(nil).Clone() != nil {
		t.Error("clone of nil table should be nil")
	}
}

func TestEncodeArgs(t *testing.T) {
	args, err := EncodeArgs("severity", 3.5, Ref{ID: 9, Kind: KindPV})
	if err != nil {
		t.Fatalf("EncodeArgs: %v", err)
	}
	if len(args) != 3 {
		t.Fatalf("got %d args, want 3", len(args))
	}
	var name string
	if err := codec.Unmarshal(args[0], &name); err != nil || name != "severity" {
		t.Errorf("arg 0 = %q, %v", name, err)
	}
	var ref Ref
	if err := codec.Unmarshal(args[2], &ref); err != nil || ref.ID != 9 {
		t.Errorf("arg 2 = %+v, %v", ref, err)
	}

	none, err := EncodeArgs()
	if err != nil || none != nil {
		t.Errorf("EncodeArgs() = %v, %v; want nil, nil", none, err)
	}
}

func TestStreamExchange(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientStream := NewStream(client)
	serverStream := NewStream(server)

	go func() {
		var request Request
		if err := serverStream.Receive(&request); err != nil {
			return
		}
		serverStream.Send(Response{ID: request.ID, OK: true})
	}()

	if err := clientStream.Send(Request{ID: 41, Action: ActionGetTable}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	var response Response
	if err := clientStream.Receive(&response); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if response.ID != 41 || !response.OK {
		t.Errorf("response %+v", response)
	}
}
