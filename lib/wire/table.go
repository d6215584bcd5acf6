// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/bureau-foundation/scriptgate/lib/codec"
)

// Entry is one value of the named reference table: either a single
// reference or an ordered list of references. The shape is part of the
// contract ("widget" is single, "pvs" is a list) and survives a round
// trip, including the empty list.
type Entry struct {
	Refs []Ref
	List bool
}

// Single returns an entry holding exactly one reference.
func Single(ref Ref) Entry {
	return Entry{Refs: []Ref{ref}}
}

// List returns a list entry. An empty call yields an empty list, not a
// missing entry.
func List(refs ...Ref) Entry {
	if refs == nil {
		refs = []Ref{}
	}
	return Entry{Refs: refs, List: true}
}

// Ref returns the entry's reference when it is a single entry.
func (e Entry) Ref() (Ref, bool) {
	if e.List || len(e.Refs) != 1 {
		return Ref{}, false
	}
	return e.Refs[0], true
}

// MarshalCBOR encodes a single entry as a bare tagged handle and a list
// entry as an array of tagged handles.
func (e Entry) MarshalCBOR() ([]byte, error) {
	if e.List {
		refs := e.Refs
		if refs == nil {
			refs = []Ref{}
		}
		return codec.Marshal(refs)
	}
	if len(e.Refs) != 1 {
		return nil, fmt.Errorf("wire: single table entry holds %d references", len(e.Refs))
	}
	return codec.Marshal(e.Refs[0])
}

// UnmarshalCBOR accepts either encoding produced by MarshalCBOR.
func (e *Entry) UnmarshalCBOR(data []byte) error {
	var ref Ref
	if err := codec.Unmarshal(data, &ref); err == nil {
		*e = Single(ref)
		return nil
	}
	var refs []Ref
	if err := codec.Unmarshal(data, &refs); err != nil {
		return fmt.Errorf("wire: table entry is neither a handle nor a list of handles: %w", err)
	}
	*e = List(refs...)
	return nil
}

// Table is the named reference table as it travels on the wire.
type Table map[string]Entry

// Clone returns a deep copy of t. The host hands out clones so that a
// session never aliases another session's table.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	clone := make(Table, len(t))
	for key, entry := range t {
		refs := make([]Ref, len(entry.Refs))
		copy(refs, entry.Refs)
		clone[key] = Entry{Refs: refs, List: entry.List}
	}
	return clone
}
