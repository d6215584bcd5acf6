// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"fmt"

	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// Table is a session's private copy of the host's named reference
// table. Changes made to it stay local until PublishTable.
type Table map[string]wire.Entry

// Keys of the table as published by display hosts.
const (
	KeyWidget     = wire.KeyWidget
	KeyPVs        = wire.KeyPVs
	KeyPVUtil     = wire.KeyPVUtil
	KeyScriptUtil = wire.KeyScriptUtil
)

// Object binds the single entry under key to channel.
func (t Table) Object(channel *Channel, key string) (Object, error) {
	entry, ok := t[key]
	if !ok {
		return Object{}, fmt.Errorf("%q: %w", key, ErrMissingKey)
	}
	ref, ok := entry.Ref()
	if !ok {
		return Object{}, fmt.Errorf("%q holds a list, not a single reference: %w", key, ErrKindMismatch)
	}
	return Object{channel: channel, ref: ref}, nil
}

// Objects binds the list entry under key to channel.
func (t Table) Objects(channel *Channel, key string) ([]Object, error) {
	entry, ok := t[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrMissingKey)
	}
	if !entry.List {
		return nil, fmt.Errorf("%q holds a single reference, not a list: %w", key, ErrKindMismatch)
	}
	objects := make([]Object, len(entry.Refs))
	for i, ref := range entry.Refs {
		objects[i] = Object{channel: channel, ref: ref}
	}
	return objects, nil
}

// Widget returns the "widget" entry as a widget handle.
func (t Table) Widget(channel *Channel) (Widget, error) {
	object, err := t.Object(channel, KeyWidget)
	if err != nil {
		return Widget{}, err
	}
	return AsWidget(object)
}

// PVs returns the "pvs" entry as process variable handles, in order.
func (t Table) PVs(channel *Channel) ([]PV, error) {
	objects, err := t.Objects(channel, KeyPVs)
	if err != nil {
		return nil, err
	}
	pvs := make([]PV, len(objects))
	for i, object := range objects {
		if pvs[i], err = AsPV(object); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", KeyPVs, i, err)
		}
	}
	return pvs, nil
}

// PVUtil returns the "PVUtil" entry.
func (t Table) PVUtil(channel *Channel) (PVUtil, error) {
	object, err := t.Object(channel, KeyPVUtil)
	if err != nil {
		return PVUtil{}, err
	}
	if err := object.expect(wire.KindPVUtil); err != nil {
		return PVUtil{}, err
	}
	return PVUtil{object}, nil
}

// ScriptUtil returns the "ScriptUtil" entry.
func (t Table) ScriptUtil(channel *Channel) (ScriptUtil, error) {
	object, err := t.Object(channel, KeyScriptUtil)
	if err != nil {
		return ScriptUtil{}, err
	}
	if err := object.expect(wire.KindScriptUtil); err != nil {
		return ScriptUtil{}, err
	}
	return ScriptUtil{object}, nil
}

// Set stores a single handle under key, replacing any previous entry.
func (t Table) Set(key string, handle Handle) {
	t[key] = wire.Single(handle.Ref())
}

// SetList stores an ordered list of handles under key, replacing any
// previous entry. No handles stores an empty list.
func (t Table) SetList(key string, handles ...Handle) {
	refs := make([]wire.Ref, len(handles))
	for i, handle := range handles {
		refs[i] = handle.Ref()
	}
	t[key] = wire.List(refs...)
}

// Keys returns the table's keys in no particular order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	return keys
}
