// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/scriptgate/lib/codec"
	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// Object is a host object that external processes can call. Objects
// must be pointer types: the registry keys them by identity.
type Object interface {
	// Kind is one of the wire.Kind constants.
	Kind() string

	// Method returns the implementation of a remotely callable method.
	Method(name string) (MethodFunc, bool)
}

// MethodFunc implements one remote method. The returned value is
// encoded as the call's result; nil sends no data.
type MethodFunc func(ctx context.Context, call *Call) (any, error)

// Registry assigns ids to host objects. Ids start at 1, increase
// monotonically, and are never reused. Registering the same object
// twice returns the same reference.
type Registry struct {
	mu      sync.RWMutex
	nextID  uint64
	objects map[uint64]Object
	refs    map[Object]wire.Ref
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[uint64]Object),
		refs:    make(map[Object]wire.Ref),
	}
}

// Register returns the reference for object, assigning a new id on
// first registration.
func (r *Registry) Register(object Object) wire.Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.refs[object]; ok {
		return ref
	}
	r.nextID++
	ref := wire.Ref{ID: r.nextID, Kind: object.Kind()}
	r.objects[ref.ID] = object
	r.refs[object] = ref
	return ref
}

// Lookup returns the object registered under id.
func (r *Registry) Lookup(id uint64) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	object, ok := r.objects[id]
	return object, ok
}

// Resolve returns the object ref names, checking that the kinds agree.
func (r *Registry) Resolve(ref wire.Ref) (Object, error) {
	object, ok := r.Lookup(ref.ID)
	if !ok {
		return nil, fmt.Errorf("no such object %s", ref)
	}
	if object.Kind() != ref.Kind {
		return nil, fmt.Errorf("object %d is a %s, not a %s", ref.ID, object.Kind(), ref.Kind)
	}
	return object, nil
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Call carries the arguments of one remote invocation.
type Call struct {
	Method string
	Args   []codec.RawMessage

	registry *Registry
	session  *session
}

// SessionID returns the id of the session making the call, or "" for a
// call made outside a session.
func (c *Call) SessionID() string {
	if c.session == nil {
		return ""
	}
	return c.session.id
}

// Expect fails unless the call has exactly n arguments.
func (c *Call) Expect(n int) error {
	if len(c.Args) != n {
		return fmt.Errorf("%s takes %d arguments, got %d", c.Method, n, len(c.Args))
	}
	return nil
}

// Decode decodes argument i into target.
func (c *Call) Decode(i int, target any) error {
	if i >= len(c.Args) {
		return fmt.Errorf("%s: missing argument %d", c.Method, i)
	}
	if err := codec.Unmarshal(c.Args[i], target); err != nil {
		return fmt.Errorf("%s: argument %d: %w", c.Method, i, err)
	}
	return nil
}

// String decodes argument i as a string.
func (c *Call) String(i int) (string, error) {
	var value string
	err := c.Decode(i, &value)
	return value, err
}

// Value decodes argument i as plain data.
func (c *Call) Value(i int) (any, error) {
	var value any
	err := c.Decode(i, &value)
	return value, err
}

// Object resolves argument i, which must be a reference of the given
// kind.
func (c *Call) Object(i int, kind string) (Object, error) {
	var ref wire.Ref
	if err := c.Decode(i, &ref); err != nil {
		return nil, err
	}
	if ref.Kind != kind {
		return nil, fmt.Errorf("%s: argument %d is a %s reference, want %s", c.Method, i, ref.Kind, kind)
	}
	return c.registry.Resolve(ref)
}

// PV resolves argument i as a process variable.
func (c *Call) PV(i int) (*PV, error) {
	object, err := c.Object(i, wire.KindPV)
	if err != nil {
		return nil, err
	}
	pv, ok := object.(*PV)
	if !ok {
		return nil, fmt.Errorf("%s: argument %d is not a process variable", c.Method, i)
	}
	return pv, nil
}

// Widget resolves argument i as a widget.
func (c *Call) Widget(i int) (*Widget, error) {
	object, err := c.Object(i, wire.KindWidget)
	if err != nil {
		return nil, err
	}
	widget, ok := object.(*Widget)
	if !ok {
		return nil, fmt.Errorf("%s: argument %d is not a widget", c.Method, i)
	}
	return widget, nil
}

// Ref registers object and returns its reference for use as a result.
// A nil object yields a nil reference, which the caller sees as "not
// found".
func (c *Call) Ref(object Object) *wire.Ref {
	if object == nil {
		return nil
	}
	ref := c.registry.Register(object)
	return &ref
}
