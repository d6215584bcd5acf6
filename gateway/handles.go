// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/scriptgate/lib/codec"
	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// Handle is anything that names a host object.
type Handle interface {
	Ref() wire.Ref
}

// handle is a Handle bound to the channel it came from. Invoke uses the
// owner to refuse handles from other channels.
type handle interface {
	Handle
	owner() *Channel
}

// Handles converts a slice of typed handles for Table.SetList.
func Handles[H Handle](typed []H) []Handle {
	handles := make([]Handle, len(typed))
	for i, h := range typed {
		handles[i] = h
	}
	return handles
}

// Object is an untyped handle: a host reference bound to the channel it
// was obtained from. It stays valid only while that channel is open.
type Object struct {
	channel *Channel
	ref     wire.Ref
}

// Ref returns the wire reference.
func (o Object) Ref() wire.Ref { return o.ref }

// Kind returns the kind of host object the handle names.
func (o Object) Kind() string { return o.ref.Kind }

func (o Object) owner() *Channel { return o.channel }

func (o Object) String() string { return o.ref.String() }

// Call invokes method on the host object. Typed handles are thin
// wrappers around Call; it is exported for host methods that have no
// typed wrapper.
func (o Object) Call(ctx context.Context, method string, result any, args ...any) error {
	return o.channel.Invoke(ctx, o.ref, method, result, args...)
}

func (o Object) expect(kind string) error {
	if o.ref.Kind != kind {
		return fmt.Errorf("%s is not a %s: %w", o.ref, kind, ErrKindMismatch)
	}
	return nil
}

// callRef calls a method returning a single reference and binds the
// result to the channel. A nil result is ErrNotFound.
func (o Object) callRef(ctx context.Context, method, kind string, args ...any) (Object, error) {
	var ref *wire.Ref
	if err := o.Call(ctx, method, &ref, args...); err != nil {
		return Object{}, err
	}
	if ref == nil {
		return Object{}, fmt.Errorf("%s.%s: %w", o.ref, method, ErrNotFound)
	}
	object := Object{channel: o.channel, ref: *ref}
	if err := object.expect(kind); err != nil {
		return Object{}, err
	}
	return object, nil
}

func (o Object) callRefs(ctx context.Context, method, kind string, args ...any) ([]Object, error) {
	var refs []wire.Ref
	if err := o.Call(ctx, method, &refs, args...); err != nil {
		return nil, err
	}
	objects := make([]Object, len(refs))
	for i, ref := range refs {
		objects[i] = Object{channel: o.channel, ref: ref}
		if err := objects[i].expect(kind); err != nil {
			return nil, err
		}
	}
	return objects, nil
}

// AsPV narrows an untyped handle to a process variable.
func AsPV(object Object) (PV, error) {
	if err := object.expect(wire.KindPV); err != nil {
		return PV{}, err
	}
	return PV{object}, nil
}

// AsWidget narrows an untyped handle to a widget.
func AsWidget(object Object) (Widget, error) {
	if err := object.expect(wire.KindWidget); err != nil {
		return Widget{}, err
	}
	return Widget{object}, nil
}

// PV is a process variable in the host.
type PV struct{ Object }

// Name returns the process variable's name.
func (p PV) Name(ctx context.Context) (string, error) {
	var name string
	err := p.Call(ctx, "getName", &name)
	return name, err
}

// Read returns the current value, or nil when the process variable has
// not received one yet.
func (p PV) Read(ctx context.Context) (any, error) {
	var value any
	err := p.Call(ctx, "read", &value)
	return value, err
}

// ReadDouble returns the current value as a float64.
func (p PV) ReadDouble(ctx context.Context) (float64, error) {
	var value float64
	err := p.Call(ctx, "readDouble", &value)
	return value, err
}

// ReadLong returns the current value as an int64.
func (p PV) ReadLong(ctx context.Context) (int64, error) {
	var value int64
	err := p.Call(ctx, "readLong", &value)
	return value, err
}

// ReadString returns the current value formatted as text.
func (p PV) ReadString(ctx context.Context) (string, error) {
	var value string
	err := p.Call(ctx, "readString", &value)
	return value, err
}

// Write sets the process variable's value.
func (p PV) Write(ctx context.Context, value any) error {
	return p.Call(ctx, "write", nil, value)
}

// Subscribe asks the host to call fn with every new value. fn runs on a
// callback goroutine, one call at a time; it must not call back into
// the channel synchronously, because the channel may be busy with the
// call that caused the notification.
func (p PV) Subscribe(ctx context.Context, fn func(value any)) (*Subscription, error) {
	if p.channel == nil {
		return nil, ErrNotConnected
	}
	callbacks := p.channel.callbacks
	id := callbacks.register(func(args []codec.RawMessage) error {
		if len(args) != 1 {
			return fmt.Errorf("value notification carries %d arguments, want 1", len(args))
		}
		var value any
		if err := codec.Unmarshal(args[0], &value); err != nil {
			return fmt.Errorf("decoding notified value: %w", err)
		}
		fn(value)
		return nil
	})
	if err := p.Call(ctx, "subscribe", nil, id); err != nil {
		callbacks.unregister(id)
		return nil, err
	}
	return &Subscription{pv: p, id: id}, nil
}

// Subscription is an active value subscription on a PV.
type Subscription struct {
	pv   PV
	id   uint64
	once sync.Once
	err  error
}

// Cancel stops notifications. Later calls return the first call's
// result.
func (s *Subscription) Cancel(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.pv.Call(ctx, "unsubscribe", nil, s.id)
		s.pv.channel.callbacks.unregister(s.id)
	})
	return s.err
}

// Widget is a display element in the host.
type Widget struct{ Object }

// Name returns the widget's name.
func (w Widget) Name(ctx context.Context) (string, error) {
	var name string
	err := w.Call(ctx, "getName", &name)
	return name, err
}

// Type returns the widget's type, for example "label" or "led".
func (w Widget) Type(ctx context.Context) (string, error) {
	var kind string
	err := w.Call(ctx, "getType", &kind)
	return kind, err
}

// Property returns the value of a declared property.
func (w Widget) Property(ctx context.Context, name string) (any, error) {
	var value any
	err := w.Call(ctx, "getPropertyValue", &value, name)
	return value, err
}

// SetProperty sets a declared property. The host rejects names the
// widget does not declare.
func (w Widget) SetProperty(ctx context.Context, name string, value any) error {
	return w.Call(ctx, "setPropertyValue", nil, name, value)
}

// Child returns the direct child widget called name.
func (w Widget) Child(ctx context.Context, name string) (Widget, error) {
	object, err := w.callRef(ctx, "getChildByName", wire.KindWidget, name)
	if err != nil {
		return Widget{}, err
	}
	return Widget{object}, nil
}

// PVUtil reads process variable values with type coercion.
type PVUtil struct{ Object }

// GetDouble returns pv's value as a float64.
func (u PVUtil) GetDouble(ctx context.Context, pv PV) (float64, error) {
	var value float64
	err := u.Call(ctx, "getDouble", &value, pv)
	return value, err
}

// GetLong returns pv's value truncated to an int64.
func (u PVUtil) GetLong(ctx context.Context, pv PV) (int64, error) {
	var value int64
	err := u.Call(ctx, "getLong", &value, pv)
	return value, err
}

// GetString returns pv's value as text.
func (u PVUtil) GetString(ctx context.Context, pv PV) (string, error) {
	var value string
	err := u.Call(ctx, "getString", &value, pv)
	return value, err
}

// ScriptUtil gives scripts access to the display around their widget.
type ScriptUtil struct{ Object }

// FindWidgetByName searches the display containing widget.
func (u ScriptUtil) FindWidgetByName(ctx context.Context, widget Widget, name string) (Widget, error) {
	object, err := u.callRef(ctx, "findWidgetByName", wire.KindWidget, widget, name)
	if err != nil {
		return Widget{}, err
	}
	return Widget{object}, nil
}

// PrimaryPV returns the first process variable attached to widget.
func (u ScriptUtil) PrimaryPV(ctx context.Context, widget Widget) (PV, error) {
	object, err := u.callRef(ctx, "getPrimaryPV", wire.KindPV, widget)
	if err != nil {
		return PV{}, err
	}
	return PV{object}, nil
}

// PVs returns every process variable attached to widget, in order.
func (u ScriptUtil) PVs(ctx context.Context, widget Widget) ([]PV, error) {
	objects, err := u.callRefs(ctx, "getPVs", wire.KindPV, widget)
	if err != nil {
		return nil, err
	}
	pvs := make([]PV, len(objects))
	for i, object := range objects {
		pvs[i] = PV{object}
	}
	return pvs, nil
}

// PVByName returns the process variable attached to widget under name.
func (u ScriptUtil) PVByName(ctx context.Context, widget Widget, name string) (PV, error) {
	object, err := u.callRef(ctx, "getPVByName", wire.KindPV, widget, name)
	if err != nil {
		return PV{}, err
	}
	return PV{object}, nil
}

// ShowMessageDialog shows an informational or warning message on behalf
// of widget.
func (u ScriptUtil) ShowMessageDialog(ctx context.Context, widget Widget, warning bool, message string) error {
	return u.Call(ctx, "showMessageDialog", nil, widget, warning, message)
}

// Log writes message to the host's log at level ("debug", "info",
// "warn" or "error").
func (u ScriptUtil) Log(ctx context.Context, level, message string) error {
	return u.Call(ctx, "log", nil, level, message)
}
