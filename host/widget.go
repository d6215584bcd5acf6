// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// Widget is an element of a display. Its set of properties is fixed at
// construction; scripts can change property values but cannot add
// properties.
type Widget struct {
	name       string
	widgetType string

	mu         sync.Mutex
	properties map[string]any

	parent   *Widget
	children []*Widget
	pvs      []*PV
}

// NewWidget returns a widget declaring the given properties. The map is
// copied.
func NewWidget(name, widgetType string, properties map[string]any) *Widget {
	declared := make(map[string]any, len(properties))
	for key, value := range properties {
		declared[key] = value
	}
	return &Widget{name: name, widgetType: widgetType, properties: declared}
}

// AddChild appends child to the widget's children. Call before the
// widget is shared.
func (w *Widget) AddChild(child *Widget) {
	child.parent = w
	w.children = append(w.children, child)
}

// AttachPV appends pv to the widget's process variables. The first
// attached PV is the primary one. Call before the widget is shared.
func (w *Widget) AttachPV(pv *PV) {
	w.pvs = append(w.pvs, pv)
}

// Name returns the widget's name.
func (w *Widget) Name() string { return w.name }

// Type returns the widget's type.
func (w *Widget) Type() string { return w.widgetType }

// Children returns the direct children in order.
func (w *Widget) Children() []*Widget { return w.children }

// PVs returns the attached process variables in order.
func (w *Widget) PVs() []*PV { return w.pvs }

// Property returns a property value and whether the widget declares it.
func (w *Widget) Property(name string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	value, ok := w.properties[name]
	return value, ok
}

// SetProperty changes a declared property.
func (w *Widget) SetProperty(name string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.properties[name]; !ok {
		return fmt.Errorf("widget %q has no property %q", w.name, name)
	}
	w.properties[name] = value
	return nil
}

// Child returns the direct child called name, or nil.
func (w *Widget) Child(name string) *Widget {
	for _, child := range w.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// Find searches the widget and its descendants depth first.
func (w *Widget) Find(name string) *Widget {
	if w.name == name {
		return w
	}
	for _, child := range w.children {
		if found := child.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// Root returns the top of the widget's tree.
func (w *Widget) Root() *Widget {
	root := w
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// PVByName returns the attached process variable called name, or nil.
func (w *Widget) PVByName(name string) *PV {
	for _, pv := range w.pvs {
		if pv.name == name {
			return pv
		}
	}
	return nil
}

// Kind implements Object.
func (w *Widget) Kind() string { return wire.KindWidget }

// Method implements Object.
func (w *Widget) Method(name string) (MethodFunc, bool) {
	switch name {
	case "getName":
		return func(ctx context.Context, call *Call) (any, error) {
			return w.name, call.Expect(0)
		}, true
	case "getType":
		return func(ctx context.Context, call *Call) (any, error) {
			return w.widgetType, call.Expect(0)
		}, true
	case "getPropertyValue":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(1); err != nil {
				return nil, err
			}
			property, err := call.String(0)
			if err != nil {
				return nil, err
			}
			value, ok := w.Property(property)
			if !ok {
				return nil, fmt.Errorf("widget %q has no property %q", w.name, property)
			}
			return value, nil
		}, true
	case "setPropertyValue":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(2); err != nil {
				return nil, err
			}
			property, err := call.String(0)
			if err != nil {
				return nil, err
			}
			value, err := call.Value(1)
			if err != nil {
				return nil, err
			}
			return nil, w.SetProperty(property, value)
		}, true
	case "getChildByName":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(1); err != nil {
				return nil, err
			}
			child, err := call.String(0)
			if err != nil {
				return nil, err
			}
			if found := w.Child(child); found != nil {
				return call.Ref(found), nil
			}
			return call.Ref(nil), nil
		}, true
	}
	return nil, false
}
