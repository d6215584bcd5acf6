// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// PV is a process variable: a named value that widgets display and
// scripts read and write. A PV has no value until the first write (or
// an initial value from the display fixture).
type PV struct {
	name string

	mu           sync.Mutex
	value        any
	listeners    map[uint64]func(any)
	nextListener uint64
}

// NewPV returns a process variable. A nil initial value means the PV is
// not yet connected.
func NewPV(name string, initial any) *PV {
	return &PV{
		name:      name,
		value:     initial,
		listeners: make(map[uint64]func(any)),
	}
}

// Name returns the PV's name.
func (p *PV) Name() string { return p.name }

// Value returns the current value, or nil.
func (p *PV) Value() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Write sets the value and notifies every listener. Listeners run on
// the writer's goroutine, after the lock is released.
func (p *PV) Write(value any) {
	p.mu.Lock()
	p.value = value
	listeners := make([]func(any), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(value)
	}
}

// Listen registers fn for value changes and returns a function that
// removes it. fn is called immediately with the current value when
// there is one.
func (p *PV) Listen(fn func(any)) (cancel func()) {
	p.mu.Lock()
	p.nextListener++
	id := p.nextListener
	p.listeners[id] = fn
	current := p.value
	p.mu.Unlock()

	if current != nil {
		fn(current)
	}
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// ListenerCount returns the number of registered listeners.
func (p *PV) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Kind implements Object.
func (p *PV) Kind() string { return wire.KindPV }

// Method implements Object.
func (p *PV) Method(name string) (MethodFunc, bool) {
	switch name {
	case "getName":
		return func(ctx context.Context, call *Call) (any, error) {
			return p.name, call.Expect(0)
		}, true
	case "read":
		return func(ctx context.Context, call *Call) (any, error) {
			return p.Value(), call.Expect(0)
		}, true
	case "readDouble":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(0); err != nil {
				return nil, err
			}
			return toDouble(p.name, p.Value())
		}, true
	case "readLong":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(0); err != nil {
				return nil, err
			}
			return toLong(p.name, p.Value())
		}, true
	case "readString":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(0); err != nil {
				return nil, err
			}
			return toText(p.Value()), nil
		}, true
	case "write":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(1); err != nil {
				return nil, err
			}
			value, err := call.Value(0)
			if err != nil {
				return nil, err
			}
			p.Write(value)
			return nil, nil
		}, true
	case "subscribe":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(1); err != nil {
				return nil, err
			}
			var callbackID uint64
			if err := call.Decode(0, &callbackID); err != nil {
				return nil, err
			}
			if call.session == nil {
				return nil, fmt.Errorf("subscribe needs a session")
			}
			return nil, call.session.subscribe(p, callbackID)
		}, true
	case "unsubscribe":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(1); err != nil {
				return nil, err
			}
			var callbackID uint64
			if err := call.Decode(0, &callbackID); err != nil {
				return nil, err
			}
			if call.session != nil {
				call.session.unsubscribe(p, callbackID)
			}
			return nil, nil
		}, true
	}
	return nil, false
}

// toDouble converts a PV value to float64. Integers and numeric text
// convert; anything else is an error, as is a PV without a value.
func toDouble(name string, value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("process variable %q has no value", name)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("process variable %q holds non-numeric text %q", name, v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("process variable %q holds a %T, not a number", name, value)
	}
}

// toLong converts a PV value to int64, truncating fractions toward zero.
func toLong(name string, value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("process variable %q value %d overflows int64", name, v)
		}
		return int64(v), nil
	}
	double, err := toDouble(name, value)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(double) || math.IsInf(double, 0) {
		return 0, fmt.Errorf("process variable %q value %v is not finite", name, double)
	}
	if double >= math.MaxInt64 || double < math.MinInt64 {
		return 0, fmt.Errorf("process variable %q value %v overflows int64", name, double)
	}
	return int64(double), nil
}

// toText formats a PV value. A PV without a value reads as "".
func toText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
