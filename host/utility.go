// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// PVUtil converts process variable values for scripts.
type PVUtil struct{}

// Kind implements Object.
func (*PVUtil) Kind() string { return wire.KindPVUtil }

// Method implements Object.
func (u *PVUtil) Method(name string) (MethodFunc, bool) {
	var convert func(pv *PV) (any, error)
	switch name {
	case "getDouble":
		convert = func(pv *PV) (any, error) { return toDouble(pv.name, pv.Value()) }
	case "getLong":
		convert = func(pv *PV) (any, error) { return toLong(pv.name, pv.Value()) }
	case "getString":
		convert = func(pv *PV) (any, error) { return toText(pv.Value()), nil }
	default:
		return nil, false
	}
	return func(ctx context.Context, call *Call) (any, error) {
		if err := call.Expect(1); err != nil {
			return nil, err
		}
		pv, err := call.PV(0)
		if err != nil {
			return nil, err
		}
		return convert(pv)
	}, true
}

// Dialog is a message a script asked the host to show.
type Dialog struct {
	Widget  string
	Warning bool
	Message string
}

// ScriptUtil lets scripts navigate the display around their widget,
// show messages, and write to the host's log. There is no screen, so
// dialogs are logged and recorded.
type ScriptUtil struct {
	logger *slog.Logger

	mu      sync.Mutex
	dialogs []Dialog
}

// NewScriptUtil returns a ScriptUtil logging to logger (nil means
// slog.Default()).
func NewScriptUtil(logger *slog.Logger) *ScriptUtil {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptUtil{logger: logger}
}

// Dialogs returns the dialogs shown so far.
func (u *ScriptUtil) Dialogs() []Dialog {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Dialog(nil), u.dialogs...)
}

// Kind implements Object.
func (*ScriptUtil) Kind() string { return wire.KindScriptUtil }

// Method implements Object.
func (u *ScriptUtil) Method(name string) (MethodFunc, bool) {
	switch name {
	case "findWidgetByName":
		return func(ctx context.Context, call *Call) (any, error) {
			widget, target, err := widgetAndName(call)
			if err != nil {
				return nil, err
			}
			if found := widget.Root().Find(target); found != nil {
				return call.Ref(found), nil
			}
			return call.Ref(nil), nil
		}, true
	case "getPrimaryPV":
		return func(ctx context.Context, call *Call) (any, error) {
			widget, err := call.Widget(0)
			if err != nil {
				return nil, err
			}
			if len(widget.pvs) == 0 {
				return call.Ref(nil), nil
			}
			return call.Ref(widget.pvs[0]), nil
		}, true
	case "getPVs":
		return func(ctx context.Context, call *Call) (any, error) {
			widget, err := call.Widget(0)
			if err != nil {
				return nil, err
			}
			refs := make([]wire.Ref, len(widget.pvs))
			for i, pv := range widget.pvs {
				refs[i] = *call.Ref(pv)
			}
			return refs, nil
		}, true
	case "getPVByName":
		return func(ctx context.Context, call *Call) (any, error) {
			widget, target, err := widgetAndName(call)
			if err != nil {
				return nil, err
			}
			if pv := widget.PVByName(target); pv != nil {
				return call.Ref(pv), nil
			}
			return call.Ref(nil), nil
		}, true
	case "showMessageDialog":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(3); err != nil {
				return nil, err
			}
			widget, err := call.Widget(0)
			if err != nil {
				return nil, err
			}
			var warning bool
			if err := call.Decode(1, &warning); err != nil {
				return nil, err
			}
			message, err := call.String(2)
			if err != nil {
				return nil, err
			}
			u.show(Dialog{Widget: widget.name, Warning: warning, Message: message})
			return nil, nil
		}, true
	case "log":
		return func(ctx context.Context, call *Call) (any, error) {
			if err := call.Expect(2); err != nil {
				return nil, err
			}
			level, err := call.String(0)
			if err != nil {
				return nil, err
			}
			message, err := call.String(1)
			if err != nil {
				return nil, err
			}
			var slogLevel slog.Level
			if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
				return nil, fmt.Errorf("log: unknown level %q", level)
			}
			u.logger.Log(ctx, slogLevel, message, "source", "script", "session", call.SessionID())
			return nil, nil
		}, true
	}
	return nil, false
}

func (u *ScriptUtil) show(dialog Dialog) {
	u.mu.Lock()
	u.dialogs = append(u.dialogs, dialog)
	u.mu.Unlock()

	level := slog.LevelInfo
	if dialog.Warning {
		level = slog.LevelWarn
	}
	u.logger.Log(context.Background(), level, "script dialog", "widget", dialog.Widget, "message", dialog.Message)
}

func widgetAndName(call *Call) (*Widget, string, error) {
	if err := call.Expect(2); err != nil {
		return nil, "", err
	}
	widget, err := call.Widget(0)
	if err != nil {
		return nil, "", err
	}
	name, err := call.String(1)
	if err != nil {
		return nil, "", err
	}
	return widget, name, nil
}
