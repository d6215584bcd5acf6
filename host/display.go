// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// DisplaySpec describes a display: its process variables and its
// widget tree. It is read from YAML or JSON-with-comments fixtures.
type DisplaySpec struct {
	Name    string       `yaml:"name" json:"name"`
	PVs     []PVSpec     `yaml:"pvs" json:"pvs"`
	Widgets []WidgetSpec `yaml:"widgets" json:"widgets"`
}

// PVSpec declares a process variable and its optional initial value.
type PVSpec struct {
	Name  string `yaml:"name" json:"name"`
	Value any    `yaml:"value" json:"value"`
}

// WidgetSpec declares a widget. PVs name process variables; names not
// declared under DisplaySpec.PVs are created without a value.
type WidgetSpec struct {
	Name       string         `yaml:"name" json:"name"`
	Type       string         `yaml:"type" json:"type"`
	Properties map[string]any `yaml:"properties" json:"properties"`
	PVs        []string       `yaml:"pvs" json:"pvs"`
	Children   []WidgetSpec   `yaml:"children" json:"children"`
}

// Display is a loaded widget tree with its process variables and the
// two utility objects scripts may ask for.
type Display struct {
	Root       *Widget
	PVUtil     *PVUtil
	ScriptUtil *ScriptUtil

	widgets map[string]*Widget
	pvs     map[string]*PV
	order   []string
}

// LoadDisplay reads a display fixture. Files ending in .json or .jsonc
// are parsed as JSON with comments and trailing commas; anything else
// as YAML.
func LoadDisplay(path string, logger *slog.Logger) (*Display, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading display %s: %w", path, err)
	}
	format := "yaml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		format = "jsonc"
	}
	display, err := ParseDisplay(data, format, logger)
	if err != nil {
		return nil, fmt.Errorf("display %s: %w", path, err)
	}
	return display, nil
}

// ParseDisplay parses a fixture in the given format ("yaml" or "jsonc").
func ParseDisplay(data []byte, format string, logger *slog.Logger) (*Display, error) {
	var spec DisplaySpec
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	case "jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &spec); err != nil {
			return nil, fmt.Errorf("parsing JSONC: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown display format %q", format)
	}
	return NewDisplay(spec, logger)
}

// NewDisplay builds the objects a spec describes. Widget names must be
// unique across the whole display.
func NewDisplay(spec DisplaySpec, logger *slog.Logger) (*Display, error) {
	name := spec.Name
	if name == "" {
		name = "display"
	}
	display := &Display{
		Root:       NewWidget(name, "display", nil),
		PVUtil:     &PVUtil{},
		ScriptUtil: NewScriptUtil(logger),
		widgets:    make(map[string]*Widget),
		pvs:        make(map[string]*PV),
	}

	for _, pvSpec := range spec.PVs {
		if pvSpec.Name == "" {
			return nil, fmt.Errorf("process variable without a name")
		}
		if _, exists := display.pvs[pvSpec.Name]; exists {
			return nil, fmt.Errorf("process variable %q declared twice", pvSpec.Name)
		}
		display.pvs[pvSpec.Name] = NewPV(pvSpec.Name, pvSpec.Value)
	}

	for _, widgetSpec := range spec.Widgets {
		if err := display.addWidget(display.Root, widgetSpec); err != nil {
			return nil, err
		}
	}
	return display, nil
}

func (d *Display) addWidget(parent *Widget, spec WidgetSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("widget without a name under %q", parent.name)
	}
	if _, exists := d.widgets[spec.Name]; exists || spec.Name == d.Root.name {
		return fmt.Errorf("widget name %q used twice", spec.Name)
	}
	widgetType := spec.Type
	if widgetType == "" {
		widgetType = "label"
	}
	widget := NewWidget(spec.Name, widgetType, spec.Properties)
	for _, pvName := range spec.PVs {
		widget.AttachPV(d.pv(pvName))
	}
	parent.AddChild(widget)
	d.widgets[spec.Name] = widget
	d.order = append(d.order, spec.Name)

	for _, child := range spec.Children {
		if err := d.addWidget(widget, child); err != nil {
			return err
		}
	}
	return nil
}

// pv returns the named process variable, creating it without a value
// when it was not declared.
func (d *Display) pv(name string) *PV {
	if pv, ok := d.pvs[name]; ok {
		return pv
	}
	pv := NewPV(name, nil)
	d.pvs[name] = pv
	return pv
}

// Widget returns the widget called name.
func (d *Display) Widget(name string) (*Widget, bool) {
	widget, ok := d.widgets[name]
	return widget, ok
}

// PV returns the process variable called name.
func (d *Display) PV(name string) (*PV, bool) {
	pv, ok := d.pvs[name]
	return pv, ok
}

// WidgetNames returns widget names in declaration order, depth first.
func (d *Display) WidgetNames() []string {
	return append([]string(nil), d.order...)
}

// TableFor registers the named widget, its process variables and both
// utilities in registry and returns the table a script attached to
// that widget receives.
func (d *Display) TableFor(registry *Registry, widgetName string) (wire.Table, error) {
	widget, ok := d.widgets[widgetName]
	if !ok {
		return nil, fmt.Errorf("display has no widget %q", widgetName)
	}
	refs := make([]wire.Ref, len(widget.pvs))
	for i, pv := range widget.pvs {
		refs[i] = registry.Register(pv)
	}
	return wire.Table{
		wire.KeyWidget:     wire.Single(registry.Register(widget)),
		wire.KeyPVs:        wire.List(refs...),
		wire.KeyPVUtil:     wire.Single(registry.Register(d.PVUtil)),
		wire.KeyScriptUtil: wire.Single(registry.Register(d.ScriptUtil)),
	}, nil
}
