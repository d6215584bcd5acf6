// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/bureau-foundation/scriptgate/host"
)

const testDisplay = `
name: panel
pvs:
  - name: loc://temperature
    value: 3.7
  - name: loc://setpoint
widgets:
  - name: gauge
    type: meter
    properties:
      background_color: white
    pvs: [loc://temperature, loc://setpoint]
    children:
      - name: caption
        type: label
        properties:
          text: ""
  - name: alarm
    type: led
    pvs: [loc://alarm]
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// testHost is a running host with the test display loaded and the
// table for one of its widgets installed.
type testHost struct {
	server  *host.Server
	display *host.Display
}

// startHost starts a host serving the "gauge" widget's table.
func startHost(t *testing.T) *testHost {
	t.Helper()
	return startHostFor(t, "gauge")
}

func startHostFor(t *testing.T, widget string) *testHost {
	t.Helper()
	display, err := host.ParseDisplay([]byte(testDisplay), "yaml", testLogger())
	if err != nil {
		t.Fatalf("ParseDisplay: %v", err)
	}
	server := host.NewServer(host.Options{Logger: testLogger()})
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("starting host: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	table, err := display.TableFor(server.Registry(), widget)
	if err != nil {
		t.Fatalf("TableFor: %v", err)
	}
	server.SetTable(table)
	return &testHost{server: server, display: display}
}

func (h *testHost) port() int { return h.server.Port() }

func (h *testHost) pv(t *testing.T, name string) *host.PV {
	t.Helper()
	pv, ok := h.display.PV(name)
	if !ok {
		t.Fatalf("display has no PV %q", name)
	}
	return pv
}

// goodbyes returns how many sessions have said bye to the host.
func (h *testHost) goodbyes() int { return h.server.Stats().Goodbyes }

// connect opens a channel to h and shuts it down when the test ends.
func connect(t *testing.T, h *testHost) *Channel {
	t.Helper()
	channel, err := Connect(context.Background(), h.port(), Options{Logger: testLogger(), ClientName: t.Name()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if channel == nil {
		t.Fatal("Connect returned a nil channel for a positive port")
	}
	t.Cleanup(func() { channel.Shutdown() })
	return channel
}

func fetchTable(t *testing.T, channel *Channel) Table {
	t.Helper()
	table, err := channel.FetchTable(context.Background())
	if err != nil {
		t.Fatalf("FetchTable: %v", err)
	}
	return table
}
