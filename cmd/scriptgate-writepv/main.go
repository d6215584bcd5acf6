// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scriptgate/gateway"
	"github.com/bureau-foundation/scriptgate/lib/clock"
	"github.com/bureau-foundation/scriptgate/lib/process"
	"github.com/bureau-foundation/scriptgate/lib/version"
	"github.com/bureau-foundation/scriptgate/script"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var options writeOptions
	flagSet := pflag.NewFlagSet("scriptgate-writepv", pflag.ContinueOnError)
	flagSet.DurationVar(&options.interval, "interval", 500*time.Millisecond, "how often to check the target PV")
	flagSet.DurationVar(&options.timeout, "timeout", 5*time.Second, "how long to wait for the target PV")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("scriptgate-writepv")
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	options.clock = clock.Real()
	options.logger = logger

	return script.Run(context.Background(), flagSet.Args(), gateway.SessionOptions{
		PVUtil:     true,
		ScriptUtil: true,
		Logger:     logger,
		ClientName: "scriptgate-writepv",
	}, options.write)
}

type writeOptions struct {
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// write performs the script body against an open session.
func (o writeOptions) write(ctx context.Context, session *gateway.Session) error {
	if len(session.PVs) < 2 {
		return fmt.Errorf("widget needs 2 PVs (target name, value), has %d", len(session.PVs))
	}
	targetName, err := session.PVUtil.GetString(ctx, session.PVs[0])
	if err != nil {
		return err
	}
	value, err := session.PVUtil.GetDouble(ctx, session.PVs[1])
	if err != nil {
		return err
	}

	if err := o.writeTarget(ctx, session, targetName, value); err != nil {
		message := fmt.Sprintf("Error writing %g to %s: %v", value, targetName, err)
		if dialogErr := session.ScriptUtil.ShowMessageDialog(ctx, session.Widget, true, message); dialogErr != nil {
			o.logger.Warn("showing error dialog failed", "error", dialogErr)
		}
		return err
	}
	return nil
}

func (o writeOptions) writeTarget(ctx context.Context, session *gateway.Session, targetName string, value float64) error {
	target, err := session.ScriptUtil.PVByName(ctx, session.Widget, targetName)
	if err != nil {
		return err
	}
	if _, err := script.AwaitValue(ctx, o.clock, target, o.interval, o.timeout); err != nil {
		return err
	}
	o.logger.Info("writing PV", "pv", targetName, "value", value)
	return target.Write(ctx, value)
}
