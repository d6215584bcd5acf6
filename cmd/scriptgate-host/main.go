// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scriptgate/host"
	"github.com/bureau-foundation/scriptgate/lib/config"
	"github.com/bureau-foundation/scriptgate/lib/process"
	"github.com/bureau-foundation/scriptgate/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		displayName string
		widgetName  string
		address     string
		scriptName  string
		interpreter string
		verbose     bool
	)

	flagSet := pflag.NewFlagSet("scriptgate-host", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "config file (default: $SCRIPTGATE_CONFIG, else built-in defaults)")
	flagSet.StringVarP(&displayName, "display", "d", "", "display fixture, absolute or relative to paths.displays")
	flagSet.StringVarP(&widgetName, "widget", "w", "", "widget whose table scripts receive (default: first widget)")
	flagSet.StringVarP(&address, "address", "a", "", "loopback listen address (default: host.address)")
	flagSet.StringVarP(&scriptName, "script", "s", "", "run this script once and exit")
	flagSet.StringVar(&interpreter, "interpreter", "", "script interpreter (default: runner.interpreter; empty runs the script as an executable)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable per-session debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("scriptgate-host")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printUsage(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printUsage(flagSet)
		return nil
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if displayName != "" {
		cfg.Host.Display = displayName
	}
	if widgetName != "" {
		cfg.Host.Widget = widgetName
	}
	if address != "" {
		cfg.Host.Address = address
	}
	if interpreter != "" {
		cfg.Runner.Interpreter = interpreter
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Host.Display == "" {
		return fmt.Errorf("no display: set host.display or pass --display")
	}

	display, err := host.LoadDisplay(cfg.DisplayPath(cfg.Host.Display), logger)
	if err != nil {
		return err
	}
	if cfg.Host.Widget == "" {
		names := display.WidgetNames()
		if len(names) == 0 {
			return fmt.Errorf("display %s has no widgets", cfg.Host.Display)
		}
		cfg.Host.Widget = names[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := host.NewServer(host.Options{
		Address:       cfg.Host.Address,
		CallbackQueue: cfg.Host.CallbackQueue,
		Logger:        logger,
	})
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Close()

	table, err := display.TableFor(server.Registry(), cfg.Host.Widget)
	if err != nil {
		return err
	}
	server.SetTable(table)
	logger.Info("scriptgate host ready",
		"display", cfg.Host.Display,
		"widget", cfg.Host.Widget,
		"address", server.Addr().String(),
	)

	if scriptName != "" {
		timeout, err := cfg.RunTimeout()
		if err != nil {
			return err
		}
		runner := &host.Runner{
			Server:      server,
			Interpreter: cfg.Runner.Interpreter,
			Timeout:     timeout,
			Logger:      logger,
		}
		return runner.Run(ctx, host.Job{Script: cfg.ScriptPath(scriptName), Table: table})
	}

	// Scripts started by hand read the port from stdout.
	fmt.Println(server.Port())

	<-ctx.Done()
	stats := server.Stats()
	logger.Info("shutting down",
		"sessions", stats.Sessions,
		"active", stats.Active,
		"goodbyes", stats.Goodbyes,
	)
	return nil
}

// loadConfig reads the explicit config file, then $SCRIPTGATE_CONFIG,
// and falls back to the built-in defaults when neither is set.
func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case os.Getenv("SCRIPTGATE_CONFIG") != "":
		return config.Load()
	default:
		return config.Default(), nil
	}
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stdout, `scriptgate-host - Serve a display to external scripts

USAGE
    scriptgate-host [flags]

FLAGS
%s
EXAMPLES
    # Serve a display and print the port
    scriptgate-host --display panel.yaml --widget gauge

    # Run one compiled script against the display and exit
    scriptgate-host --display panel.yaml --script scriptgate-writepv
`, flagSet.FlagUsages())
}
