// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/scriptgate/gateway"
	"github.com/bureau-foundation/scriptgate/lib/clock"
	"github.com/bureau-foundation/scriptgate/lib/codec"
	"github.com/bureau-foundation/scriptgate/lib/process"
	"github.com/bureau-foundation/scriptgate/lib/version"
	"github.com/bureau-foundation/scriptgate/lib/wire"
	"github.com/bureau-foundation/scriptgate/script"
)

// exitTimeout is the exit code of "await" when no value arrived.
const exitTimeout = 2

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// client holds the global flags and the output mode.
type client struct {
	port     int
	timeout  time.Duration
	interval time.Duration
	raw      bool
	pretty   bool
	out      io.Writer
	logger   *slog.Logger
}

func run() error {
	c := &client{out: os.Stdout}
	var verbose bool

	flagSet := pflag.NewFlagSet("scriptgate", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.IntVarP(&c.port, "port", "p", envPort(), "host port (default: $SCRIPTGATE_PORT)")
	flagSet.DurationVarP(&c.timeout, "timeout", "t", 10*time.Second, "how long await waits for a value")
	flagSet.DurationVar(&c.interval, "interval", 100*time.Millisecond, "polling interval for await")
	flagSet.BoolVar(&c.raw, "raw", false, "print the table in CBOR diagnostic notation")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log gateway traffic to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("scriptgate")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printUsage(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printUsage(flagSet)
		return nil
	}

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	c.pretty = term.IsTerminal(int(os.Stdout.Fd()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return c.dispatch(ctx, flagSet.Arg(0), flagSet.Args()[1:])
}

func (c *client) dispatch(ctx context.Context, command string, args []string) error {
	need := func(n int, usage string) error {
		if len(args) != n {
			return fmt.Errorf("usage: scriptgate %s %s", command, usage)
		}
		return nil
	}

	switch command {
	case "table":
		if err := need(0, ""); err != nil {
			return err
		}
		return c.session(ctx, c.printTable)
	case "read":
		if err := need(1, "<pv>"); err != nil {
			return err
		}
		return c.session(ctx, func(ctx context.Context, s *gateway.Session) error {
			pv, err := findPV(ctx, s, args[0])
			if err != nil {
				return err
			}
			value, err := pv.Read(ctx)
			if err != nil {
				return err
			}
			c.printValue(args[0], value)
			return nil
		})
	case "write":
		if err := need(2, "<pv> <value>"); err != nil {
			return err
		}
		return c.session(ctx, func(ctx context.Context, s *gateway.Session) error {
			pv, err := findPV(ctx, s, args[0])
			if err != nil {
				return err
			}
			return pv.Write(ctx, parseValue(args[1]))
		})
	case "get":
		if err := need(1, "<property>"); err != nil {
			return err
		}
		return c.session(ctx, func(ctx context.Context, s *gateway.Session) error {
			value, err := s.Widget.Property(ctx, args[0])
			if err != nil {
				return err
			}
			c.printValue(args[0], value)
			return nil
		})
	case "set":
		if err := need(2, "<property> <value>"); err != nil {
			return err
		}
		return c.session(ctx, func(ctx context.Context, s *gateway.Session) error {
			return s.Widget.SetProperty(ctx, args[0], parseValue(args[1]))
		})
	case "await":
		if err := need(1, "<pv>"); err != nil {
			return err
		}
		return c.session(ctx, func(ctx context.Context, s *gateway.Session) error {
			pv, err := findPV(ctx, s, args[0])
			if err != nil {
				return err
			}
			value, err := script.AwaitValue(ctx, clock.Real(), pv, c.interval, c.timeout)
			if errors.Is(err, script.ErrTimeout) {
				fmt.Fprintf(os.Stderr, "%s: no value after %s\n", args[0], c.timeout)
				return &process.ExitError{Code: exitTimeout}
			}
			if err != nil {
				return err
			}
			c.printValue(args[0], value)
			return nil
		})
	case "watch":
		if err := need(1, "<pv>"); err != nil {
			return err
		}
		return c.session(ctx, func(ctx context.Context, s *gateway.Session) error {
			pv, err := findPV(ctx, s, args[0])
			if err != nil {
				return err
			}
			subscription, err := pv.Subscribe(ctx, func(value any) {
				c.printValue(args[0], value)
			})
			if err != nil {
				return err
			}
			<-ctx.Done()
			// The signal context is done; cancel on a fresh one.
			cancelCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return subscription.Cancel(cancelCtx)
		})
	default:
		return fmt.Errorf("unknown command %q (run scriptgate --help)", command)
	}
}

// session runs body in a gateway session with both utilities bound.
func (c *client) session(ctx context.Context, body func(context.Context, *gateway.Session) error) error {
	if c.port <= 0 {
		return fmt.Errorf("no host port: pass --port or set SCRIPTGATE_PORT")
	}
	return gateway.WithSession(ctx, c.port, gateway.SessionOptions{
		PVUtil:     true,
		ScriptUtil: true,
		Logger:     c.logger,
		ClientName: "scriptgate",
	}, body)
}

func (c *client) printTable(ctx context.Context, s *gateway.Session) error {
	if c.raw {
		data, err := codec.Marshal(wire.Table(s.Table))
		if err != nil {
			return err
		}
		diagnostic, err := codec.Diagnose(data)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, diagnostic)
		return nil
	}

	keys := s.Table.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		entry := s.Table[key]
		if !entry.List {
			ref, _ := entry.Ref()
			fmt.Fprintf(c.out, "%s\t%s\n", key, ref)
			continue
		}
		fmt.Fprintf(c.out, "%s\t[%d]\n", key, len(entry.Refs))
		for _, ref := range entry.Refs {
			fmt.Fprintf(c.out, "  %s\n", ref)
		}
	}
	return nil
}

func (c *client) printValue(name string, value any) {
	if c.pretty {
		fmt.Fprintf(c.out, "%s = %v\n", name, value)
		return
	}
	fmt.Fprintln(c.out, value)
}

// findPV returns the session PV called name, falling back to a lookup
// on the widget through ScriptUtil.
func findPV(ctx context.Context, s *gateway.Session, name string) (gateway.PV, error) {
	for _, pv := range s.PVs {
		pvName, err := pv.Name(ctx)
		if err != nil {
			return gateway.PV{}, err
		}
		if pvName == name {
			return pv, nil
		}
	}
	pv, err := s.ScriptUtil.PVByName(ctx, s.Widget, name)
	if errors.Is(err, gateway.ErrNotFound) {
		return gateway.PV{}, fmt.Errorf("widget has no PV %q", name)
	}
	return pv, err
}

// parseValue interprets command-line text as a number or boolean where
// it parses as one.
func parseValue(text string) any {
	if number, err := strconv.ParseFloat(text, 64); err == nil {
		return number
	}
	if flag, err := strconv.ParseBool(text); err == nil {
		return flag
	}
	return text
}

func envPort() int {
	port, err := strconv.Atoi(os.Getenv("SCRIPTGATE_PORT"))
	if err != nil {
		return 0
	}
	return port
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stdout, `scriptgate - Talk to a running scriptgate host

USAGE
    scriptgate [flags] <command> [args...]

COMMANDS
    table                   List the reference table
    read <pv>               Print a PV's value
    write <pv> <value>      Write a PV
    get <property>          Print a property of the table's widget
    set <property> <value>  Set a property of the table's widget
    await <pv>              Wait for a PV to have a value (exit 2 on timeout)
    watch <pv>              Print every value of a PV until interrupted

FLAGS
%s`, flagSet.FlagUsages())
}
