// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// Job is one script execution: the script path and the table it
// receives.
type Job struct {
	Script string
	Table  wire.Table
}

// Runner executes scripts as external processes against a Server, one
// at a time. Each script is started as
//
//	<Interpreter> <script> <port>
//
// or, with no Interpreter, as an executable in its own right:
//
//	<script> <port>
//
// after the job's table has been installed on the server. Output from
// the process is copied to the logger line by line.
type Runner struct {
	// Server is the host endpoint scripts connect to. Required.
	Server *Server

	// Interpreter runs scripts. Empty means scripts are executables,
	// such as Go programs built on script.Run.
	Interpreter string

	// Timeout bounds each run. Zero means no limit.
	Timeout time.Duration

	// Logger receives script output at Info and failures at Warn. If
	// nil, slog.Default() is used.
	Logger *slog.Logger

	mu      sync.Mutex
	queued  map[string]bool
	jobs    chan Job
	started bool
	wg      sync.WaitGroup
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run installs job.Table and executes the script, waiting for it to
// exit. A non-zero exit status is returned as an error.
func (r *Runner) Run(ctx context.Context, job Job) error {
	if r.Server == nil {
		return fmt.Errorf("runner: Server is required")
	}
	r.Server.SetTable(job.Table)
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	port := strconv.Itoa(r.Server.Port())
	command := exec.CommandContext(ctx, job.Script, port)
	if r.Interpreter != "" {
		command = exec.CommandContext(ctx, r.Interpreter, job.Script, port)
	}
	output, err := command.CombinedOutput()

	logger := r.logger().With("script", job.Script)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		logger.Info("script output", "line", scanner.Text())
	}
	if err != nil {
		return fmt.Errorf("running %s: %w", job.Script, err)
	}
	logger.Debug("script finished")
	return nil
}

// Submit queues job for execution in the background and reports whether
// it was queued. A script already waiting in the queue is not queued
// again. The check and the queueing are not atomic with the run itself,
// so a script submitted while it is running will run again afterwards.
func (r *Runner) Submit(ctx context.Context, job Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queued[job.Script] {
		return false
	}
	if !r.started {
		r.queued = make(map[string]bool)
		r.jobs = make(chan Job, 16)
		r.started = true
		r.wg.Add(1)
		go r.work(ctx)
	}
	select {
	case r.jobs <- job:
		r.queued[job.Script] = true
		return true
	default:
		r.logger().Warn("script queue full, dropping", "script", job.Script)
		return false
	}
}

// Wait closes the queue and waits for queued scripts to finish. Submit
// must not be called after Wait.
func (r *Runner) Wait() {
	r.mu.Lock()
	if r.started {
		close(r.jobs)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for job := range r.jobs {
		r.mu.Lock()
		delete(r.queued, job.Script)
		r.mu.Unlock()

		if err := r.Run(ctx, job); err != nil {
			r.logger().Warn("script failed", "script", job.Script, "error", err)
		}
	}
}
