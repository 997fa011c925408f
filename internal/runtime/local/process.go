package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// waitDelay bounds how long Wait keeps reading pipes after the process exits
// or is killed, in case it left children holding them open.
const waitDelay = 2 * time.Second

type outcome struct {
	exitCode int64
	stdout   string
	stderr   string
	duration time.Duration
	timedOut bool
}

// execute runs name with args inside dir and captures both streams. A non-zero
// exit is an outcome, not an error; only a failure to start the process is.
func execute(ctx context.Context, limits conformance.RunLimits, stage conformance.Stage, dir, name string, args ...string) (outcome, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if limits.TimeLimit > 0 {
		runCtx, cancel = context.WithTimeout(ctx, limits.TimeLimit)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := outcome{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		duration: time.Since(start),
	}

	timedOut := limits.TimeLimit > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil

	if err == nil {
		return out, nil
	}

	// A kill caused by the caller's cancellation says nothing about the
	// process under test.
	if ctx.Err() != nil {
		return outcome{}, fmt.Errorf("%s: %w", stage, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.exitCode = exitStatus(exitErr.ProcessState)
		out.timedOut = timedOut
		return out, nil
	}

	// The process exited but a child it left behind still held the output
	// pipes open. The exit status is real.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		out.exitCode = exitStatus(cmd.ProcessState)
		out.timedOut = timedOut
		return out, nil
	}

	if timedOut {
		out.timedOut = true
		return out, nil
	}

	return outcome{}, &conformance.SpawnError{Stage: stage, Path: name, Err: err}
}

// exitStatus mirrors the usual subprocess convention: a process killed by a
// signal reports the negated signal number.
func exitStatus(state *os.ProcessState) int64 {
	if state == nil {
		return conformance.NotRunExitCode
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int64(ws.Signal())
	}
	return int64(state.ExitCode())
}
