package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// ErrNotFound is returned by Check when a binary is not in PATH.
var ErrNotFound = errors.New("executable not found")

// Result captures one external command invocation.
type Result struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Runner abstracts process execution so adapters can be tested without
// spawning ffmpeg, whisper.cpp or piper.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
// A non-zero exit is returned as an error that includes the trimmed stderr.
func (ExecRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	err := cmd.Run()
	res := Result{
		Command: name,
		Args:    args,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		if msg := strings.TrimSpace(res.Stderr); msg != "" {
			return res, fmt.Errorf("command %q failed: %w\nstderr: %s", name, err, lastLines(msg, 8))
		}
		return res, fmt.Errorf("command %q failed: %w", name, err)
	}
	return res, nil
}

var (
	lookMu    sync.Mutex
	lookCache = map[string]string{}
)

// Check resolves name in PATH once and caches the answer.
func Check(name string) (string, error) {
	lookMu.Lock()
	defer lookMu.Unlock()

	if p, ok := lookCache[name]; ok {
		if p == "" {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return p, nil
	}
	p, err := exec.LookPath(name)
	if err != nil {
		lookCache[name] = ""
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	lookCache[name] = p
	return p, nil
}

// lastLines keeps error messages readable when tools dump long logs.
func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
