// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package interp runs the catalog conversion script through the first
// Python interpreter that succeeds.
package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"
)

const (
	binPython  = "python"
	binPython3 = "python3"
)

// waitDelay bounds how long Wait keeps reading output after the process
// is killed, in case a child process still holds the pipes open.
const waitDelay = 5 * time.Second

// utf8Env forces the interpreter to read and write UTF-8 regardless of the
// host locale or console code page.
var utf8Env = []string{"PYTHONIOENCODING=utf-8", "PYTHONUTF8=1"}

// Candidates returns the interpreter names to try on goos, in order.
// Windows installs usually expose only "python".
func Candidates(goos string) []string {
	if goos == "windows" {
		return []string{binPython, binPython3}
	}
	return []string{binPython3, binPython}
}

// Result holds the outcome of one interpreter attempt.
type Result struct {
	// Interpreter is the candidate name that was tried.
	Interpreter string

	// ExitCode is the process exit status, or -1 when the process could not
	// be started or was killed.
	ExitCode int

	Stdout string
	Stderr string

	// Err is the start or wait error, nil when the process exited 0.
	Err error
}

// OK reports whether the attempt exited with status zero.
func (r Result) OK() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, cmd Command) (int, error)
}

// Command describes one interpreter invocation.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.WaitDelay = waitDelay
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}

// Runner tries a list of interpreters in order.
type Runner struct {
	candidates []string
	dir        string
	timeout    time.Duration
	exec       executor
}

var defaultExec = &osExecutor{}

// NewRunner creates a Runner that runs scripts from dir. An empty candidates
// list selects the defaults for the host platform. A zero timeout disables
// the per-attempt deadline.
func NewRunner(dir string, candidates []string, timeout time.Duration) *Runner {
	return newRunner(dir, candidates, timeout, defaultExec)
}

func newRunner(dir string, candidates []string, timeout time.Duration, exec executor) *Runner {
	if len(candidates) == 0 {
		candidates = Candidates(runtime.GOOS)
	}
	return &Runner{
		candidates: append([]string(nil), candidates...),
		dir:        dir,
		timeout:    timeout,
		exec:       exec,
	}
}

// Candidates returns the interpreter names this runner tries, in order.
func (r *Runner) Candidates() []string {
	return append([]string(nil), r.candidates...)
}

// Run starts script with each candidate until one exits with status zero.
// It returns the successful result, or the result of the last candidate when
// none succeeded.
func (r *Runner) Run(ctx context.Context, script string) Result {
	var last Result
	for _, name := range r.candidates {
		last = r.attempt(ctx, name, script)
		if last.OK() {
			return last
		}
		if ctx.Err() != nil {
			return last
		}
	}
	return last
}

func (r *Runner) attempt(ctx context.Context, name, script string) Result {
	res := Result{Interpreter: name, ExitCode: -1}

	path, err := r.exec.LookPath(name)
	if err != nil {
		res.Err = fmt.Errorf("interpreter %s not found: %w", name, err)
		return res
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	code, err := r.exec.Run(ctx, Command{
		Path:   path,
		Args:   []string{script},
		Dir:    r.dir,
		Env:    append(os.Environ(), utf8Env...),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	res.ExitCode = code
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if err != nil {
		res.Err = fmt.Errorf("running %s %s: %w", name, script, err)
	}
	return res
}
