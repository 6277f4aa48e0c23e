// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package databuild runs the catalog conversion script, validates what it
// wrote and publishes the result into the web front end's asset directory.
//
// A run is a single linear pipeline with three terminal outcomes: published,
// skipped (nothing valid to publish) and failed. A non-zero interpreter exit
// is only a hint; the output file decides the outcome.
package databuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"github.com/pdiddy/bot-catalog/internal/history"
	"github.com/pdiddy/bot-catalog/internal/interp"
	"github.com/pdiddy/bot-catalog/internal/logging"
	"github.com/pdiddy/bot-catalog/internal/publish"
	"github.com/pdiddy/bot-catalog/pkg/types"
)

const lockFile = "build.lock"

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Skip and failure reasons recorded with a run.
const (
	ReasonNoOutput  = "no-output"
	ReasonEmpty     = "empty"
	ReasonMalformed = "malformed"
	ReasonWrite     = "write"
	ReasonBusy      = "busy"
)

// ErrBusy reports that another run holds the build lock.
var ErrBusy = errors.New("another data build is running")

// Result summarizes one run.
type Result struct {
	Outcome     Outcome
	Reason      string
	Interpreter string
	ExitCode    int
	Records     int
	Artifact    publish.Artifact
	Duration    time.Duration
}

// ProcessExitCode maps the result to the process exit status: 0 for
// published and skipped runs, 1 for failures.
func (r Result) ProcessExitCode() int {
	if r.Outcome == OutcomeFailed {
		return 1
	}
	return 0
}

// ScriptRunner runs the conversion script. *interp.Runner implements it.
type ScriptRunner interface {
	Run(ctx context.Context, script string) interp.Result
}

// Recorder stores finished runs. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, run history.Run) (history.Run, error)
}

// Orchestrator runs data builds for one variant.
type Orchestrator struct {
	cfg      types.BuildConfig
	variant  types.VariantConfig
	runner   ScriptRunner
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
	debounce time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the interpreter runner.
func WithRunner(r ScriptRunner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithRecorder records every finished run.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator for the variant selected in cfg. Without
// WithRunner it runs the script through interp.NewRunner using cfg's
// interpreters and timeout.
func New(cfg types.BuildConfig, opts ...Option) (*Orchestrator, error) {
	variant, ok := cfg.Selected()
	if !ok {
		return nil, fmt.Errorf("unknown variant %q", cfg.Variant)
	}
	if variant.Script == "" || variant.Output == "" || variant.Destination == "" {
		return nil, fmt.Errorf("variant %q needs script, output and destination paths", cfg.Variant)
	}
	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.Root = wd
	}

	o := &Orchestrator{
		cfg:      cfg,
		variant:  variant,
		logger:   logging.Discard(),
		now:      time.Now,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runner == nil {
		o.runner = interp.NewRunner(cfg.Root, cfg.Interpreters, cfg.Timeout)
	}
	return o, nil
}

// resolve returns p relative to the repository root unless p is absolute.
func (o *Orchestrator) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.cfg.Root, p)
}

// Paths returns the absolute script, output and destination paths.
func (o *Orchestrator) Paths() (script, output, destination string) {
	return o.resolve(o.variant.Script), o.resolve(o.variant.Output), o.resolve(o.variant.Destination)
}

// Run executes one data build. The returned error is non-nil exactly when
// the outcome is OutcomeFailed.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	start := o.now()

	res, err := o.runLocked(ctx)
	res.Duration = o.now().Sub(start)
	o.record(ctx, start, res)
	return res, err
}

// runLocked runs the pipeline under the build lock. Only a lock held by
// another run fails the build; when the lock itself is unavailable the
// pipeline runs unlocked.
func (o *Orchestrator) runLocked(ctx context.Context) (Result, error) {
	stateDir := o.resolve(o.cfg.StateDir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		o.logger.Warn("cannot create state directory; building without lock",
			slog.String("path", stateDir), slog.Any("error", err))
		return o.pipeline(ctx)
	}

	lock := flock.New(filepath.Join(stateDir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		o.logger.Warn("cannot acquire build lock; building without lock",
			slog.String("lock", lock.Path()), slog.Any("error", err))
		return o.pipeline(ctx)
	}
	if !ok {
		o.logger.Error("another data build is running", slog.String("lock", lock.Path()))
		return Result{Outcome: OutcomeFailed, Reason: ReasonBusy}, ErrBusy
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			o.logger.Warn("failed to release build lock", slog.Any("error", err))
		}
	}()

	return o.pipeline(ctx)
}

func (o *Orchestrator) pipeline(ctx context.Context) (Result, error) {
	script, output, dest := o.Paths()

	proc := o.runner.Run(ctx, script)
	res := Result{Interpreter: proc.Interpreter, ExitCode: proc.ExitCode}
	if !proc.OK() {
		o.logger.Warn("conversion script exited with non-zero status; continuing if file updated",
			slog.String("interpreter", proc.Interpreter),
			slog.Int("exit_code", proc.ExitCode),
			slog.Any("error", proc.Err),
		)
		if proc.Stderr != "" {
			o.logger.Debug("conversion script stderr", slog.String("stderr", proc.Stderr))
		}
	} else if proc.Stdout != "" {
		o.logger.Debug("conversion script stdout", slog.String("stdout", proc.Stdout))
	}

	data, err := publish.Load(output)
	if err != nil {
		o.logger.Info(fmt.Sprintf("no changes to %s", o.variant.Destination))
		o.logger.Debug("output not loaded", slog.Any("error", err))
		res.Outcome, res.Reason = OutcomeSkipped, ReasonNoOutput
		return res, nil
	}

	doc, err := publish.Validate(data, o.variant.ListField)
	switch {
	case errors.Is(err, publish.ErrMalformed):
		o.logger.Error(fmt.Sprintf("invalid JSON at %s", o.variant.Output), slog.Any("error", err))
		res.Outcome, res.Reason = OutcomeFailed, ReasonMalformed
		return res, fmt.Errorf("validating %s: %w", output, err)
	case err != nil:
		o.logger.Info(fmt.Sprintf("no %s in %s; skipping", o.variant.ListField, o.variant.Output),
			slog.Any("reason", err))
		res.Outcome, res.Reason = OutcomeSkipped, ReasonEmpty
		return res, nil
	}

	art, err := publish.Write(dest, doc)
	if err != nil {
		o.logger.Error(fmt.Sprintf("cannot publish %s", o.variant.Destination), slog.Any("error", err))
		res.Outcome, res.Reason = OutcomeFailed, ReasonWrite
		return res, err
	}

	res.Outcome = OutcomePublished
	res.Records = art.Records
	res.Artifact = art
	o.logger.Info(fmt.Sprintf("published %d package(s) to %s", art.Records, o.variant.Destination),
		slog.String("size", humanize.Bytes(uint64(art.Size))),
	)
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, start time.Time, res Result) {
	if o.recorder == nil {
		return
	}
	_, err := o.recorder.Record(ctx, history.Run{
		Variant:        string(o.cfg.Variant),
		StartedAt:      start,
		Duration:       res.Duration,
		Interpreter:    res.Interpreter,
		ExitCode:       res.ExitCode,
		Outcome:        string(res.Outcome),
		Reason:         res.Reason,
		Records:        res.Records,
		ArtifactSHA256: res.Artifact.SHA256,
	})
	if err != nil {
		o.logger.Warn("could not record run history", slog.Any("error", err))
	}
}
