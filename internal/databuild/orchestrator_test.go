// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package databuild

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bot-catalog/internal/history"
	"github.com/pdiddy/bot-catalog/internal/interp"
	"github.com/pdiddy/bot-catalog/internal/logging"
	"github.com/pdiddy/bot-catalog/pkg/types"
)

// fakeRunner stands in for the interpreter. It optionally writes content to
// the output path, as the conversion script would, and reports exitCode.
type fakeRunner struct {
	mu       sync.Mutex
	output   string
	content  *string
	exitCode int
	scripts  []string
}

func (f *fakeRunner) Run(_ context.Context, script string) interp.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
	if f.content != nil {
		if err := os.MkdirAll(filepath.Dir(f.output), 0o755); err != nil {
			panic(err)
		}
		if err := os.WriteFile(f.output, []byte(*f.content), 0o644); err != nil {
			panic(err)
		}
	}
	res := interp.Result{Interpreter: "python3", ExitCode: f.exitCode}
	if f.exitCode != 0 {
		res.Err = errors.New("exit status 1")
	}
	return res
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scripts)
}

type fakeRecorder struct {
	runs []history.Run
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, run history.Run) (history.Run, error) {
	f.runs = append(f.runs, run)
	return run, f.err
}

func strPtr(s string) *string { return &s }

// testConfig builds a config rooted in a temp dir whose output and
// destination are separate files.
func testConfig(t *testing.T) types.BuildConfig {
	t.Helper()
	cfg := types.DefaultBuildConfig(t.TempDir())
	cfg.Variants[types.VariantMerge] = types.VariantConfig{
		Script:      "pytoncode/update_from_docx.py",
		Output:      "build/new_bots.json",
		Destination: "public/new_bots.json",
		ListField:   "packages",
		Watch:       []string{"pytoncode"},
	}
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg types.BuildConfig, runner *fakeRunner, opts ...Option) (*Orchestrator, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	off := false
	logger, err := logging.New(logging.Options{Output: &buf, Color: &off})
	require.NoError(t, err)

	_, output, _ := pathsFor(cfg)
	runner.output = output

	opts = append([]Option{WithRunner(runner), WithLogger(logger)}, opts...)
	o, err := New(cfg, opts...)
	require.NoError(t, err)
	return o, &buf
}

func pathsFor(cfg types.BuildConfig) (script, output, dest string) {
	v := cfg.Variants[cfg.Variant]
	return filepath.Join(cfg.Root, v.Script), filepath.Join(cfg.Root, v.Output), filepath.Join(cfg.Root, v.Destination)
}

func TestRunScenarios(t *testing.T) {
	const previous = "previous published content\n"

	tests := []struct {
		name        string
		content     *string
		exitCode    int
		preexisting bool
		wantOutcome Outcome
		wantReason  string
		wantErr     bool
		wantLog     string
		wantRecords int
	}{
		{
			name:        "valid output is published",
			content:     strPtr(`{"packages":[{"id":1,"name":"x"}]}`),
			wantOutcome: OutcomePublished,
			wantLog:     "published 1 package(s) to public/new_bots.json",
			wantRecords: 1,
		},
		{
			name:        "empty list is a clean skip",
			content:     strPtr(`{"packages":[]}`),
			preexisting: true,
			wantOutcome: OutcomeSkipped,
			wantReason:  ReasonEmpty,
			wantLog:     "no packages in build/new_bots.json; skipping",
		},
		{
			name:        "missing list field is a clean skip",
			content:     strPtr(`{"bots":[{"id":1}]}`),
			preexisting: true,
			wantOutcome: OutcomeSkipped,
			wantReason:  ReasonEmpty,
			wantLog:     "skipping",
		},
		{
			name:        "malformed output fails",
			content:     strPtr(`not valid json`),
			preexisting: true,
			wantOutcome: OutcomeFailed,
			wantReason:  ReasonMalformed,
			wantErr:     true,
			wantLog:     "ERROR invalid JSON at build/new_bots.json",
		},
		{
			name:        "missing output is a clean skip",
			exitCode:    1,
			preexisting: true,
			wantOutcome: OutcomeSkipped,
			wantReason:  ReasonNoOutput,
			wantLog:     "no changes to public/new_bots.json",
		},
		{
			name:        "non-zero exit with written output still publishes",
			content:     strPtr(`{"packages":[{"id":1},{"id":2}]}`),
			exitCode:    1,
			preexisting: true,
			wantOutcome: OutcomePublished,
			wantLog:     "published 2 package(s)",
			wantRecords: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			_, _, dest := pathsFor(cfg)
			if tt.preexisting {
				require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
				require.NoError(t, os.WriteFile(dest, []byte(previous), 0o644))
			}

			runner := &fakeRunner{content: tt.content, exitCode: tt.exitCode}
			o, logs := newTestOrchestrator(t, cfg, runner)

			res, err := o.Run(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.wantRecords, res.Records)
			assert.Contains(t, logs.String(), tt.wantLog)

			if tt.exitCode != 0 {
				assert.Contains(t, logs.String(), "WARN conversion script exited with non-zero status")
			}

			got, readErr := os.ReadFile(dest)
			switch {
			case tt.wantOutcome == OutcomePublished:
				require.NoError(t, readErr)
				assert.JSONEq(t, *tt.content, string(got))
			case tt.preexisting:
				require.NoError(t, readErr)
				assert.Equal(t, previous, string(got), "destination must be left untouched")
			default:
				assert.True(t, os.IsNotExist(readErr), "destination must stay absent")
			}
		})
	}
}

func TestRunSkipLeavesDestinationAbsent(t *testing.T) {
	cfg := testConfig(t)
	_, _, dest := pathsFor(cfg)

	o, _ := newTestOrchestrator(t, cfg, &fakeRunner{content: strPtr(`{"packages":[]}`)})
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.ProcessExitCode())

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunPassesScriptPath(t *testing.T) {
	cfg := testConfig(t)
	runner := &fakeRunner{}
	o, _ := newTestOrchestrator(t, cfg, runner)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	script, _, _ := pathsFor(cfg)
	assert.Equal(t, []string{script}, runner.scripts)
}

func TestRunIdempotent(t *testing.T) {
	content := `{"packages":[{"package":"أدوات متنوعة","packageId":1,"categories":[]}]}`

	t.Run("separate output and destination", func(t *testing.T) {
		cfg := testConfig(t)
		_, _, dest := pathsFor(cfg)
		o, _ := newTestOrchestrator(t, cfg, &fakeRunner{content: strPtr(content)})

		_, err := o.Run(context.Background())
		require.NoError(t, err)
		first, err := os.ReadFile(dest)
		require.NoError(t, err)

		_, err = o.Run(context.Background())
		require.NoError(t, err)
		second, err := os.ReadFile(dest)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("output republished in place", func(t *testing.T) {
		cfg := types.DefaultBuildConfig(t.TempDir())
		_, output, dest := pathsFor(cfg)
		require.Equal(t, output, dest)
		require.NoError(t, os.MkdirAll(filepath.Dir(output), 0o755))
		require.NoError(t, os.WriteFile(output, []byte(content), 0o644))

		// The script fails without touching its output both times.
		o, _ := newTestOrchestrator(t, cfg, &fakeRunner{exitCode: 1})

		res, err := o.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomePublished, res.Outcome)
		first, err := os.ReadFile(dest)
		require.NoError(t, err)

		_, err = o.Run(context.Background())
		require.NoError(t, err)
		second, err := os.ReadFile(dest)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.JSONEq(t, content, string(second))
	})
}

func TestRunWriteFailure(t *testing.T) {
	cfg := testConfig(t)
	// A regular file where the destination directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, "public"), []byte("x"), 0o644))

	o, logs := newTestOrchestrator(t, cfg, &fakeRunner{content: strPtr(`{"packages":[{"id":1}]}`)})
	res, err := o.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonWrite, res.Reason)
	assert.Equal(t, 1, res.ProcessExitCode())
	assert.Contains(t, logs.String(), "ERROR cannot publish public/new_bots.json")
}

func TestRunBusy(t *testing.T) {
	cfg := testConfig(t)
	stateDir := filepath.Join(cfg.Root, cfg.StateDir)
	require.NoError(t, os.MkdirAll(stateDir, 0o755))

	held := flock.New(filepath.Join(stateDir, lockFile))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	runner := &fakeRunner{content: strPtr(`{"packages":[{"id":1}]}`)}
	o, _ := newTestOrchestrator(t, cfg, runner)

	res, err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Zero(t, runner.calls(), "script must not run while another build holds the lock")
}

func TestRunWithoutStateDir(t *testing.T) {
	tests := []struct {
		name        string
		content     *string
		exitCode    int
		wantOutcome Outcome
		wantReason  string
	}{
		{
			name:        "missing output still skips",
			exitCode:    1,
			wantOutcome: OutcomeSkipped,
			wantReason:  ReasonNoOutput,
		},
		{
			name:        "valid output still publishes",
			content:     strPtr(`{"packages":[{"id":1}]}`),
			wantOutcome: OutcomePublished,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			// A regular file where the state directory should be makes
			// both the directory and the lock unavailable.
			require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, cfg.StateDir), []byte("x"), 0o644))

			runner := &fakeRunner{content: tt.content, exitCode: tt.exitCode}
			o, logs := newTestOrchestrator(t, cfg, runner)

			res, err := o.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, 0, res.ProcessExitCode())
			assert.Equal(t, 1, runner.calls(), "script runs even without the lock")
			assert.Contains(t, logs.String(), "building without lock")
		})
	}
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	rec := &fakeRecorder{}
	o, _ := newTestOrchestrator(t, cfg, &fakeRunner{content: strPtr(`{"packages":[{"id":1},{"id":2},{"id":3}]}`)}, WithRecorder(rec))

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.runs, 1)
	run := rec.runs[0]
	assert.Equal(t, "merge", run.Variant)
	assert.Equal(t, "published", run.Outcome)
	assert.Equal(t, 3, run.Records)
	assert.Equal(t, "python3", run.Interpreter)
	assert.Equal(t, res.Artifact.SHA256, run.ArtifactSHA256)
	assert.NotEmpty(t, run.ArtifactSHA256)
}

func TestRunHistoryFailureDoesNotChangeOutcome(t *testing.T) {
	cfg := testConfig(t)
	rec := &fakeRecorder{err: errors.New("disk full")}
	o, logs := newTestOrchestrator(t, cfg, &fakeRunner{content: strPtr(`{"packages":[{"id":1}]}`)}, WithRecorder(rec))

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, res.Outcome)
	assert.Contains(t, logs.String(), "WARN could not record run history")
}

func TestRunWithHistoryStore(t *testing.T) {
	cfg := testConfig(t)
	store, err := history.Open(filepath.Join(cfg.Root, cfg.StateDir))
	require.NoError(t, err)
	defer store.Close()

	o, _ := newTestOrchestrator(t, cfg, &fakeRunner{content: strPtr(`not valid json`)}, WithRecorder(store))
	_, err = o.Run(context.Background())
	require.Error(t, err)

	last, ok, err := store.Last(context.Background(), "merge")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "failed", last.Outcome)
	assert.Equal(t, ReasonMalformed, last.Reason)
}

func TestNew(t *testing.T) {
	t.Run("unknown variant", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Variant = "legacy"
		_, err := New(cfg)
		require.Error(t, err)
	})

	t.Run("incomplete variant", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Variants[types.VariantMerge] = types.VariantConfig{Script: "x.py"}
		_, err := New(cfg)
		require.Error(t, err)
	})

	t.Run("paths resolve against root", func(t *testing.T) {
		cfg := testConfig(t)
		o, err := New(cfg)
		require.NoError(t, err)
		script, output, dest := o.Paths()
		wantScript, wantOutput, wantDest := pathsFor(cfg)
		assert.Equal(t, wantScript, script)
		assert.Equal(t, wantOutput, output)
		assert.Equal(t, wantDest, dest)
	})

	t.Run("generate variant", func(t *testing.T) {
		cfg := types.DefaultBuildConfig(t.TempDir())
		cfg.Variant = types.VariantGenerate
		o, err := New(cfg)
		require.NoError(t, err)
		script, _, _ := o.Paths()
		assert.Equal(t, filepath.Join(cfg.Root, "scripts", "generate_new_bots_json.py"), script)
	})
}
