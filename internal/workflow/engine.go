// Package workflow runs tasks on behalf of the CLI and the MCP server and
// records every run in a report.Store.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deixis/candy"
	"github.com/deixis/candy/internal/config"
	"github.com/deixis/candy/internal/probe"
	"github.com/deixis/candy/internal/report"
)

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config *config.Config
	Store  report.Store
	Dir    string // default working directory; relative request dirs resolve against it
}

// Request describes one run.
type Request struct {
	Command string
	Dir     string            // optional working directory
	Env     map[string]string // merged over Config.Env
	StopOn  *regexp.Regexp    // stop at the first line matching, if set
	// Echo, if set, receives every line the handler sees.
	Echo func(candy.Log)
}

// Task builds a candy.Task with the configured environment and line limit.
func (e *Engine) Task(command, dir string, env map[string]string) (*candy.Task, error) {
	t, err := candy.New(command)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, NewErrToolUnavailable(firstWord(command), err)
		}
		return nil, err
	}
	if d := e.resolveDir(dir); d != "" {
		t.CurrentDir(d)
	}
	for k, v := range e.Config.Env {
		t.Env(k, v)
	}
	for k, v := range env {
		t.Env(k, v)
	}
	t.MaxLine(e.Config.MaxLine())
	return t, nil
}

// Run executes req and saves its record. The record is returned together
// with the run error, if any, so callers can show what was captured. A
// task that cannot be built returns a nil record.
func (e *Engine) Run(ctx context.Context, req Request) (*report.Record, error) {
	log := zerolog.Ctx(ctx)

	t, err := e.Task(req.Command, req.Dir, req.Env)
	if err != nil {
		return nil, err
	}

	rec := report.NewRecord("", t.Descriptor(), t.Dir())
	out, runErr := candy.Run(ctx, t, func(l candy.Log) candy.Behavior[string] {
		if l.Stream == candy.Stderr {
			rec.Stderr = append(rec.Stderr, l.Line)
		} else {
			rec.Stdout = append(rec.Stdout, l.Line)
		}
		if req.Echo != nil {
			req.Echo(l)
		}
		if req.StopOn != nil && req.StopOn.MatchString(l.Line) {
			return candy.EarlyReturn(l.Line)
		}
		return candy.Passthrough[string]()
	})

	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		return nil, runErr
	}
	fill(rec, out, runErr)

	log.Info().
		Str("run_id", rec.ID).
		Str("kind", string(rec.Kind)).
		Int("exit_code", rec.ExitCode).
		Int("stdout", len(rec.Stdout)).
		Int("stderr", len(rec.Stderr)).
		Dur("duration", rec.Duration).
		Msg("run finished")

	if err := e.Store.Save(rec); err != nil {
		return rec, fmt.Errorf("saving run %s: %w", rec.ID, err)
	}
	return rec, runErr
}

// fill copies the outcome of a run into rec.
func fill(rec *report.Record, out *candy.Output[string], err error) {
	if err == nil {
		rec.ID = out.RunID
		rec.Kind = report.Complete
		if out.IsEarlyReturn() {
			rec.Kind = report.EarlyReturn
			rec.Value = out.Value
		}
		rec.ExitCode = out.ExitCode
		rec.Discarded = out.Discarded
		rec.Duration = out.Duration
		return
	}

	rec.ID = uuid.NewString()
	if id, ok := candy.RunIDOf(err); ok {
		rec.ID = id
	}
	rec.Duration = time.Since(rec.Started)
	rec.Error = err.Error()
	rec.Kind = report.Errored
	if code, ok := candy.ExitCodeOf(err); ok {
		rec.Kind = report.Failed
		rec.ExitCode = code
	}
}

// Version probes the version a command reports and checks it against
// constraint.
func (e *Engine) Version(ctx context.Context, command, constraint string) (*probe.Result, error) {
	t, err := e.Task(command, "", nil)
	if err != nil {
		return nil, err
	}
	res, err := probe.Version(ctx, t, constraint)
	if res != nil {
		zerolog.Ctx(ctx).Debug().
			Str("command", res.Command).
			Str("version", res.Version.String()).
			Str("line", res.Line).
			Msg("version probed")
	}
	return res, err
}

func (e *Engine) resolveDir(dir string) string {
	if dir == "" {
		return e.Dir
	}
	if filepath.IsAbs(dir) || e.Dir == "" {
		return dir
	}
	return filepath.Join(e.Dir, dir)
}

func firstWord(command string) string {
	name, _, _ := strings.Cut(command, " ")
	return name
}

// knownTools maps executables to install instructions.
var knownTools = map[string]string{
	"cargo":  "https://rustup.rs",
	"rustc":  "https://rustup.rs",
	"rustup": "https://rustup.rs",
	"go":     "https://go.dev/doc/install",
	"node":   "https://nodejs.org/en/download",
	"npm":    "https://nodejs.org/en/download",
	"git":    "https://git-scm.com/downloads",
}

// ErrToolUnavailable is returned when a command's executable is not
// installed. It includes install instructions when the tool is known.
type ErrToolUnavailable struct {
	Name    string
	Install string
	Err     error
}

func NewErrToolUnavailable(name string, err error) ErrToolUnavailable {
	return ErrToolUnavailable{Name: name, Install: knownTools[name], Err: err}
}

func (e ErrToolUnavailable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is required but not installed.", e.Name)
	if e.Install != "" {
		fmt.Fprintf(&b, "\nInstall: %s", e.Install)
	}
	return b.String()
}

func (e ErrToolUnavailable) Unwrap() error { return e.Err }
