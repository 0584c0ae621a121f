package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/deixis/candy"
	"github.com/deixis/candy/internal/config"
	"github.com/deixis/candy/internal/probe"
	"github.com/deixis/candy/internal/report"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return &Engine{
		Config: &config.Config{},
		Store:  report.NewLRUStore(10, nil),
		Dir:    t.TempDir(),
	}
}

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "task.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_CompleteIsSaved(t *testing.T) {
	e := newEngine(t)
	script := writeScript(t, e.Dir, "echo one\necho two >&2\n")

	var echoed []string
	rec, err := e.Run(context.Background(), Request{
		Command: "sh " + script,
		Echo:    func(l candy.Log) { echoed = append(echoed, l.String()) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Kind != report.Complete {
		t.Errorf("Kind = %s, want complete", rec.Kind)
	}
	if len(rec.Stdout) != 1 || len(rec.Stderr) != 1 {
		t.Errorf("lines = %q / %q, want one each", rec.Stdout, rec.Stderr)
	}
	if len(echoed) != 2 {
		t.Errorf("echoed = %q, want 2 lines", echoed)
	}

	saved, err := e.Store.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load(%s): %v", rec.ID, err)
	}
	if saved.Command != "sh "+script {
		t.Errorf("Command = %q", saved.Command)
	}
}

func TestRun_StopOn(t *testing.T) {
	e := newEngine(t)
	script := writeScript(t, e.Dir, "echo Compiling\necho 'Finished dev'\necho more\necho more\n")

	rec, err := e.Run(context.Background(), Request{
		Command: "sh " + script,
		StopOn:  regexp.MustCompile(`^Finished`),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Kind != report.EarlyReturn {
		t.Fatalf("Kind = %s, want early_return", rec.Kind)
	}
	if rec.Value != "Finished dev" {
		t.Errorf("Value = %q, want the matching line", rec.Value)
	}
	if len(rec.Stdout) != 2 {
		t.Errorf("Stdout = %q, want the lines up to the match", rec.Stdout)
	}
	if rec.Discarded != 2 {
		t.Errorf("Discarded = %d, want 2", rec.Discarded)
	}
}

func TestRun_FailureIsSaved(t *testing.T) {
	e := newEngine(t)
	script := writeScript(t, e.Dir, "echo 'error[E0425]: cannot find value' >&2\nexit 101\n")

	rec, err := e.Run(context.Background(), Request{Command: "sh " + script})
	if !errors.Is(err, candy.ErrTaskFailure) {
		t.Fatalf("err = %v, want ErrTaskFailure", err)
	}
	if rec == nil {
		t.Fatal("record is nil")
	}
	if rec.Kind != report.Failed || rec.ExitCode != 101 {
		t.Errorf("record = %s/%d, want failed/101", rec.Kind, rec.ExitCode)
	}
	if len(rec.Stderr) != 1 || !strings.HasPrefix(rec.Stderr[0], "error[E0425]") {
		t.Errorf("Stderr = %q, want the captured line", rec.Stderr)
	}
	if _, err := e.Store.Load(rec.ID); err != nil {
		t.Errorf("failed run not saved: %v", err)
	}
}

func TestRun_ConfigEnvAndRequestEnv(t *testing.T) {
	e := newEngine(t)
	e.Config.Env = map[string]string{"A": "config", "B": "config"}
	script := writeScript(t, e.Dir, "echo \"$A $B\"\n")

	rec, err := e.Run(context.Background(), Request{
		Command: "sh " + script,
		Env:     map[string]string{"B": "request"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.Stdout) != 1 || rec.Stdout[0] != "config request" {
		t.Errorf("Stdout = %q, want [config request]", rec.Stdout)
	}
}

func TestRun_RelativeDir(t *testing.T) {
	e := newEngine(t)
	sub := filepath.Join(e.Dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	rec, err := e.Run(context.Background(), Request{Command: "pwd", Dir: "sub"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want, _ := filepath.EvalSymlinks(sub)
	got, _ := filepath.EvalSymlinks(rec.Stdout[0])
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
	if rec.Dir != sub {
		t.Errorf("Dir = %q, want %q", rec.Dir, sub)
	}
}

func TestRun_ToolUnavailable(t *testing.T) {
	e := newEngine(t)
	rec, err := e.Run(context.Background(), Request{Command: "nonexistent-tool-xyz build"})
	var unavailable ErrToolUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want ErrToolUnavailable", err)
	}
	if unavailable.Name != "nonexistent-tool-xyz" {
		t.Errorf("Name = %q", unavailable.Name)
	}
	if rec != nil {
		t.Error("record returned for a task that never ran")
	}
}

func TestErrToolUnavailable_KnownTool(t *testing.T) {
	msg := NewErrToolUnavailable("cargo", nil).Error()
	if !strings.Contains(msg, "https://rustup.rs") {
		t.Errorf("message = %q, want install link", msg)
	}
}

func TestVersion(t *testing.T) {
	e := newEngine(t)
	script := writeScript(t, e.Dir, "echo 'tool 3.4.5'\n")

	res, err := e.Version(context.Background(), "sh "+script, ">= 3.0")
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if res.Version.String() != "3.4.5" {
		t.Errorf("Version = %s, want 3.4.5", res.Version)
	}

	_, err = e.Version(context.Background(), "sh "+script, "< 3")
	if !errors.Is(err, probe.ErrUnsatisfied) {
		t.Errorf("err = %v, want ErrUnsatisfied", err)
	}
}
