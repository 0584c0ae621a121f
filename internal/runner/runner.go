// Package runner spawns child processes with piped output streams and
// provides the line readers and queue used to fan their output back in.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MarkerEnv is set to "true" in the environment of every spawned child.
const MarkerEnv = "SHELL_CANDY"

// Spec describes the process to start.
type Spec struct {
	Bin  string
	Args []string
	Dir  string            // working directory; empty means inherit
	Env  map[string]string // merged over the inherited environment
}

// Process is a started child with both output streams piped.
type Process struct {
	RunID   string
	Started time.Time
	Stdout  io.ReadCloser
	Stderr  io.ReadCloser

	cmd *exec.Cmd
}

// Start spawns the process described by spec. The caller must read
// Stdout and Stderr to EOF before calling Wait.
func Start(spec Spec) (*Process, error) {
	cmd := exec.Command(spec.Bin, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &Process{
		RunID:   uuid.New().String(),
		Started: time.Now(),
		Stdout:  stdout,
		Stderr:  stderr,
		cmd:     cmd,
	}, nil
}

// Wait blocks until the process exits and returns its exit code. A
// non-zero exit is not an error; err is only set when the wait itself
// failed.
func (p *Process) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed by a signal reports -1.
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// PID returns the child's process ID.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// mergeEnv overlays extra onto base (KEY=VALUE form) and appends the
// marker variable. Later entries win in exec, so overrides are appended
// in a stable order after the inherited ones.
func mergeEnv(base []string, extra map[string]string) []string {
	env := make([]string, 0, len(base)+len(extra)+1)
	env = append(env, base...)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return append(env, MarkerEnv+"=true")
}
