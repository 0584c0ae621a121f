// Package probe checks the version a command reports about itself.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"

	"github.com/deixis/candy"
)

var (
	// ErrNoVersion is returned when the command printed nothing that parses
	// as a version.
	ErrNoVersion = errors.New("no version found in output")
	// ErrUnsatisfied is returned when the version does not meet the constraint.
	ErrUnsatisfied = errors.New("version does not satisfy constraint")
)

// Result describes a successful probe.
type Result struct {
	Command string
	RunID   string
	Line    string // the line the version was read from
	Version *semver.Version
}

// Version runs task and stops at the first stdout line containing a
// version. Stderr is ignored. An empty constraint accepts any version.
func Version(ctx context.Context, task *candy.Task, constraint string) (*Result, error) {
	var c *semver.Constraints
	if constraint != "" {
		var err error
		if c, err = semver.NewConstraint(constraint); err != nil {
			return nil, fmt.Errorf("parsing constraint %q: %w", constraint, err)
		}
	}

	type found struct {
		line string
		v    *semver.Version
	}
	out, err := candy.Run(ctx, task, func(l candy.Log) candy.Behavior[found] {
		if l.Stream != candy.Stdout {
			return candy.Passthrough[found]()
		}
		if v := Parse(l.Line); v != nil {
			return candy.EarlyReturn(found{line: l.Line, v: v})
		}
		return candy.Passthrough[found]()
	})
	if err != nil {
		return nil, err
	}
	if !out.IsEarlyReturn() {
		return nil, fmt.Errorf("%s: %w", task.Descriptor(), ErrNoVersion)
	}

	res := &Result{
		Command: task.Descriptor(),
		RunID:   out.RunID,
		Line:    out.Value.line,
		Version: out.Value.v,
	}
	if c != nil {
		if ok, errs := c.Validate(res.Version); !ok {
			return res, fmt.Errorf("%s reports %s, want %s: %w: %w",
				res.Command, res.Version, constraint, ErrUnsatisfied, errors.Join(errs...))
		}
	}
	return res, nil
}

// Parse extracts the first dotted version from a line such as
// "rustc 1.63.0 (4b91a6ea7 2022-08-08)" or "go version go1.22.1 linux/amd64".
// It returns nil if there is none.
func Parse(line string) *semver.Version {
	for _, f := range strings.Fields(line) {
		f = strings.TrimLeftFunc(f, unicode.IsLetter)
		f = strings.TrimRight(f, ",;:)")
		if !strings.Contains(f, ".") || f == "" || !unicode.IsDigit(rune(f[0])) {
			continue
		}
		if v, err := semver.NewVersion(f); err == nil {
			return v
		}
	}
	return nil
}
