// Package report persists the records of finished runs and answers
// questions about the lines they printed.
package report

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Kind describes how a run ended.
type Kind string

const (
	// Complete means the process exited zero and every line was handled.
	Complete Kind = "complete"
	// EarlyReturn means the handler stopped consuming before the end.
	EarlyReturn Kind = "early_return"
	// Failed means the process exited non-zero.
	Failed Kind = "failed"
	// Errored means the run could not be carried out or the handler failed.
	Errored Kind = "error"
)

// Stream names as stored in records.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// ErrNotFound is returned by Load when no record has the requested ID.
var ErrNotFound = errors.New("run not found")

// Store persists and retrieves run records.
type Store interface {
	Save(rec *Record) error
	Load(runID string) (*Record, error)
	// List returns up to limit records, most recent first. A limit of zero
	// or less returns every record.
	List(limit int) ([]*Record, error)
}

// Record holds what is kept about one run.
type Record struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	Dir       string        `json:"dir,omitempty"`
	Kind      Kind          `json:"kind"`
	ExitCode  int           `json:"exit_code"`
	Stdout    []string      `json:"stdout"`
	Stderr    []string      `json:"stderr"`
	Value     string        `json:"value,omitempty"` // early-return value
	Error     string        `json:"error,omitempty"`
	Discarded int           `json:"discarded,omitempty"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
}

// NewRecord returns an empty record for a run that started now.
func NewRecord(id, command, dir string) *Record {
	return &Record{
		ID:      id,
		Command: command,
		Dir:     dir,
		Stdout:  []string{},
		Stderr:  []string{},
		Started: time.Now(),
	}
}

// Lines returns the lines of one stream. An empty stream returns stdout
// followed by stderr.
func Lines(rec *Record, stream string) ([]string, error) {
	switch stream {
	case Stdout:
		return rec.Stdout, nil
	case Stderr:
		return rec.Stderr, nil
	case "":
		out := make([]string, 0, len(rec.Stdout)+len(rec.Stderr))
		out = append(out, rec.Stdout...)
		return append(out, rec.Stderr...), nil
	default:
		return nil, fmt.Errorf("unknown stream %q: want stdout or stderr", stream)
	}
}

// Match is a line that matched a Grep pattern.
type Match struct {
	Stream string
	N      int // 1-based line number within the stream
	Text   string
}

func (m Match) String() string {
	return fmt.Sprintf("%s:%d: %s", m.Stream, m.N, m.Text)
}

// Grep returns the lines of stream matching pattern. An empty stream
// searches both, stdout first.
func Grep(rec *Record, stream, pattern string) ([]Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern: %w", err)
	}

	var streams []string
	switch stream {
	case "":
		streams = []string{Stdout, Stderr}
	case Stdout, Stderr:
		streams = []string{stream}
	default:
		return nil, fmt.Errorf("unknown stream %q: want stdout or stderr", stream)
	}

	var out []Match
	for _, s := range streams {
		lines, _ := Lines(rec, s)
		for i, l := range lines {
			if re.MatchString(l) {
				out = append(out, Match{Stream: s, N: i + 1, Text: l})
			}
		}
	}
	return out, nil
}
