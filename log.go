package candy

import "fmt"

// Stream identifies which output stream a line came from.
type Stream int

const (
	// Stdout is the child's standard output.
	Stdout Stream = iota
	// Stderr is the child's standard error.
	Stderr
)

// String returns the stream name.
func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Log is a single line emitted by a running Task, without its newline.
type Log struct {
	Stream Stream
	Line   string
}

// StdoutLog returns a Log for a line printed to stdout.
func StdoutLog(line string) Log { return Log{Stream: Stdout, Line: line} }

// StderrLog returns a Log for a line printed to stderr.
func StderrLog(line string) Log { return Log{Stream: Stderr, Line: line} }

func (l Log) String() string {
	return l.Stream.String() + ": " + l.Line
}
