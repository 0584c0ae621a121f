package runner

import (
	"bufio"
	"io"
	"unicode/utf8"
)

// DefaultMaxLine is the largest line ScanLines accepts when no limit is given.
const DefaultMaxLine = 1 << 20 // 1 MB

// ScanLines reads r line by line and calls emit for each line with the
// trailing newline (and carriage return) removed. Lines that are not valid
// UTF-8 are skipped. It returns once r hits EOF. A read failure or an over-long line ends scanning silently; the
// remainder of r is discarded so the writing process never blocks on a
// full pipe.
func ScanLines(r io.Reader, maxLine int, emit func(string)) {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	// The initial buffer must not exceed maxLine or the scanner ignores the limit.
	initial := min(64*1024, maxLine)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLine)

	for scanner.Scan() {
		line := scanner.Text()
		if !utf8.ValidString(line) {
			continue
		}
		emit(line)
	}
	if scanner.Err() != nil {
		_, _ = io.Copy(io.Discard, r)
	}
}
