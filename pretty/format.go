// Package pretty reprints log lines of the shape `<token> <token> <json>` with
// the JSON payload indented for reading.
package pretty

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ErrTooFewFields is returned when a line does not hold two prefix tokens and
// a payload.
var ErrTooFewFields = errors.New("line has fewer than three whitespace separated fields")

type Outcome int

const (
	// Formatted lines had a valid JSON payload which was re-indented
	Formatted Outcome = iota
	// PassThrough lines are returned as read, after trimming
	PassThrough
	// Fatal lines could not be split, the run should stop
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Formatted:
		return "formatted"
	case PassThrough:
		return "passthrough"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result is the outcome of formatting a single line. Text is set for
// Formatted and PassThrough, Err only for Fatal.
type Result struct {
	Outcome Outcome
	Text    string
	Err     error
}

// isSpace reports the characters Python's str.strip removes: Unicode
// White_Space plus the ASCII separators 0x1c to 0x1f.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// Split separates the trimmed line into the two-token prefix, rejoined with a
// single space, and the remaining payload. Internal spacing of the payload is
// kept.
func Split(line string) (string, string, error) {
	line = strings.TrimFunc(line, isSpace)

	first, rest, ok := cutSpace(line)
	if !ok {
		return "", "", errors.Wrapf(ErrTooFewFields, "line %q", line)
	}
	second, payload, ok := cutSpace(rest)
	if !ok {
		return "", "", errors.Wrapf(ErrTooFewFields, "line %q", line)
	}

	return first + " " + second, payload, nil
}

// cutSpace returns the text before the first whitespace run and the text after
// it. ok is false when either side would be empty.
func cutSpace(s string) (string, string, bool) {
	idx := strings.IndexFunc(s, isSpace)
	if idx <= 0 {
		return "", "", false
	}
	rest := strings.TrimLeftFunc(s[idx:], isSpace)
	if rest == "" {
		return "", "", false
	}
	return s[:idx], rest, true
}

// Format applies the transformation to one line with its terminator already
// removed.
func Format(line string) Result {
	line = strings.TrimFunc(line, isSpace)

	prefix, payload, err := Split(line)
	if err != nil {
		return Result{Outcome: Fatal, Err: err}
	}

	indented, err := Indent(payload)
	if err != nil {
		return Result{Outcome: PassThrough, Text: line}
	}

	return Result{
		Outcome: Formatted,
		Text:    prefix + " " + indented,
	}
}
