// Package protocol implements the line framing and command grammar of the
// relay wire protocol: newline-terminated text lines carrying one command or
// reply each.
package protocol

import (
	"bytes"
	"errors"
	"strings"
)

// DefaultMaxLineLen bounds how many bytes a single inbound line may occupy
// before the connection is considered misbehaving.
const DefaultMaxLineLen = 4096

// ErrLineTooLong is returned by Framer.Push when a line exceeds the framer's
// maximum length. The connection should be closed; the framer's buffer is no
// longer usable.
var ErrLineTooLong = errors.New("protocol: line exceeds maximum length")

// Framer splits an append-only byte stream into normalized command lines.
// Bytes are buffered across Push calls so a line split over several reads is
// reassembled; any trailing partial line is retained for the next chunk.
// A Framer is bound to one connection and is not safe for concurrent use.
type Framer struct {
	buf     bytes.Buffer
	maxLine int
}

// NewFramer returns a Framer enforcing the given maximum line length.
// A non-positive maxLine selects DefaultMaxLineLen.
func NewFramer(maxLine int) *Framer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLen
	}

	return &Framer{maxLine: maxLine}
}

// Push appends a chunk of raw bytes and returns the normalized lines it
// completed, in arrival order. A returned empty string is a valid line (a
// blank or whitespace-only input line); callers must handle it.
//
// Returns ErrLineTooLong alongside any lines already completed when a line
// grows past the configured maximum.
func (f *Framer) Push(chunk []byte) ([]string, error) {
	f.buf.Write(chunk)

	var lines []string
	for {
		raw := f.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx == -1 {
			if f.buf.Len() > f.maxLine {
				return lines, ErrLineTooLong
			}

			return lines, nil
		}

		if idx > f.maxLine {
			return lines, ErrLineTooLong
		}

		line := string(raw[:idx])
		f.buf.Next(idx + 1)
		lines = append(lines, Normalize(line))
	}
}

// Pending returns the number of buffered bytes awaiting a newline.
func (f *Framer) Pending() int {
	return f.buf.Len()
}

// Normalize strips carriage returns, trims leading and trailing whitespace,
// and collapses internal whitespace runs to a single space, so that
// "  MSG   hello   world  \r" and "MSG hello world" are the same command.
func Normalize(line string) string {
	line = strings.ReplaceAll(line, "\r", "")
	return strings.Join(strings.Fields(line), " ")
}
