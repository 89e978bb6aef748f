package protocol

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies a parsed client command.
type Kind int

const (
	KindUnrecognized Kind = iota // anything outside the grammar
	KindLogin                    // LOGIN <name>
	KindBroadcast                // MSG <text>
	KindWho                      // WHO
	KindDirect                   // DM <name> <text>
	KindPing                     // PING
	KindHistory                  // HISTORY
)

// Command is a typed client command parsed from one normalized line.
// Name carries the LOGIN username or DM recipient; Text carries the MSG or
// DM payload. Fields not used by a Kind are empty.
type Command struct {
	Kind Kind
	Name string
	Text string
}

// MaxUsernameLen is the upper bound on username length, in characters.
const MaxUsernameLen = 30

// Parse maps a normalized non-empty line to a typed Command. Parsing is
// independent of session state and never fails; lines outside the grammar
// yield KindUnrecognized. A bare command word with its arguments missing
// (e.g. "LOGIN", "MSG", "DM alice") parses with empty fields so the state
// machine can report the precise usage error.
func Parse(line string) Command {
	switch line {
	case "LOGIN":
		return Command{Kind: KindLogin}
	case "MSG":
		return Command{Kind: KindBroadcast}
	case "WHO":
		return Command{Kind: KindWho}
	case "DM":
		return Command{Kind: KindDirect}
	case "PING":
		return Command{Kind: KindPing}
	case "HISTORY":
		return Command{Kind: KindHistory}
	}

	switch {
	case strings.HasPrefix(line, "LOGIN "):
		// the first token is the name; anything after it is ignored
		cmd := Command{Kind: KindLogin}
		if fields := strings.Fields(line[len("LOGIN "):]); len(fields) > 0 {
			cmd.Name = fields[0]
		}

		return cmd
	case strings.HasPrefix(line, "MSG "):
		return Command{Kind: KindBroadcast, Text: strings.TrimSpace(line[len("MSG "):])}
	case strings.HasPrefix(line, "DM "):
		cmd := Command{Kind: KindDirect}
		if fields := strings.Fields(line[len("DM "):]); len(fields) > 0 {
			cmd.Name = fields[0]
			cmd.Text = strings.Join(fields[1:], " ")
		}

		return cmd
	}

	return Command{Kind: KindUnrecognized}
}

// ValidUsername reports whether name satisfies the username rules:
// 1 to MaxUsernameLen characters with no whitespace.
func ValidUsername(name string) bool {
	if name == "" || utf8.RuneCountInString(name) > MaxUsernameLen {
		return false
	}

	return !strings.ContainsFunc(name, unicode.IsSpace)
}
