package child

import (
	"regexp"
	"strconv"
	"strings"
)

// CrashInfo is a parsed stack trace from a non-zero child exit (spec §4.2,
// §8 scenario 5).
type CrashInfo struct {
	Kind       string
	File       string
	Line       int
	Col        int
	Suggestion string
}

// stackFrameRe matches a JS/TS stack frame like "  at /p/s.ts:3:5".
var stackFrameRe = regexp.MustCompile(`at\s+(\S+):(\d+):(\d+)`)

// errorHeaderRe matches the first line of an uncaught error, e.g.
// "TypeError: foo is not a function".
var errorHeaderRe = regexp.MustCompile(`^(\w+Error):\s*(.+)$`)

// ParseCrash extracts a CrashInfo from captured stderr text, or returns nil
// if stderr does not look like a recognizable stack trace.
func ParseCrash(stderr string) *CrashInfo {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return nil
	}

	lines := strings.Split(stderr, "\n")
	kind := "Error"
	message := lines[0]
	if m := errorHeaderRe.FindStringSubmatch(lines[0]); m != nil {
		kind = m[1]
		message = m[2]
	}

	frame := stackFrameRe.FindStringSubmatch(stderr)
	if frame == nil {
		return &CrashInfo{Kind: kind, Suggestion: message}
	}

	line, _ := strconv.Atoi(frame[2])
	col, _ := strconv.Atoi(frame[3])
	return &CrashInfo{
		Kind:       kind,
		File:       frame[1],
		Line:       line,
		Col:        col,
		Suggestion: message,
	}
}
