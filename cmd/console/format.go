package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/stemsi/conduct-console/internal/access"
	"github.com/stemsi/conduct-console/internal/apperr"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
)

func RenderTable(out io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	writeRow(out, headers, widths)
	for i, w := range widths {
		if i > 0 {
			fmt.Fprint(out, "  ")
		}
		fmt.Fprint(out, strings.Repeat("-", w))
	}
	fmt.Fprintln(out)
	for _, row := range rows {
		writeRow(out, row, widths)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "(none)")
	}
}

func writeRow(out io.Writer, cols []string, widths []int) {
	for i, w := range widths {
		val := ""
		if i < len(cols) {
			val = cols[i]
		}
		if i < len(widths)-1 {
			val += strings.Repeat(" ", max(0, w-visibleLen(val))) + "  "
		}
		fmt.Fprint(out, val)
	}
	fmt.Fprintln(out)
}

// visibleLen counts runes outside ANSI escape sequences.
func visibleLen(s string) int {
	inEscape := false
	count := 0
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			count++
		}
	}
	return count
}

func PrintJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ColorOutcome(o access.Outcome) string {
	switch o {
	case access.OutcomeGranted:
		return ansiGreen + string(o) + ansiReset
	case access.OutcomeExpired:
		return ansiYellow + string(o) + ansiReset
	default:
		return ansiRed + string(o) + ansiReset
	}
}

func DashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n || n < 4 {
		return s
	}
	return string(r[:n-3]) + "..."
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func FormatPoints(p int) string {
	if p > 0 {
		return fmt.Sprintf("+%d", p)
	}
	return fmt.Sprintf("%d", p)
}

// describeError turns an error into the line shown to the user.
func describeError(err error) string {
	msg := apperr.Message(err)
	switch apperr.KindOf(err) {
	case apperr.KindSessionExpired:
		return "session expired, run `console login`"
	case apperr.KindUnauthenticated:
		return "not signed in, run `console login`"
	case apperr.KindForbidden:
		return "access denied: " + msg
	case apperr.KindUnauthorized:
		return "sign-in rejected: " + msg
	case apperr.KindNotFound:
		return "not found: " + msg
	case apperr.KindServiceUnavailable:
		return "server unavailable: " + msg
	case apperr.KindStorage:
		return "credential storage: " + err.Error()
	default:
		return msg
	}
}
