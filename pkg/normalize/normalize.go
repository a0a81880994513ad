// Package normalize turns the hand-typed text stored in the archive into
// canonical diary items.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mklimuk/diary-pilot/pkg/diary"
)

// BodyNoteTitle is the title of the note carrying an entry's separate body text.
const BodyNoteTitle = "from body"

var (
	typedFirstLine = regexp.MustCompile(`^[A-Z]+[ :]`)
	capsRepair     = regexp.MustCompile(`(?m)^((?:EVENT )?)([A-Z]{2}[A-Za-z']*)([ :])`)
	gaveUp         = regexp.MustCompile(`(?m)^GAVE UP on `)
	lowerDidnt     = regexp.MustCompile(`(?m)^((?:EVENT )?)didn't\b`)
	delimiterLine  = regexp.MustCompile(`^-{2,}$`)
)

// Error is a parse failure of the corrected text. It keeps the text so the
// offending line can be shown with a caret under the column.
type Error struct {
	Text  string
	Cause *diary.ParseError
}

func (e *Error) Error() string {
	lines := strings.Split(e.Text, "\n")
	if e.Cause.Line < 1 || e.Cause.Line > len(lines) {
		return e.Cause.Error()
	}
	col := e.Cause.Column
	if col < 1 {
		col = 1
	}
	return fmt.Sprintf("%s\n%s\n%s^", e.Cause.Msg, lines[e.Cause.Line-1], strings.Repeat(" ", col-1))
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Normalize parses summary as the items of p and returns p with them attached.
// A non-trivial body becomes an extra note.
func Normalize(p diary.Period, summary, body string) (diary.Period, error) {
	block := Correct(summary)

	p.Stuff = nil
	if block != "" {
		text := p.Header() + "\n" + strings.Repeat("=", len(p.Header())) + "\n" + block + "\n"
		parsed, err := diary.Parse(text)
		if err != nil {
			var perr *diary.ParseError
			if errors.As(err, &perr) {
				return p, &Error{Text: text, Cause: perr}
			}
			return p, err
		}
		if len(parsed) != 1 {
			return p, fmt.Errorf("expected one period, parsed %d", len(parsed))
		}
		p.Stuff = parsed[0].Stuff
	}

	body = strings.TrimSpace(body)
	if body != "" && body != "-" {
		if n := len(p.Stuff); n == 0 || p.Stuff[n-1].Body != body {
			p.Stuff = append(p.Stuff, diary.NewStuff(diary.Note, BodyNoteTitle, body))
		}
	}
	return p, nil
}

// Correct applies the textual repairs that make old entries parseable and
// returns the item block, or "" when nothing is left.
func Correct(summary string) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(summary), "\n") {
		line = strings.TrimRight(line, " \t\r")
		// whitespace-only lines are dropped even inside bodies
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	if !typedFirstLine.MatchString(lines[0]) {
		lines[0] = diary.Event.Keyword() + " " + lines[0]
	}

	block := strings.Join(lines, "\n")
	block = capsRepair.ReplaceAllStringFunc(block, func(m string) string {
		sub := capsRepair.FindStringSubmatch(m)
		word := strings.ToUpper(sub[2])
		if _, ok := diary.LookupType(word); !ok {
			return m
		}
		return sub[1] + word + sub[3]
	})
	block = gaveUp.ReplaceAllString(block, diary.Cancelled.Keyword()+" ")
	block = lowerDidnt.ReplaceAllString(block, "${1}"+diary.Didnt.Keyword())

	return strings.Join(prefixUntyped(strings.Split(block, "\n")), "\n")
}

// prefixUntyped marks every line outside a body that does not open with a
// keyword as an event.
func prefixUntyped(lines []string) []string {
	inBody := false
	for i, line := range lines {
		if delimiterLine.MatchString(line) {
			inBody = !inBody
			continue
		}
		if inBody || startsWithKeyword(line) {
			continue
		}
		lines[i] = diary.Event.Keyword() + " " + line
	}
	return lines
}

func startsWithKeyword(line string) bool {
	for _, kw := range diary.Keywords() {
		if rest, ok := strings.CutPrefix(line, kw); ok && (strings.HasPrefix(rest, " ") || strings.HasPrefix(rest, ":")) {
			return true
		}
	}
	return false
}
