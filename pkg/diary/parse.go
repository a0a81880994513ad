package diary

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ParseError reports a grammar or validation failure at a 1-based position.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

type nodeKind int

const (
	nodeBlank nodeKind = iota
	nodeHeader
	nodeUnderline
	nodeDelimiter
	nodeItem
	nodeText
)

// node is one lexed line. Only the fields of its kind are populated; raw is
// always kept so body lines can be reproduced verbatim.
type node struct {
	kind nodeKind
	line int
	raw  string

	// nodeHeader
	startDate, startName string
	endDate, endName     string

	// nodeItem
	keyword string
	tags    []string
	title   string
}

func lex(text string) []node {
	lines := strings.Split(text, "\n")
	nodes := make([]node, 0, len(lines))
	for i, raw := range lines {
		raw = strings.TrimSuffix(raw, "\r")
		n := node{line: i + 1, raw: raw}
		switch {
		case strings.TrimSpace(raw) == "":
			n.kind = nodeBlank
		case underlinePattern.MatchString(raw):
			n.kind = nodeUnderline
		case delimiterPattern.MatchString(raw):
			n.kind = nodeDelimiter
		default:
			if m := headerPattern.FindStringSubmatch(raw); m != nil {
				n.kind = nodeHeader
				n.startDate, n.startName, n.endDate, n.endName = m[1], m[2], m[3], m[4]
			} else if m := itemPattern.FindStringSubmatch(raw); m != nil {
				n.kind = nodeItem
				n.keyword = m[1]
				if m[2] != "" {
					n.tags = strings.Split(strings.TrimPrefix(m[2], tagSeparator), tagSeparator)
				}
				n.title = strings.TrimSpace(m[3])
			} else {
				n.kind = nodeText
			}
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// Parse reads a canonical diary document into its periods.
func Parse(text string) ([]Period, error) {
	r := reducer{nodes: lex(text)}
	return r.document()
}

type reducer struct {
	nodes []node
	pos   int
}

func (r *reducer) peek() (node, bool) {
	if r.pos >= len(r.nodes) {
		return node{}, false
	}
	return r.nodes[r.pos], true
}

func (r *reducer) next() (node, bool) {
	n, ok := r.peek()
	if ok {
		r.pos++
	}
	return n, ok
}

func (r *reducer) eofError(msg string) *ParseError {
	line := len(r.nodes)
	col := 1
	if line > 0 {
		col = len(r.nodes[line-1].raw) + 1
	}
	return &ParseError{Line: line, Column: col, Msg: msg}
}

func (r *reducer) document() ([]Period, error) {
	var periods []Period
	for {
		for {
			n, ok := r.peek()
			if !ok || n.kind != nodeBlank {
				break
			}
			r.pos++
		}
		if _, ok := r.peek(); !ok {
			return periods, nil
		}
		p, err := r.period()
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
}

func (r *reducer) period() (Period, error) {
	h, _ := r.next()
	if h.kind != nodeHeader {
		return Period{}, &ParseError{Line: h.line, Column: 1, Msg: fmt.Sprintf("expected date header, got %q", h.raw)}
	}
	p, err := reduceHeader(h)
	if err != nil {
		return Period{}, err
	}

	u, ok := r.next()
	if !ok {
		return Period{}, r.eofError("expected underline after header")
	}
	if u.kind != nodeUnderline {
		return Period{}, &ParseError{Line: u.line, Column: 1, Msg: fmt.Sprintf("expected underline, got %q", u.raw)}
	}

	for {
		n, ok := r.next()
		if !ok || n.kind == nodeBlank {
			return p, nil
		}
		if n.kind != nodeItem {
			return Period{}, &ParseError{Line: n.line, Column: 1, Msg: fmt.Sprintf("expected item, got %q", n.raw)}
		}
		s, err := r.item(n)
		if err != nil {
			return Period{}, err
		}
		p.Stuff = append(p.Stuff, s)
	}
}

func reduceHeader(n node) (Period, error) {
	start, err := reduceDay(n, n.startDate, n.startName, 2)
	if err != nil {
		return Period{}, err
	}
	var end *civil.Date
	if n.endDate != "" {
		col := strings.Index(n.raw, rangeSeparator) + len(rangeSeparator) + 2
		e, err := reduceDay(n, n.endDate, n.endName, col)
		if err != nil {
			return Period{}, err
		}
		end = &e
	}
	p, err := NewPeriod(start, end)
	if err != nil {
		return Period{}, &ParseError{Line: n.line, Column: 1, Msg: err.Error()}
	}
	return p, nil
}

func reduceDay(n node, date, name string, col int) (civil.Date, error) {
	d, err := civil.ParseDate(date)
	if err != nil {
		return civil.Date{}, &ParseError{Line: n.line, Column: col, Msg: fmt.Sprintf("invalid date %q", date)}
	}
	actual := d.In(time.UTC).Format("Monday")
	if actual != name {
		return civil.Date{}, &ParseError{
			Line:   n.line,
			Column: col,
			Msg:    fmt.Sprintf("%s is a %s, but day given as %s", d, actual, name),
		}
	}
	return d, nil
}

func (r *reducer) item(n node) (Stuff, error) {
	t, ok := LookupType(n.keyword)
	if !ok {
		return Stuff{}, &ParseError{Line: n.line, Column: 1, Msg: fmt.Sprintf("unknown item type %q", n.keyword)}
	}
	s := Stuff{Type: t, Title: n.title, Tags: n.tags}

	if d, ok := r.peek(); ok && d.kind == nodeDelimiter {
		r.pos++
		body, err := r.body(d)
		if err != nil {
			return Stuff{}, err
		}
		s.Title = strings.TrimSpace(strings.TrimSuffix(s.Title, bodyIntroducer))
		s.Body = body
	}
	if s.Title == "" {
		return Stuff{}, &ParseError{Line: n.line, Column: len(n.raw) + 1, Msg: "item has no title"}
	}
	return s, nil
}

func (r *reducer) body(open node) (string, error) {
	var lines []string
	for {
		n, ok := r.next()
		if !ok {
			return "", &ParseError{Line: open.line, Column: 1, Msg: "body is never closed"}
		}
		if n.kind == nodeDelimiter {
			return strings.TrimRight(strings.Join(lines, "\n"), "\n"), nil
		}
		lines = append(lines, n.raw)
	}
}
