package diary

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Type classifies a single diary item.
type Type int

const (
	Event Type = iota
	Did
	Didnt
	Note
	Cancelled
	Postponed
)

// Types lists every Type in keyword order.
var Types = []Type{Event, Did, Didnt, Note, Cancelled, Postponed}

// String returns the lower-case name of the type (event, did, ...).
func (t Type) String() string {
	switch t {
	case Event:
		return "event"
	case Did:
		return "did"
	case Didnt:
		return "didnt"
	case Note:
		return "note"
	case Cancelled:
		return "cancelled"
	case Postponed:
		return "postponed"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Keyword returns the canonical upper-case keyword written to the diary.
func (t Type) Keyword() string {
	return canonicalKeywords[t]
}

// Stuff is one typed item recorded within a Period.
type Stuff struct {
	Type  Type
	Title string
	Body  string   // empty means no body
	Tags  []string // nil when the item carries no tags
}

// NewStuff builds a Stuff with the title trimmed and trailing newlines
// stripped from the body. Tags that are empty or contain whitespace or the
// tag separator cannot be written back and are dropped.
func NewStuff(t Type, title, body string, tags ...string) Stuff {
	s := Stuff{
		Type:  t,
		Title: strings.TrimSpace(title),
		Body:  strings.TrimRight(body, "\n"),
	}
	for _, tag := range tags {
		if ValidTag(tag) {
			s.Tags = append(s.Tags, tag)
		}
	}
	return s
}

// ValidTag reports whether tag survives a serialize and parse round trip.
func ValidTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// Period is one diary entry covering a single day or an inclusive range of days.
type Period struct {
	Start civil.Date
	End   *civil.Date
	Stuff []Stuff

	// Archive linkage, only used while reconciling with the remote archive.
	RemoteID  string
	StartURL  string      // listing page the entry was found on
	StartDate *civil.Date // anchor in effect when the entry was resolved
	Modified  *civil.Date
}

// NewPeriod returns a Period for start..end. An end equal to start is dropped;
// an end before start is an error.
func NewPeriod(start civil.Date, end *civil.Date, stuff ...Stuff) (Period, error) {
	if !start.IsValid() {
		return Period{}, fmt.Errorf("invalid start date %v", start)
	}
	p := Period{Start: start, Stuff: stuff}
	if end != nil {
		if end.Before(start) {
			return Period{}, fmt.Errorf("period end %s is before start %s", end, start)
		}
		if *end != start {
			e := *end
			p.End = &e
		}
	}
	return p, nil
}

// Day returns an empty single-day Period.
func Day(d civil.Date) Period {
	return Period{Start: d}
}

// Date returns the day of a single-day period. Calling it on a range is a bug.
func (p Period) Date() civil.Date {
	if p.End != nil {
		panic(fmt.Sprintf("diary: Date called on range %s", p.Header()))
	}
	return p.Start
}

// Last returns the final day covered by the period.
func (p Period) Last() civil.Date {
	if p.End != nil {
		return *p.End
	}
	return p.Start
}

// Header returns the canonical header line, e.g. "(2023-01-15) Sunday".
func (p Period) Header() string {
	h := formatDay(p.Start)
	if p.End != nil {
		h += rangeSeparator + formatDay(*p.End)
	}
	return h
}

// HumanDate is a short label for log output, e.g. "Sun 15 Jan".
func (p Period) HumanDate() string {
	h := humanDay(p.Start)
	if p.End != nil {
		h += " - " + humanDay(*p.End)
	}
	return h
}

// Summary renders the items without the header, as posted to the archive.
func (p Period) Summary() string {
	lines := make([]string, 0, len(p.Stuff))
	for _, s := range p.Stuff {
		lines = append(lines, s.String())
	}
	return strings.Join(lines, "\n")
}

// IsEmpty reports whether the period has no content worth publishing.
func (p Period) IsEmpty() bool {
	return strings.TrimSpace(p.Summary()) == ""
}

func humanDay(d civil.Date) string {
	return d.In(time.UTC).Format("Mon 02 Jan")
}

// PreviousSunday returns the most recent Sunday strictly before today.
func PreviousSunday(today civil.Date) civil.Date {
	current := today.AddDays(-1)
	for Weekday(current) != time.Sunday {
		current = current.AddDays(-1)
	}
	return current
}

// Weekday returns the day of the week d falls on.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}
