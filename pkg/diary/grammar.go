package diary

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// The canonical grammar. Parser and serializer both read from here so the two
// stay in lockstep.
const (
	dateLayout     = "2006-01-02"
	dayLayout      = "(" + dateLayout + ") Monday"
	rangeSeparator = " to "
	underlineRune  = "="
	bodyDelimiter  = "--"
	tagSeparator   = ":"
	bodyIntroducer = ":"
)

var canonicalKeywords = map[Type]string{
	Event:     "EVENT",
	Did:       "DID",
	Didnt:     "DIDN'T",
	Note:      "NOTE",
	Cancelled: "CANCELLED",
	Postponed: "POSTPONED",
}

// synonyms maps historical spellings onto canonical types.
var synonyms = map[string]Type{
	"CANCEL":   Cancelled,
	"CANCELED": Cancelled,
	"DIDNT":    Didnt,
	"POSTPONE": Postponed,
}

var keywordTypes = func() map[string]Type {
	m := make(map[string]Type, len(canonicalKeywords)+len(synonyms))
	for t, kw := range canonicalKeywords {
		m[kw] = t
	}
	for kw, t := range synonyms {
		m[kw] = t
	}
	return m
}()

var (
	headerPattern = regexp.MustCompile(
		`^\((\d{4}-\d{2}-\d{2})\) ([A-Za-z]+)(?:` + rangeSeparator + `\((\d{4}-\d{2}-\d{2})\) ([A-Za-z]+))?$`)
	underlinePattern = regexp.MustCompile(`^` + underlineRune + `+$`)
	delimiterPattern = regexp.MustCompile(`^-{2,}$`)
	tagPattern       = regexp.MustCompile(`^[^\s` + tagSeparator + `]+$`)
	itemPattern      = regexp.MustCompile(`^([A-Z][A-Z']*)((?:` + tagSeparator + `[^\s:]+)*)` + tagSeparator + `?(?:\s+(.*))?$`)
)

// LookupType resolves a keyword, canonical or synonym, to its Type.
func LookupType(word string) (Type, bool) {
	t, ok := keywordTypes[word]
	return t, ok
}

// Keywords returns every spelling the parser accepts, canonical first.
func Keywords() []string {
	out := make([]string, 0, len(keywordTypes))
	for _, t := range Types {
		out = append(out, canonicalKeywords[t])
	}
	for kw := range synonyms {
		out = append(out, kw)
	}
	return out
}

// String renders the item in canonical form, without a trailing newline.
func (s Stuff) String() string {
	var b strings.Builder
	b.WriteString(s.Type.Keyword())
	for _, tag := range s.Tags {
		b.WriteString(tagSeparator)
		b.WriteString(tag)
	}
	b.WriteString(" ")
	b.WriteString(strings.TrimSpace(s.Title))
	if s.Body != "" {
		b.WriteString(bodyIntroducer + "\n" + bodyDelimiter + "\n")
		b.WriteString(strings.TrimRight(s.Body, "\n"))
		b.WriteString("\n" + bodyDelimiter)
	}
	return b.String()
}

// String renders the period in canonical form, ending with a newline.
func (p Period) String() string {
	header := p.Header()
	parts := []string{header, strings.Repeat(underlineRune, len(header))}
	for _, s := range p.Stuff {
		parts = append(parts, s.String())
	}
	parts = append(parts, "")
	return strings.Join(parts, "\n")
}

// Serialize renders a whole diary; periods are separated by one blank line.
func Serialize(periods []Period) string {
	parts := make([]string, len(periods))
	for i, p := range periods {
		parts[i] = p.String()
	}
	return strings.Join(parts, "\n")
}

func formatDay(d civil.Date) string {
	return d.In(time.UTC).Format(dayLayout)
}
