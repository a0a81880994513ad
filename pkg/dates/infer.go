// Package dates resolves the loosely written date labels found in the archive
// into calendar dates.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Tuned lookback windows, in days.
const (
	SingleLookbackDays     = 5
	RangeStartLookbackDays = 25
	DayNameLookbackDays    = 4
)

var canonicalPattern = regexp.MustCompile(`^\((\d{4}-\d{2}-\d{2})\) ([A-Za-z]+)$`)

var weekdayAliases = map[string]time.Weekday{
	"tues":  time.Tuesday,
	"thur":  time.Thursday,
	"thurs": time.Thursday,
	"weds":  time.Wednesday,
}

var monthAliases = map[string]time.Month{
	"sept": time.September,
}

var rangePattern = func() *regexp.Regexp {
	var days, months []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		days = append(days, d.String(), d.String()[:3])
	}
	for alias := range weekdayAliases {
		days = append(days, alias)
	}
	for m := time.January; m <= time.December; m++ {
		months = append(months, m.String(), m.String()[:3])
	}
	for alias := range monthAliases {
		months = append(months, alias)
	}
	mention := func(p string) string {
		return `(?:(?P<` + p + `day>` + strings.Join(days, "|") + `)\s*)?` +
			`(?P<` + p + `num>\d{1,2})(?:st|nd|rd|th)?` +
			`(?:\s*(?P<` + p + `month>` + strings.Join(months, "|") + `))?` +
			`(?:\s*(?P<` + p + `year>\d{4}))?`
	}
	return regexp.MustCompile(`(?i)^` + mention("s") + `(?:\s*(?:-|\bto\b)\s*` + mention("e") + `)?$`)
}()

// Mention is one date as written in a label, e.g. "Saturday 5th May".
// Empty fields were not present in the text.
type Mention struct {
	DayName string
	Day     string
	Month   string
	Year    string
}

func (m Mention) complete() bool {
	return m.Day != "" && m.Month != "" && m.Year != ""
}

// InferDate resolves label text to a start date and, for ranges, an end date.
// previous is the most recently resolved date of the walk and may be nil for
// the first label.
func InferDate(text string, previous *civil.Date) (civil.Date, *civil.Date, error) {
	text = strings.TrimSpace(text)

	if m := canonicalPattern.FindStringSubmatch(text); m != nil {
		d, err := civil.ParseDate(m[1])
		if err != nil {
			return civil.Date{}, nil, &FormatError{Text: text}
		}
		if actual := weekdayOf(d).String(); actual != m[2] {
			return civil.Date{}, nil, &ValidationError{
				Msg: fmt.Sprintf("%s was a %s, got: %s", d.In(time.UTC).Format("02 Jan 06"), actual, text),
			}
		}
		return d, nil, nil
	}

	m := rangePattern.FindStringSubmatch(text)
	if m == nil {
		if previous != nil {
			if day, ok := parseWeekday(text); ok {
				for i := 1; i <= DayNameLookbackDays; i++ {
					candidate := previous.AddDays(-i)
					if weekdayOf(candidate) == day {
						return candidate, nil, nil
					}
				}
			}
		}
		return civil.Date{}, nil, &FormatError{Text: text}
	}

	start, end := mentions(m)
	if previous == nil {
		return civil.Date{}, nil, &FormatError{Text: text, NeedsAnchor: true}
	}

	if end == nil {
		d, err := Lookback(*previous, text, start, SingleLookbackDays)
		if err != nil {
			return civil.Date{}, nil, err
		}
		return d, nil, nil
	}

	endDate, err := Lookback(*previous, text, *end, SingleLookbackDays)
	if err != nil {
		return civil.Date{}, nil, err
	}
	var startDate civil.Date
	if start.complete() {
		startDate, err = exact(text, start)
	} else {
		startDate, err = Lookback(endDate, text, start, RangeStartLookbackDays)
	}
	if err != nil {
		return civil.Date{}, nil, err
	}
	return startDate, &endDate, nil
}

func mentions(m []string) (Mention, *Mention) {
	group := func(name string) string {
		return m[rangePattern.SubexpIndex(name)]
	}
	start := Mention{DayName: group("sday"), Day: group("snum"), Month: group("smonth"), Year: group("syear")}
	if group("enum") == "" {
		return start, nil
	}
	return start, &Mention{DayName: group("eday"), Day: group("enum"), Month: group("emonth"), Year: group("eyear")}
}

// Lookback walks backwards from start, one day at a time for at most maxDays
// days (start itself included), and returns the first day whose day of month
// matches. The weekday, month and year of the mention are then checked against
// that day.
func Lookback(start civil.Date, text string, m Mention, maxDays int) (civil.Date, error) {
	day, err := strconv.Atoi(m.Day)
	if err != nil {
		return civil.Date{}, &FormatError{Text: text}
	}
	possible := start
	for i := 0; i < maxDays; i++ {
		possible = start.AddDays(-i)
		if possible.Day != day {
			continue
		}
		if err := validate(possible, m); err != nil {
			return civil.Date{}, err
		}
		return possible, nil
	}
	return civil.Date{}, &LookbackError{Possible: possible, Text: text}
}

func exact(text string, m Mention) (civil.Date, error) {
	day, _ := strconv.Atoi(m.Day)
	year, _ := strconv.Atoi(m.Year)
	month, ok := parseMonth(m.Month)
	if !ok {
		return civil.Date{}, &FormatError{Text: text}
	}
	d := civil.Date{Year: year, Month: month, Day: day}
	if !d.IsValid() {
		return civil.Date{}, &FormatError{Text: text}
	}
	if err := validate(d, m); err != nil {
		return civil.Date{}, err
	}
	return d, nil
}

func validate(d civil.Date, m Mention) error {
	if m.DayName != "" {
		given, ok := parseWeekday(m.DayName)
		if actual := weekdayOf(d); !ok || given != actual {
			return &ValidationError{Msg: fmt.Sprintf("%s was a %s, but entry had %s", d, actual, m.DayName)}
		}
	}
	if m.Month != "" {
		given, ok := parseMonth(m.Month)
		if !ok || given != d.Month {
			return &ValidationError{Msg: fmt.Sprintf("%s was in %s, but entry had %s", d, d.Month, m.Month)}
		}
	}
	if m.Year != "" {
		if m.Year != strconv.Itoa(d.Year) {
			return &ValidationError{Msg: fmt.Sprintf("%s was in %d, but entry had %s", d, d.Year, m.Year)}
		}
	}
	return nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	lower := strings.ToLower(name)
	if d, ok := weekdayAliases[lower]; ok {
		return d, true
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if lower == full || lower == full[:3] {
			return d, true
		}
	}
	return 0, false
}

func parseMonth(name string) (time.Month, bool) {
	lower := strings.ToLower(name)
	if m, ok := monthAliases[lower]; ok {
		return m, true
	}
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if lower == full || lower == full[:3] {
			return m, true
		}
	}
	return 0, false
}

func weekdayOf(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}
