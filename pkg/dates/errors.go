package dates

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// FormatError means the label could not be read as a date at all.
type FormatError struct {
	Text string
	// NeedsAnchor is set when the label was readable but only makes sense
	// relative to a previous date, and none was given.
	NeedsAnchor bool
}

func (e *FormatError) Error() string {
	if e.NeedsAnchor {
		return fmt.Sprintf("Need previous date for '%s'", e.Text)
	}
	return fmt.Sprintf("Bad format: '%s'", e.Text)
}

// ValidationError means the label names a weekday, month or year that
// disagrees with the calendar.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// LookbackError means no day within the lookback window matched the label.
type LookbackError struct {
	Possible civil.Date // furthest day reached
	Text     string
}

func (e *LookbackError) Error() string {
	return fmt.Sprintf("Looked back to %s, couldn't match %s", e.Possible, e.Text)
}
