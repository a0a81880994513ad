package reconcile

import (
	"fmt"
	"time"

	"github.com/mklimuk/diary-pilot/pkg/diary"
)

// GapError is an exported entry whose dates do not fit its neighbours.
type GapError struct {
	Period diary.Period
	// Days is modified minus last day for a modified gap, or previous minus
	// last day for a previous gap.
	Days     int
	Previous bool // set for a gap to the previously accepted entry
}

func (e *GapError) Error() string {
	if e.Previous {
		return fmt.Sprintf("%d days to previous!", e.Days)
	}
	return fmt.Sprintf("%d days to modified, gap too big!", e.Days)
}

// ContinuityError is a hole or overlap between consecutive diary periods.
type ContinuityError struct {
	From, To diary.Period
	Days     int
}

func (e *ContinuityError) Error() string {
	return fmt.Sprintf("%s to %s was %d days, not 1!", e.From.HumanDate(), e.To.HumanDate(), e.Days)
}

// ClockError means the archive host's clock has drifted too far from ours.
type ClockError struct {
	Remote, Local time.Time
}

func (e *ClockError) Error() string {
	const layout = "2006-01-02 15:04:05"
	skew := e.Local.Sub(e.Remote).Abs().Round(time.Second)
	return fmt.Sprintf("remote time is %s but local time is %s (%s), please fix!",
		e.Remote.Format(layout), e.Local.Format(layout), skew)
}
