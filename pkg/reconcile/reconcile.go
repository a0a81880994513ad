// Package reconcile keeps the local diary and the remote archive in step:
// Export pulls archive entries into per-day files, Ingest pushes the diary up.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mklimuk/diary-pilot/pkg/archive"
	"github.com/mklimuk/diary-pilot/pkg/dates"
	"github.com/mklimuk/diary-pilot/pkg/db"
	"github.com/mklimuk/diary-pilot/pkg/diary"
	"github.com/mklimuk/diary-pilot/pkg/dump"
)

// Continuity limits applied while exporting.
const (
	// MaxModifiedGapDays is how far an entry's last day may lie after the day
	// it was last modified.
	MaxModifiedGapDays = 18
	MinPreviousGapDays = 1
	MaxPreviousGapDays = 4
)

// Archive is the remote side, implemented by *archive.Client.
type Archive interface {
	Listing(startURL string) archive.Iterator
	Detail(ctx context.Context, id string) (archive.Detail, error)
	Add(ctx context.Context, p diary.Period) error
	Update(ctx context.Context, p diary.Period) error
	RemoteTime(ctx context.Context) (time.Time, error)
}

// Ledger remembers which periods have been synced, implemented by *db.Repository.
type Ledger interface {
	RecordPeriod(rec db.PeriodRecord) error
	GetPeriodByRemoteID(remoteID string) (*db.PeriodRecord, error)
}

// Dumper writes per-day files, implemented by *dump.Store.
type Dumper interface {
	Write(p diary.Period, dryRun bool) (dump.Result, error)
}

// Committer versions the diary file, implemented by *sync.GitManager.
type Committer interface {
	Sync(message string) error
}

// Decision is what an ErrorHandler wants done with a failing record.
type Decision int

const (
	// Skip drops the record and carries on with the next one.
	Skip Decision = iota
	// Abort stops the walk and returns the error.
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "skip"
}

// ErrorHandler is consulted for every record that cannot be resolved,
// breaks continuity or cannot be normalized.
type ErrorHandler func(err error, url string, modified time.Time) Decision

// LoggingHandler logs the failure and aborts on continuity problems and on
// labels the lookback could not place, which usually mean the cursor is off.
// Anything else is skipped.
func LoggingHandler(logger *zap.Logger) ErrorHandler {
	return func(err error, url string, modified time.Time) Decision {
		decision := Skip
		var gap *GapError
		var lookback *dates.LookbackError
		if errors.As(err, &gap) || errors.As(err, &lookback) {
			decision = Abort
		}
		logger.Warn("record failed",
			zap.String("url", url),
			zap.String("modified", modified.Format("Mon 02 Jan 06")),
			zap.String("error_type", fmt.Sprintf("%T", err)),
			zap.Error(err),
			zap.Stringer("decision", decision),
		)
		return decision
	}
}
