package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/mklimuk/diary-pilot/pkg/db"
	"github.com/mklimuk/diary-pilot/pkg/diary"
)

// DefaultTargetDays is how far past today the diary is extended with empty days.
const DefaultTargetDays = 6

// remoteWindowDays widens the remote lookup before the first diary day.
const remoteWindowDays = 3

// IngestOptions control a single ingest run.
type IngestOptions struct {
	DiaryPath string
	// Target is the last day the rewritten diary must reach. Nil means
	// today plus DefaultTargetDays.
	Target *civil.Date
	// Trim drops periods ending on or before the previous Sunday.
	Trim bool
	// MaxClockSkew enables the remote clock check when positive.
	MaxClockSkew time.Duration
	// LockPath, when set, is held with an exclusive file lock for the run.
	// It must live outside the diary repository.
	LockPath string
}

// IngestReport summarises an ingest run.
type IngestReport struct {
	Created int
	Updated int
	Empty   int
	Added   int // empty days appended
	Trimmed int
}

// Ingester pushes the local diary to the archive.
type Ingester struct {
	archive   Archive
	ledger    Ledger
	dumper    Dumper
	committer Committer
	log       *zap.Logger
	now       func() time.Time
}

// NewIngester creates an Ingester. ledger, dumper and committer are optional.
func NewIngester(a Archive, ledger Ledger, dumper Dumper, committer Committer, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		archive:   a,
		ledger:    ledger,
		dumper:    dumper,
		committer: committer,
		log:       logger.Named("ingest"),
		now:       time.Now,
	}
}

// Ingest publishes every period of the diary, then rewrites the file extended
// to the target day and, optionally, trimmed to the current week.
func (g *Ingester) Ingest(ctx context.Context, opts IngestOptions) (IngestReport, error) {
	var report IngestReport

	if opts.LockPath != "" {
		lock := flock.New(opts.LockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return report, fmt.Errorf("failed to lock %s: %w", opts.LockPath, err)
		}
		if !locked {
			return report, fmt.Errorf("another ingest holds %s", opts.LockPath)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				g.log.Warn("failed to release ingest lock", zap.Error(err))
			}
		}()
	}

	text, err := os.ReadFile(opts.DiaryPath)
	if err != nil {
		return report, fmt.Errorf("failed to read diary: %w", err)
	}
	periods, err := diary.Parse(string(text))
	if err != nil {
		return report, fmt.Errorf("failed to parse %s: %w", opts.DiaryPath, err)
	}
	if len(periods) == 0 {
		return report, fmt.Errorf("diary %s has no periods", opts.DiaryPath)
	}
	if err := CheckContinuity(periods); err != nil {
		return report, err
	}

	if opts.MaxClockSkew > 0 {
		if err := g.checkClock(ctx, opts.MaxClockSkew); err != nil {
			return report, err
		}
	}

	uploaded, err := g.remoteIDs(ctx, periods[0].Start.AddDays(-remoteWindowDays))
	if err != nil {
		return report, err
	}

	for _, p := range periods {
		if g.dumper != nil {
			if _, err := g.dumper.Write(p, false); err != nil {
				return report, err
			}
		}
		if p.IsEmpty() {
			g.log.Info("skipping empty period", zap.String("period", p.HumanDate()))
			report.Empty++
			continue
		}
		if id, ok := uploaded[p.Start]; ok {
			g.log.Info("updating", zap.String("period", p.HumanDate()), zap.String("id", id))
			p.RemoteID = id
			if err := g.archive.Update(ctx, p); err != nil {
				return report, err
			}
			report.Updated++
		} else {
			g.log.Info("uploading", zap.String("period", p.HumanDate()))
			if err := g.archive.Add(ctx, p); err != nil {
				return report, err
			}
			report.Created++
		}
		if g.ledger != nil {
			if err := g.ledger.RecordPeriod(db.PeriodRecord{
				Day:       p.Start,
				RemoteID:  p.RemoteID,
				Direction: db.DirectionPush,
			}); err != nil {
				return report, err
			}
		}
	}

	today := civil.DateOf(g.now())
	target := today.AddDays(DefaultTargetDays)
	if opts.Target != nil {
		target = *opts.Target
	}
	before := len(periods)
	periods = Extend(periods, target)
	report.Added = len(periods) - before
	last := periods[len(periods)-1].Last()

	if opts.Trim {
		before = len(periods)
		periods = Trim(periods, diary.PreviousSunday(today))
		report.Trimmed = before - len(periods)
	}

	if err := os.WriteFile(opts.DiaryPath, []byte(diary.Serialize(periods)), 0644); err != nil {
		return report, fmt.Errorf("failed to write diary: %w", err)
	}
	if g.committer != nil {
		if err := g.committer.Sync(fmt.Sprintf("Ingest up to %s", last)); err != nil {
			return report, err
		}
	}
	return report, nil
}

// CheckContinuity requires every period to start the day after the previous
// one ends.
func CheckContinuity(periods []diary.Period) error {
	for i := 1; i < len(periods); i++ {
		prev, next := periods[i-1], periods[i]
		if days := next.Start.DaysSince(prev.Last()); days != 1 {
			return &ContinuityError{From: prev, To: next, Days: days}
		}
	}
	return nil
}

// Extend appends empty days until the diary reaches target.
func Extend(periods []diary.Period, target civil.Date) []diary.Period {
	if len(periods) == 0 {
		return periods
	}
	current := periods[len(periods)-1].Last()
	for target.After(current) {
		current = current.AddDays(1)
		periods = append(periods, diary.Day(current))
	}
	return periods
}

// Trim drops the periods that end on or before cutoff.
func Trim(periods []diary.Period, cutoff civil.Date) []diary.Period {
	kept := periods[:0:0]
	for _, p := range periods {
		if p.Last().After(cutoff) {
			kept = append(kept, p)
		}
	}
	return kept
}

func (g *Ingester) checkClock(ctx context.Context, maxSkew time.Duration) error {
	remote, err := g.archive.RemoteTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to read remote time: %w", err)
	}
	local := g.now()
	if local.Sub(remote).Abs() > maxSkew {
		return &ClockError{Remote: remote, Local: local}
	}
	return nil
}

// remoteIDs maps the start day of every archive entry back to earliest onto
// its remote id. Any entry that cannot be resolved aborts.
func (g *Ingester) remoteIDs(ctx context.Context, earliest civil.Date) (map[civil.Date]string, error) {
	ids := map[civil.Date]string{}
	walker := NewWalker(g.archive.Listing(""), earliest)
	var previous *civil.Date
	for {
		item, err := walker.Next(ctx, previous)
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk listing: %w", err)
		}
		if item.Err != nil {
			return nil, fmt.Errorf("failed to resolve %s (%q): %w", item.Entry.DetailURL, item.Entry.Label, item.Err)
		}
		ids[item.Period.Start] = item.Entry.RemoteID
		start := item.Period.Start
		previous = &start
	}
}
