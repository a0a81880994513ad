package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/diary-pilot/pkg/archive"
	"github.com/mklimuk/diary-pilot/pkg/db"
	"github.com/mklimuk/diary-pilot/pkg/diary"
	"github.com/mklimuk/diary-pilot/pkg/dump"
)

func writeDiary(t *testing.T, periods ...diary.Period) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diary.txt")
	require.NoError(t, os.WriteFile(path, []byte(diary.Serialize(periods)), 0644))
	return path
}

func readDiary(t *testing.T, path string) []diary.Period {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	periods, err := diary.Parse(string(data))
	require.NoError(t, err)
	return periods
}

func ingestWeek(t *testing.T) string {
	return writeDiary(t,
		diary.Period{Start: date(2023, 1, 16), Stuff: []diary.Stuff{diary.NewStuff(diary.Did, "monday things", "")}},
		diary.Day(date(2023, 1, 17)),
		diary.Period{Start: date(2023, 1, 18), Stuff: []diary.Stuff{diary.NewStuff(diary.Event, "midweek", "")}},
	)
}

func remoteWeek() *fakeArchive {
	return &fakeArchive{
		entries: []archive.Entry{
			entry("900", "(2023-01-16) Monday", date(2023, 1, 16)),
			entry("899", "(2023-01-14) Saturday", date(2023, 1, 14)),
			entry("898", "(2023-01-12) Thursday", date(2023, 1, 12)),
		},
		remoteTime: time.Date(2023, 1, 18, 10, 0, 2, 0, time.Local),
	}
}

func newIngester(a Archive, ledger Ledger, dumper Dumper, committer Committer, now time.Time) *Ingester {
	g := NewIngester(a, ledger, dumper, committer, nil)
	g.now = func() time.Time { return now }
	return g
}

func TestIngest(t *testing.T) {
	path := ingestWeek(t)
	a := remoteWeek()
	ledger := newLedger(t)
	root := t.TempDir()
	committer := &fakeCommitter{}
	g := newIngester(a, ledger, dump.NewStore(root, nil), committer, time.Date(2023, 1, 18, 10, 0, 0, 0, time.Local))

	report, err := g.Ingest(context.Background(), IngestOptions{DiaryPath: path, Trim: true, MaxClockSkew: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, IngestReport{Created: 1, Updated: 1, Empty: 1, Added: 6}, report)

	require.Len(t, a.updated, 1)
	assert.Equal(t, "900", a.updated[0].RemoteID)
	assert.Equal(t, date(2023, 1, 16), a.updated[0].Start)
	require.Len(t, a.added, 1)
	assert.Equal(t, date(2023, 1, 18), a.added[0].Start)
	assert.Equal(t, []string{"time", "listing", "update 900", "add"}, a.calls)

	periods := readDiary(t, path)
	require.Len(t, periods, 9)
	assert.Equal(t, date(2023, 1, 16), periods[0].Start)
	assert.Equal(t, date(2023, 1, 24), periods[8].Start)
	assert.True(t, periods[8].IsEmpty())

	// every period is dumped, empty ones included
	for _, day := range []string{"16", "17", "18"} {
		_, err := os.Stat(filepath.Join(root, "2023", "01", day+".txt"))
		assert.NoError(t, err, day)
	}

	rec, err := ledger.GetPeriodByDay(date(2023, 1, 16))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "900", rec.RemoteID)
	assert.Equal(t, db.DirectionPush, rec.Direction)

	assert.Equal(t, []string{"Ingest up to 2023-01-24"}, committer.messages)
}

func TestIngestTrimAndTarget(t *testing.T) {
	path := ingestWeek(t)
	a := remoteWeek()
	// Tuesday: the previous Sunday is the 22nd
	g := newIngester(a, nil, nil, nil, time.Date(2023, 1, 24, 8, 0, 0, 0, time.Local))

	report, err := g.Ingest(context.Background(), IngestOptions{DiaryPath: path, Target: ptr(date(2023, 1, 25)), Trim: true})
	require.NoError(t, err)
	assert.Equal(t, 7, report.Added)
	assert.Equal(t, 7, report.Trimmed)
	assert.NotContains(t, a.calls, "time")

	periods := readDiary(t, path)
	require.Len(t, periods, 3)
	assert.Equal(t, date(2023, 1, 23), periods[0].Start)
	assert.Equal(t, date(2023, 1, 25), periods[2].Start)
}

func TestIngestNoTrim(t *testing.T) {
	path := ingestWeek(t)
	g := newIngester(remoteWeek(), nil, nil, nil, time.Date(2023, 1, 24, 8, 0, 0, 0, time.Local))

	_, err := g.Ingest(context.Background(), IngestOptions{DiaryPath: path, Target: ptr(date(2023, 1, 18))})
	require.NoError(t, err)
	assert.Len(t, readDiary(t, path), 3)
}

func TestIngestContinuityBeforeNetwork(t *testing.T) {
	path := writeDiary(t,
		diary.Period{Start: date(2023, 1, 16), Stuff: []diary.Stuff{diary.NewStuff(diary.Did, "a", "")}},
		diary.Period{Start: date(2023, 1, 18), Stuff: []diary.Stuff{diary.NewStuff(diary.Did, "b", "")}},
	)
	a := remoteWeek()
	g := newIngester(a, nil, nil, nil, time.Date(2023, 1, 18, 10, 0, 0, 0, time.Local))

	_, err := g.Ingest(context.Background(), IngestOptions{DiaryPath: path, MaxClockSkew: time.Second})
	var cerr *ContinuityError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 2, cerr.Days)
	assert.EqualError(t, err, "Mon 16 Jan to Wed 18 Jan was 2 days, not 1!")
	assert.Empty(t, a.calls)
}

func TestCheckContinuity(t *testing.T) {
	rng := diary.Period{Start: date(2023, 1, 14), End: ptr(date(2023, 1, 15))}
	assert.NoError(t, CheckContinuity([]diary.Period{rng, diary.Day(date(2023, 1, 16))}))

	err := CheckContinuity([]diary.Period{rng, diary.Day(date(2023, 1, 15))})
	assert.EqualError(t, err, "Sat 14 Jan - Sun 15 Jan to Sun 15 Jan was 0 days, not 1!")

	assert.NoError(t, CheckContinuity(nil))
}

func TestIngestClockSkew(t *testing.T) {
	path := ingestWeek(t)
	a := remoteWeek()
	g := newIngester(a, nil, nil, nil, time.Date(2023, 1, 18, 10, 1, 0, 0, time.Local))

	_, err := g.Ingest(context.Background(), IngestOptions{DiaryPath: path, MaxClockSkew: 5 * time.Second})
	var clock *ClockError
	require.True(t, errors.As(err, &clock))
	assert.Equal(t, []string{"time"}, a.calls)
}

func TestIngestEmptyDiary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diary.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0644))
	_, err := newIngester(remoteWeek(), nil, nil, nil, time.Now()).
		Ingest(context.Background(), IngestOptions{DiaryPath: path})
	assert.ErrorContains(t, err, "has no periods")
}

func TestIngestUnresolvableRemoteAborts(t *testing.T) {
	path := ingestWeek(t)
	a := remoteWeek()
	a.entries[1].Label = "whenever"
	g := newIngester(a, nil, nil, nil, time.Date(2023, 1, 18, 10, 0, 0, 0, time.Local))

	_, err := g.Ingest(context.Background(), IngestOptions{DiaryPath: path})
	require.Error(t, err)
	assert.NotContains(t, a.calls, "add")
}

func TestExtendAndTrim(t *testing.T) {
	periods := Extend([]diary.Period{diary.Day(date(2023, 1, 16))}, date(2023, 1, 19))
	require.Len(t, periods, 4)
	assert.Equal(t, date(2023, 1, 19), periods[3].Start)

	assert.Len(t, Extend(periods, date(2023, 1, 10)), 4)

	rng := diary.Period{Start: date(2023, 1, 14), End: ptr(date(2023, 1, 16))}
	kept := Trim([]diary.Period{diary.Day(date(2023, 1, 13)), rng, diary.Day(date(2023, 1, 17))}, date(2023, 1, 15))
	require.Len(t, kept, 2)
	assert.Equal(t, date(2023, 1, 14), kept[0].Start, "a range ending after the cutoff is kept")
}

func TestIngestLocked(t *testing.T) {
	path := ingestWeek(t)
	lockPath := filepath.Join(t.TempDir(), "ingest.lock")
	held := flock.New(lockPath)
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	a := remoteWeek()
	g := newIngester(a, nil, nil, nil, time.Date(2023, 1, 18, 10, 0, 0, 0, time.Local))
	_, err = g.Ingest(context.Background(), IngestOptions{DiaryPath: path, LockPath: lockPath})
	assert.ErrorContains(t, err, "another ingest holds")
	assert.Empty(t, a.calls)

	require.NoError(t, held.Unlock())
	_, err = g.Ingest(context.Background(), IngestOptions{DiaryPath: path, LockPath: lockPath})
	assert.NoError(t, err)
}
