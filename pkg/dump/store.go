// Package dump keeps one canonical text file per diary period.
package dump

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/mklimuk/diary-pilot/pkg/diary"
)

// Status describes what Write found on disk.
type Status string

const (
	StatusNew       Status = "ADD"
	StatusUnchanged Status = "EXISTS"
	StatusChanged   Status = "UPDATE"
)

// Result of writing a single period.
type Result struct {
	Path   string
	Status Status
	Diff   string // -existing +new, only for StatusChanged
}

// Store writes periods under Root as {year}/{month}/{day}.txt.
type Store struct {
	Root string
	log  *zap.Logger
}

// NewStore creates a Store. A nil logger disables logging.
func NewStore(root string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{Root: root, log: logger.Named("dump")}
}

// Path returns the file a period starting on the given day is written to.
func (s *Store) Path(p diary.Period) string {
	return filepath.Join(s.Root,
		fmt.Sprintf("%d", p.Start.Year),
		fmt.Sprintf("%02d", int(p.Start.Month)),
		fmt.Sprintf("%02d.txt", p.Start.Day))
}

// Write compares the canonical text of p with the file on disk and, unless
// dryRun is set, writes it.
func (s *Store) Write(p diary.Period, dryRun bool) (Result, error) {
	path := s.Path(p)
	content := p.String()
	res := Result{Path: path, Status: StatusNew}

	existing, err := os.ReadFile(path)
	switch {
	case err == nil && string(existing) == content:
		res.Status = StatusUnchanged
	case err == nil:
		res.Status = StatusChanged
		res.Diff = LineDiff(string(existing), content)
	case !errors.Is(err, fs.ErrNotExist):
		return res, fmt.Errorf("failed to read %s: %w", path, err)
	}
	s.log.Info(string(res.Status), zap.String("path", path), zap.Bool("dry_run", dryRun))
	if res.Diff != "" {
		s.log.Info("diff", zap.String("path", path), zap.String("diff", res.Diff))
	}

	if dryRun {
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return res, fmt.Errorf("failed to create dump directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return res, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return res, nil
}

// LineDiff renders a line based diff of before and after, one line per output
// line prefixed with "-", "+" or " ".
func LineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}
