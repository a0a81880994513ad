package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mklimuk/diary-pilot/pkg/archive"
	"github.com/mklimuk/diary-pilot/pkg/db"
	"github.com/mklimuk/diary-pilot/pkg/dump"
	"github.com/mklimuk/diary-pilot/pkg/reconcile"
	"github.com/mklimuk/diary-pilot/pkg/sync"
)

var exportFlags struct {
	startURL  string
	startDate string
	earliest  string
	dump      string
	dryRun    bool
	quiet     bool
}

var ingestFlags struct {
	noTrim bool
	target string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Pull archive entries into per-day files",
	Long: `Walks the archive listing newest first, resolves every entry title to a
date, normalizes its text and writes it to the dump directory.

An interrupted export can be resumed with the --start-url and --start-date
printed for the last accepted entry.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Push the local diary to the archive",
	Long: `Checks the diary for gaps, creates or updates one archive entry per
non-empty period, then rewrites the diary extended to the coming week.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := reconcile.ExportOptions{
		StartURL: exportFlags.startURL,
		DryRun:   exportFlags.dryRun,
		Quiet:    exportFlags.quiet,
	}
	if exportFlags.startDate != "" {
		d, err := parseDateFlag("start-date", exportFlags.startDate)
		if err != nil {
			return err
		}
		opts.StartDate = &d
	}
	if exportFlags.earliest != "" {
		d, err := parseDateFlag("earliest", exportFlags.earliest)
		if err != nil {
			return err
		}
		opts.Earliest = d
	}

	dumpDir := cfg.Dump
	if exportFlags.dump != "" {
		dumpDir = exportFlags.dump
	}
	if dumpDir == "" {
		return fmt.Errorf("no dump directory: set dump in the config or pass --dump")
	}

	repo, closeDB, err := openLedger()
	if err != nil {
		return err
	}
	defer closeDB()

	exporter := reconcile.NewExporter(newArchive(), repo, dump.NewStore(dumpDir, logger), nil, logger)
	report, err := exporter.Export(ctx, opts)
	fmt.Fprintln(cmd.OutOrStdout(), exportSummary(report))
	if report.ResumeURL != "" {
		resume := "--start-url " + report.ResumeURL
		if report.ResumeDate != nil {
			resume += " --start-date " + report.ResumeDate.String()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "resume with: %s\n", resume)
	}
	return err
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := reconcile.IngestOptions{
		DiaryPath:    cfg.DiaryPath,
		Trim:         !ingestFlags.noTrim,
		MaxClockSkew: cfg.ClockSkew,
		LockPath:     filepath.Join(filepath.Dir(cfg.DB), "ingest.lock"),
	}
	if ingestFlags.target != "" {
		d, err := parseDateFlag("target", ingestFlags.target)
		if err != nil {
			return err
		}
		opts.Target = &d
	}

	repo, closeDB, err := openLedger()
	if err != nil {
		return err
	}
	defer closeDB()

	// interfaces stay nil unless configured
	var dumper reconcile.Dumper
	if cfg.Dump != "" {
		dumper = dump.NewStore(cfg.Dump, logger)
	}
	var committer reconcile.Committer
	if cfg.Git.Repo != "" {
		committer = sync.NewGitManager(cfg.Git.Repo, cfg.Git.Push, logger)
	}

	ingester := reconcile.NewIngester(newArchive(), repo, dumper, committer, logger)
	report, err := ingester.Ingest(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ingestSummary(report))
	return nil
}

func newArchive() *archive.Client {
	return archive.NewClient(cfg.Archive.URL, cfg.Archive.Username, cfg.Archive.Password, logger)
}

func openLedger() (*db.Repository, func(), error) {
	database, err := db.NewDB(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := database.InitSchema(); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to init ledger schema: %w", err)
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			logger.Warn("failed to close ledger", zap.Error(err))
		}
	}
	return db.NewRepository(database), closeDB, nil
}

func parseDateFlag(name, value string) (civil.Date, error) {
	d, err := civil.ParseDate(value)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return d, nil
}
