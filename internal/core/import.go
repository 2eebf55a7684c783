package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/mapper"
	"github.com/JonMunkholm/catalog/internal/progress"
	"github.com/JonMunkholm/catalog/internal/reconcile"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

// Progress windows per stage. Stages run in this order.
const (
	pctParsed     = 20
	pctMapped     = 30
	pctCleared    = 35
	pctDeduped    = 40
	pctReconciled = 99
)

// parsedFile is a file that made it through parsing.
type parsedFile struct {
	report int // index into ImportStats.Files
	table  *ingest.Table
}

// runImport executes the pipeline. rep receives exactly one terminal event.
func (s *Service) runImport(ctx context.Context, runID string, req ImportRequest, rep *progress.Reporter) (*ImportStats, error) {
	start := time.Now()
	log := s.logger.With("run_id", runID, "sector", req.SectorName).With(callerAttrs(ctx)...)

	stats := &ImportStats{
		RunID:      runID,
		SectorName: taxonomy.CleanName(req.SectorName),
		Files:      []FileReport{},
		Errors:     []ErrorReport{},
		Warnings:   []WarningReport{},
	}

	finish := func(err error) (*ImportStats, error) {
		stats.Duration = time.Since(start)
		if err != nil {
			rep.Fail(err)
			log.Error("import failed",
				"files_processed", stats.FilesProcessed,
				"files_failed", stats.FilesFailed,
				"services", stats.TotalServices,
				"duration", stats.Duration,
				"error", err,
			)
			return stats, err
		}
		rep.Complete(summarize(stats))
		log.Info("import complete",
			"files_processed", stats.FilesProcessed,
			"services", stats.TotalServices,
			"created", stats.Created,
			"updated", stats.Updated,
			"unchanged", stats.Unchanged,
			"errors", len(stats.Errors),
			"duration", stats.Duration,
		)
		return stats, nil
	}

	mode, err := s.validateRequest(req)
	if err != nil {
		return finish(err)
	}
	stats.Mode = mode
	log.Info("import started", "files", len(req.Files), "mode", mode, "clear_existing", req.Options.ClearExisting)

	parsed := s.parseFiles(ctx, req, stats, rep)
	if err := ctx.Err(); err != nil {
		return finish(cancelled(stats, err))
	}
	if len(parsed) == 0 {
		return finish(ErrNoReadableFiles)
	}

	tree := s.mapFiles(req, parsed, stats, rep)
	if tree == nil {
		return finish(ErrNoReadableFiles)
	}
	if err := ctx.Err(); err != nil {
		return finish(cancelled(stats, err))
	}

	if req.Options.ClearExisting {
		if err := s.clearExisting(ctx, stats, rep, log); err != nil {
			return finish(err)
		}
	}

	if req.Options.DetectDuplicates {
		rep.Report(progress.StageDuplicates, pctCleared, "checking for similar names")
		stats.Duplicates = s.detector.ScanTree(tree)
		rep.Report(progress.StageDuplicates, pctDeduped, "found %d possible duplicates", len(stats.Duplicates))
	}

	span := rep.Span(progress.StageReconciling, pctDeduped, pctReconciled)
	res, err := s.engine.WithMode(mode).Reconcile(ctx, tree, func(done, total int) {
		span.Step(done, total, "reconciled %d of %d subcategories", done, total)
	})
	applyResult(stats, res)
	if err != nil {
		if res != nil && res.Cancelled {
			return finish(cancelled(stats, err))
		}
		return finish(err)
	}
	return finish(nil)
}

func (s *Service) validateRequest(req ImportRequest) (reconcile.Mode, error) {
	if len(req.Files) == 0 {
		return "", ErrNoFiles
	}
	if len(req.Files) > s.cfg.MaxFiles {
		return "", fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(req.Files), s.cfg.MaxFiles)
	}

	sector := taxonomy.CleanName(req.SectorName)
	if sector == "" {
		return "", taxonomy.NewValidationError(taxonomy.LevelSector, req.SectorName, 0, "sector name is required")
	}

	mode := req.Options.Mode
	if mode == "" {
		return s.engine.Mode(), nil
	}
	parsed, err := reconcile.ParseMode(string(mode))
	if err != nil {
		return "", &taxonomy.Error{Kind: taxonomy.KindValidation, Stage: "validating", Err: err}
	}
	return parsed, nil
}

// parseFiles reads every file. A file that fails is reported and skipped.
func (s *Service) parseFiles(ctx context.Context, req ImportRequest, stats *ImportStats, rep *progress.Reporter) []parsedFile {
	span := rep.Span(progress.StageParsing, 0, pctParsed)
	parsed := make([]parsedFile, 0, len(req.Files))
	opts := ingest.Options{
		HasHeader: req.Options.HasHeader,
		Sheet:     req.Options.Sheet,
		Delimiter: req.Options.Delimiter,
		Encoding:  req.Options.Encoding,
	}

	for i, f := range req.Files {
		if ctx.Err() != nil {
			break
		}
		span.Step(i, len(req.Files), "reading %s", f.Name)

		fr := FileReport{Name: f.Name, BatchLabel: f.BatchLabel, Format: f.Format}
		if fr.BatchLabel == "" {
			fr.BatchLabel = mapper.BatchLabel(f.Name)
		}

		table, err := s.parseFile(f, opts, &fr)
		if err != nil {
			s.failFile(stats, &fr, err)
			stats.Files = append(stats.Files, fr)
			continue
		}

		stats.Files = append(stats.Files, fr)
		parsed = append(parsed, parsedFile{report: len(stats.Files) - 1, table: table})
	}

	span.End("read %d of %d files", len(parsed), len(req.Files))
	return parsed
}

func (s *Service) parseFile(f FileInput, opts ingest.Options, fr *FileReport) (*ingest.Table, error) {
	if fr.Format == "" {
		format, err := ingest.DetectFormat(f.Name)
		if err != nil {
			return nil, taxonomy.NewParseError(f.Name, err)
		}
		fr.Format = format
	}
	if size := int64(len(f.Data)); size > s.cfg.MaxFileSize {
		return nil, taxonomy.NewParseError(f.Name,
			fmt.Errorf("%w: %d bytes, limit is %d", ErrFileTooLarge, size, s.cfg.MaxFileSize))
	}

	table, err := ingest.Parse(f.Data, fr.Format, opts.ForFile(f.Name))
	if err != nil {
		var te *taxonomy.Error
		if errors.As(err, &te) && te.File == "" {
			te.File = f.Name
		}
		return nil, err
	}
	fr.Rows = len(table.Rows)
	return table, nil
}

// mapFiles maps every parsed file and merges the results into one tree.
// It returns nil when no file could be mapped.
func (s *Service) mapFiles(req ImportRequest, parsed []parsedFile, stats *ImportStats, rep *progress.Reporter) *mapper.Tree {
	span := rep.Span(progress.StageMapping, pctParsed, pctMapped)
	firstLine := 1
	if req.Options.HasHeader {
		firstLine = 2
	}

	var tree *mapper.Tree
	for i, pf := range parsed {
		fr := &stats.Files[pf.report]
		span.Step(i, len(parsed), "mapping %s", fr.Name)

		res, err := mapper.Map(mapper.Input{
			SectorName: req.SectorName,
			BatchLabel: fr.BatchLabel,
			Header:     pf.table.Header,
			Rows:       pf.table.Rows,
			FirstLine:  firstLine,
			File:       fr.Name,
		})
		if err != nil {
			var te *taxonomy.Error
			if errors.As(err, &te) && te.File == "" {
				te.File = fr.Name
			}
			s.failFile(stats, fr, err)
			continue
		}

		fr.Mapped, fr.Skipped, fr.Failed = res.Mapped, res.Skipped, res.Failed
		fr.Warnings = res.Warnings()
		stats.RowsSkipped += res.Skipped
		stats.RowsFailed += res.Failed
		for _, out := range res.Outcomes {
			if out.Err != nil {
				stats.Errors = append(stats.Errors, newErrorReport(out.Err, fr.Name))
			}
			for _, w := range out.Warnings {
				stats.Warnings = append(stats.Warnings, WarningReport{File: fr.Name, Line: out.Line, Message: w})
			}
		}

		if tree == nil {
			tree = res.Tree
		} else {
			for _, e := range tree.Merge(res.Tree) {
				fr.Mapped--
				fr.Failed++
				stats.RowsFailed++
				stats.Errors = append(stats.Errors, newErrorReport(e, fr.Name))
			}
		}
		stats.FilesProcessed++
	}

	if tree != nil {
		cats, subs, jobs := tree.Size()
		span.End("mapped %d jobs in %d subcategories across %d categories", jobs, subs, cats)
	}
	return tree
}

func (s *Service) clearExisting(ctx context.Context, stats *ImportStats, rep *progress.Reporter, log *slog.Logger) error {
	rep.Report(progress.StageClearing, pctMapped, "clearing existing catalog")
	cleared, err := s.admin.ResetAll(ctx)
	stats.Cleared = &cleared
	if err != nil {
		return &taxonomy.Error{Kind: taxonomy.KindStore, Stage: string(progress.StageClearing), Err: err}
	}
	log.Warn("existing catalog cleared before import", "deleted", cleared.Total())
	rep.Report(progress.StageClearing, pctCleared, "cleared %d records", cleared.Total())
	return nil
}

func (s *Service) failFile(stats *ImportStats, fr *FileReport, err error) {
	stats.FilesFailed++
	fr.Error = FormatUserError(err)
	stats.Errors = append(stats.Errors, newErrorReport(err, fr.Name))
	s.logger.Warn("import file failed", "file", fr.Name, "error", err)
}

// applyResult folds reconcile statistics into stats.
func applyResult(stats *ImportStats, res *reconcile.Result) {
	if res == nil {
		return
	}
	stats.SectorID = res.SectorID
	stats.TotalSectors = res.Sectors.Reconciled()
	stats.TotalCategories = res.Categories.Reconciled()
	stats.TotalSubcategories = res.Subcategories.Reconciled()
	stats.TotalServices = res.Jobs.Reconciled()

	for _, ls := range []reconcile.LevelStats{res.Sectors, res.Categories, res.Subcategories, res.Jobs} {
		stats.Created += ls.Created
		stats.Updated += ls.Updated
		stats.Unchanged += ls.Unchanged
		stats.NodesFailed += ls.Failed
	}
	stats.Cancelled = res.Cancelled
	stats.Pending = res.Pending

	for _, e := range res.Errors {
		stats.Errors = append(stats.Errors, newErrorReport(e, ""))
	}
}

func cancelled(stats *ImportStats, err error) error {
	stats.Cancelled = true
	return fmt.Errorf("%w: %w", ErrImportCancelled, err)
}

// summarize builds the message of the terminal progress event.
func summarize(stats *ImportStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "imported %d services (%d created, %d updated, %d unchanged)",
		stats.TotalServices, stats.Created, stats.Updated, stats.Unchanged)
	if n := len(stats.Errors); n > 0 {
		fmt.Fprintf(&b, " with %d errors", n)
	}
	if stats.FilesFailed > 0 {
		fmt.Fprintf(&b, "; %d files failed", stats.FilesFailed)
	}
	return b.String()
}
