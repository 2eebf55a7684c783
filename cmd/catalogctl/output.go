package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/dedup"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printCounts(c taxonomy.Counts) {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  sectors\t%d\n", c.Sectors)
	fmt.Fprintf(tw, "  categories\t%d\n", c.Categories)
	fmt.Fprintf(tw, "  subcategories\t%d\n", c.Subcategories)
	fmt.Fprintf(tw, "  jobs\t%d\n", c.Jobs)
	_ = tw.Flush()
}

func (a *app) printStats(s *core.ImportStats) {
	w := a.out
	suffix := ""
	if a.dryRun {
		suffix = ", dry run"
	}
	fmt.Fprintf(w, "Sector %q (%s mode%s)\n", s.SectorName, s.Mode, suffix)
	fmt.Fprintf(w, "Files:    %d processed, %d failed\n", s.FilesProcessed, s.FilesFailed)
	fmt.Fprintf(w, "Totals:   %d categories, %d subcategories, %d services\n",
		s.TotalCategories, s.TotalSubcategories, s.TotalServices)
	fmt.Fprintf(w, "Changes:  %d created, %d updated, %d unchanged\n", s.Created, s.Updated, s.Unchanged)
	if s.RowsSkipped > 0 || s.RowsFailed > 0 {
		fmt.Fprintf(w, "Rows:     %d skipped, %d failed\n", s.RowsSkipped, s.RowsFailed)
	}
	if s.Cleared != nil {
		fmt.Fprintf(w, "Cleared:  %d records\n", s.Cleared.Total())
	}
	if s.Cancelled {
		fmt.Fprintf(w, "Cancelled with %d services pending\n", s.Pending)
	}
	fmt.Fprintf(w, "Duration: %s\n", s.Duration.Round(time.Millisecond))

	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  [%s] %s%s\n", e.Code, location(e.File, e.Line), e.Message)
		}
	}
	if len(s.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(s.Warnings))
		for _, e := range s.Warnings {
			fmt.Fprintf(w, "  %s%s\n", location(e.File, e.Line), e.Message)
		}
	}
	if len(s.Duplicates) > 0 {
		fmt.Fprintf(w, "\nPossible duplicates (%d):\n", len(s.Duplicates))
		a.printFindings(s.Duplicates)
	}
}

func location(file string, line int) string {
	switch {
	case file != "" && line > 0:
		return fmt.Sprintf("%s:%d: ", file, line)
	case file != "":
		return file + ": "
	default:
		return ""
	}
}

func (a *app) printPairs(pairs []dedup.Pair) {
	if len(pairs) == 0 {
		fmt.Fprintln(a.out, "No similar names found")
		return
	}
	for _, p := range pairs {
		fmt.Fprintf(a.out, "  %q ~ %q (%.2f)\n", p.A, p.B, p.Score)
	}
}

func (a *app) printFindings(findings []dedup.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(a.out, "No similar names found")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, f := range findings {
		fmt.Fprintf(tw, "  %s\tunder %q\t%q ~ %q\t%.2f\n", f.Level, f.Parent, f.A, f.B, f.Score)
	}
	_ = tw.Flush()
}
