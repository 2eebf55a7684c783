package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/dedup"
	"github.com/JonMunkholm/catalog/internal/progress"
	"github.com/JonMunkholm/catalog/internal/reconcile"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type importFlags struct {
	sector           string
	mode             string
	clear            bool
	noHeader         bool
	detectDuplicates bool
	encoding         string
	delimiter        string
	sheet            string
	quiet            bool
}

func (a *app) importCommand() *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import --sector NAME FILE...",
		Short: "Import catalog files into one sector",
		Long: `Import reads every file, maps its rows onto the catalog tree and
reconciles the tree with the store.

Columns: A subcategory, B job, C description, D estimated time (minutes),
E price. Each file becomes a category named after the file.

A file that cannot be read is reported and skipped; the others are still
imported. The exit code is non-zero only when nothing could be imported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.sector, "sector", "s", "", "target sector name (required)")
	fl.StringVarP(&f.mode, "mode", "m", "", "conflict mode: skip or overwrite (default from IMPORT_DEFAULT_MODE)")
	fl.BoolVar(&f.clear, "clear", false, "delete the whole catalog before importing")
	fl.BoolVar(&f.noHeader, "no-header", false, "the first row is data, not a header")
	fl.BoolVar(&f.detectDuplicates, "detect-duplicates", false, "report similar sibling names")
	fl.StringVar(&f.encoding, "encoding", "", "text encoding of delimited files: utf-8, windows-1252, iso-8859-1")
	fl.StringVar(&f.delimiter, "delimiter", "", `field delimiter of delimited files, e.g. ";" or "\t"`)
	fl.StringVar(&f.sheet, "sheet", "", "spreadsheet sheet to read (default: first sheet)")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "do not print progress")
	_ = cmd.MarkFlagRequired("sector")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, f importFlags, paths []string) error {
	req := core.ImportRequest{
		SectorName: f.sector,
		Options: core.ImportOptions{
			Mode:             reconcile.Mode(f.mode),
			ClearExisting:    f.clear,
			HasHeader:        !f.noHeader,
			DetectDuplicates: f.detectDuplicates,
			Encoding:         f.encoding,
			Sheet:            f.sheet,
		},
	}

	if f.delimiter != "" {
		d := f.delimiter
		if d == `\t` {
			d = "\t"
		}
		if utf8.RuneCountInString(d) != 1 {
			return fmt.Errorf("--delimiter must be a single character, got %q", f.delimiter)
		}
		req.Options.Delimiter, _ = utf8.DecodeRuneInString(d)
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		req.Files = append(req.Files, core.FileInput{Name: filepath.Base(p), Data: data})
	}

	svc, err := a.open(cmd.Context())
	if err != nil {
		return err
	}

	var fn progress.Func
	if !f.quiet && !a.jsonOut {
		fn = func(e progress.Event) {
			fmt.Fprintf(a.errOut, "[%3d%%] %-11s %s\n", e.Percent, e.Stage, e.Message)
		}
	}

	stats, runErr := svc.Import(cmd.Context(), req, fn)
	if stats != nil {
		if a.jsonOut {
			if err := a.printJSON(stats); err != nil {
				return err
			}
		} else {
			a.printStats(stats)
		}
	}
	return runErr
}

func (a *app) countsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Print the number of records per level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := svc.GetCounts(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(counts)
			}
			a.printCounts(counts)
			return nil
		},
	}
}

func (a *app) resetCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset --yes",
		Short: "Delete the whole catalog",
		Long:  "Reset deletes every job, subcategory, category and sector, children first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes the whole catalog; pass --yes to confirm")
			}
			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			deleted, err := svc.ResetAll(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(map[string]any{"deleted": deleted})
			}
			fmt.Fprintln(a.out, "Deleted:")
			a.printCounts(deleted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}

func (a *app) relocateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relocate CATEGORY_ID SECTOR_ID",
		Short: "Move a category and its subtree to another sector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("category id %q: %w", args[0], err)
			}
			sectorID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("sector id %q: %w", args[1], err)
			}

			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.RelocateCategory(cmd.Context(), categoryID, sectorID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Moved category %s to sector %s\n", categoryID, sectorID)
			return nil
		},
	}
}

func (a *app) duplicatesCommand() *cobra.Command {
	var (
		sector    string
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "duplicates [NAME...]",
		Short: "Find sibling names that look alike",
		Long: `Duplicates compares the given names pairwise, or, with --sector, every
sibling set stored under that sector. Pairs scoring above the threshold
are printed, highest score first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sector != "" && len(args) > 0 {
				return errors.New("pass either names or --sector, not both")
			}
			if sector == "" && len(args) < 2 {
				return errors.New("pass at least two names, or --sector")
			}
			if threshold == 0 {
				threshold = a.cfg.Import.DuplicateThreshold
			}

			if sector == "" {
				pairs := dedup.New(threshold).Find(args)
				if a.jsonOut {
					return a.printJSON(map[string]any{"pairs": pairs})
				}
				a.printPairs(pairs)
				return nil
			}

			sectorID, err := uuid.Parse(sector)
			if err != nil {
				return fmt.Errorf("sector id %q: %w", sector, err)
			}
			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			findings, err := svc.FindSectorDuplicates(cmd.Context(), sectorID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(map[string]any{"findings": findings})
			}
			a.printFindings(findings)
			return nil
		},
	}
	cmd.Flags().StringVar(&sector, "sector", "", "scan the stored sector with this id")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity threshold for name lists, between 0 and 1 (default from IMPORT_DUPLICATE_THRESHOLD)")
	return cmd
}
