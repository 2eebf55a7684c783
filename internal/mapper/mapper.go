// Package mapper groups ingested rows into a sector's catalog tree.
//
// One call owns all of its grouping state. Column positions are resolved once
// from the header into a Schema, and every row produces an Outcome so that
// skipped and rejected rows stay visible in the final report.
package mapper

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

// Status is the outcome of mapping one row.
type Status string

const (
	StatusMapped  Status = "mapped"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome records what happened to one input row.
type Outcome struct {
	Line        int
	Status      Status
	Subcategory string
	Job         string
	Warnings    []string
	Err         error
}

// Input is one batch of rows bound for a single category.
type Input struct {
	SectorName string
	BatchLabel string
	Header     ingest.Row
	Rows       []ingest.Row
	// FirstLine is the source line of Rows[0], used in outcomes and errors.
	FirstLine int
	// File names the source in errors and job nodes.
	File string
}

// Result is the mapped tree plus per-row outcomes.
type Result struct {
	Tree     *Tree
	Schema   Schema
	Outcomes []Outcome

	Mapped  int
	Skipped int
	Failed  int
}

// Warnings returns the number of rows mapped with at least one defaulted value.
func (r *Result) Warnings() int {
	n := 0
	for _, o := range r.Outcomes {
		if len(o.Warnings) > 0 {
			n++
		}
	}
	return n
}

// stripExtensions are removed from batch labels, matched case-insensitively.
var stripExtensions = []string{".xlsx", ".xlsm", ".xls", ".csv", ".tsv", ".txt"}

// BatchLabel derives a category name from a file name: directory parts and a
// trailing spreadsheet or text extension are removed.
func BatchLabel(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}

	lower := strings.ToLower(name)
	for _, ext := range stripExtensions {
		if strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	return taxonomy.CleanName(name)
}

// Map groups rows into a single-category tree. It fails only when the sector
// name or batch label is empty; row-level problems become outcomes.
func Map(in Input) (*Result, error) {
	sector := taxonomy.CleanName(in.SectorName)
	if sector == "" {
		return nil, taxonomy.NewValidationError(taxonomy.LevelSector, in.SectorName, 0, "sector name is required")
	}
	if err := checkLength(sector); err != nil {
		return nil, taxonomy.NewValidationError(taxonomy.LevelSector, sector, 0, "%v", err)
	}

	label := taxonomy.CleanName(in.BatchLabel)
	if label == "" {
		return nil, taxonomy.NewValidationError(taxonomy.LevelCategory, in.BatchLabel, 0, "batch label is required")
	}
	if err := checkLength(label); err != nil {
		return nil, taxonomy.NewValidationError(taxonomy.LevelCategory, label, 0, "%v", err)
	}

	firstLine := in.FirstLine
	if firstLine <= 0 {
		firstLine = 1
	}

	m := &rowMapper{
		file:     in.File,
		schema:   ResolveSchema(in.Header),
		category: &CategoryNode{Name: label},
		buckets:  make(map[string]*SubcategoryNode),
	}

	res := &Result{
		Schema:   m.schema,
		Outcomes: make([]Outcome, 0, len(in.Rows)),
	}

	for i, row := range in.Rows {
		out := m.mapRow(row, i+1, firstLine+i)
		switch out.Status {
		case StatusMapped:
			res.Mapped++
		case StatusSkipped:
			res.Skipped++
		case StatusError:
			res.Failed++
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	tree := &Tree{SectorName: sector}
	if len(m.category.Subcategories) > 0 {
		tree.Categories = []*CategoryNode{m.category}
	}
	res.Tree = tree
	return res, nil
}

// rowMapper is the accumulator for one Map call.
type rowMapper struct {
	file     string
	schema   Schema
	category *CategoryNode
	buckets  map[string]*SubcategoryNode
}

func (m *rowMapper) mapRow(row ingest.Row, n, line int) Outcome {
	out := Outcome{Line: line}

	subCell := m.schema.cell(row, ColSubcategory)
	if subCell.IsEmpty() {
		out.Status = StatusSkipped
		return out
	}

	subName := taxonomy.CleanName(CleanCell(subCell.Text))
	if subName == "" {
		subName = fmt.Sprintf("Subcategory %d", n)
		out.Warnings = append(out.Warnings, "subcategory is blank, using "+subName)
	}
	out.Subcategory = subName
	if err := checkLength(subName); err != nil {
		return m.reject(out, taxonomy.NewValidationError(taxonomy.LevelSubcategory, subName, line, "%v", err))
	}

	key := taxonomy.NormalizeName(subName)
	bucket := m.buckets[key]
	next := 1
	if bucket != nil {
		next = len(bucket.Jobs) + 1
	}

	jobName := taxonomy.CleanName(CleanCell(m.schema.cell(row, ColJob).Text))
	if jobName == "" {
		jobName = fmt.Sprintf("Service %d", next)
	}
	out.Job = jobName
	if err := checkLength(jobName); err != nil {
		return m.reject(out, taxonomy.NewValidationError(taxonomy.LevelJob, jobName, line, "%v", err))
	}
	if bucket != nil && bucket.job(jobName) != nil {
		e := taxonomy.NewValidationError(taxonomy.LevelJob, jobName, line, "duplicate job in subcategory")
		e.Parent = bucket.Name
		return m.reject(out, e)
	}

	minutes, warn := parseMinutes(m.schema.cell(row, ColEstimatedTime))
	if warn != "" {
		out.Warnings = append(out.Warnings, warn)
	}
	price, warn := parsePrice(m.schema.cell(row, ColPrice))
	if warn != "" {
		out.Warnings = append(out.Warnings, warn)
	}

	if bucket == nil {
		bucket = &SubcategoryNode{Name: subName}
		m.buckets[key] = bucket
		m.category.Subcategories = append(m.category.Subcategories, bucket)
	}
	bucket.Jobs = append(bucket.Jobs, &JobNode{
		Name:          jobName,
		Description:   strings.TrimSpace(CleanCell(m.schema.cell(row, ColDescription).Text)),
		EstimatedTime: minutes,
		Price:         price,
		Line:          line,
		File:          m.file,
	})

	out.Status = StatusMapped
	return out
}

func (m *rowMapper) reject(out Outcome, err *taxonomy.Error) Outcome {
	err.File = m.file
	out.Status = StatusError
	out.Err = err
	return out
}

func checkLength(name string) error {
	if n := utf8.RuneCountInString(name); n > taxonomy.MaxNameLength {
		return fmt.Errorf("name is %d characters, limit is %d", n, taxonomy.MaxNameLength)
	}
	return nil
}
