package core

import (
	"errors"
	"time"

	"github.com/JonMunkholm/catalog/internal/dedup"
	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/progress"
	"github.com/JonMunkholm/catalog/internal/reconcile"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

var (
	// ErrNoFiles is returned for a request without any file.
	ErrNoFiles = errors.New("no file provided")

	// ErrTooManyFiles is returned when a request carries more files than allowed.
	ErrTooManyFiles = errors.New("too many files")

	// ErrFileTooLarge is returned when a file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoReadableFiles means every file of a run failed to parse or map.
	ErrNoReadableFiles = errors.New("no file could be imported")

	// ErrImportCancelled wraps the context error of a cancelled run.
	ErrImportCancelled = errors.New("import cancelled")

	// ErrRunNotFound is returned for an unknown or expired run id.
	ErrRunNotFound = errors.New("import run not found")
)

// FileInput is one uploaded file.
type FileInput struct {
	Name string
	Data []byte
	// Format is inferred from Name when empty.
	Format ingest.Format
	// BatchLabel names the category; derived from Name when empty.
	BatchLabel string
}

// ImportOptions control one run.
type ImportOptions struct {
	Mode          reconcile.Mode
	ClearExisting bool // delete the whole catalog before reconciling

	HasHeader        bool
	DetectDuplicates bool

	Encoding  string // delimited files only; UTF-8 when empty
	Delimiter rune   // delimited files only; comma, or tab for .tsv
	Sheet     string // spreadsheets only; first sheet when empty
}

// ImportRequest is the input of Import and StartImport.
type ImportRequest struct {
	SectorName string
	Files      []FileInput
	Options    ImportOptions
}

// ErrorReport is the user-facing form of a *taxonomy.Error.
type ErrorReport struct {
	Kind      string `json:"kind"`
	Stage     string `json:"stage"`
	Level     string `json:"level,omitempty"`
	Name      string `json:"name,omitempty"`
	Parent    string `json:"parent,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// WarningReport is a row that imported with a defaulted value.
type WarningReport struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// FileReport summarizes one file of a run.
type FileReport struct {
	Name       string        `json:"name"`
	BatchLabel string        `json:"batchLabel"`
	Format     ingest.Format `json:"format"`
	Rows       int           `json:"rows"`
	Mapped     int           `json:"mapped"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Warnings   int           `json:"warnings"`
	Error      string        `json:"error,omitempty"`
}

// ImportStats is the final report of a run. Totals count nodes reconciled
// successfully: created, updated or unchanged.
type ImportStats struct {
	RunID      string         `json:"runId"`
	SectorName string         `json:"sectorName"`
	SectorID   uuid.UUID      `json:"sectorId"`
	Mode       reconcile.Mode `json:"mode"`

	TotalSectors       int `json:"totalSectors"`
	TotalCategories    int `json:"totalCategories"`
	TotalSubcategories int `json:"totalSubcategories"`
	TotalServices      int `json:"totalServices"`

	FilesProcessed int `json:"filesProcessed"`
	FilesFailed    int `json:"filesFailed"`
	RowsSkipped    int `json:"rowsSkipped"`
	RowsFailed     int `json:"rowsFailed"`
	NodesFailed    int `json:"nodesFailed"`

	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`

	Cleared   *taxonomy.Counts `json:"cleared,omitempty"`
	Cancelled bool             `json:"cancelled"`
	Pending   int              `json:"pending,omitempty"`

	Files      []FileReport    `json:"files"`
	Errors     []ErrorReport   `json:"errors"`
	Warnings   []WarningReport `json:"warnings"`
	Duplicates []dedup.Finding `json:"duplicates"`

	Duration time.Duration `json:"duration"`
}

// Partial reports whether the run finished with anything skipped or failed.
func (s *ImportStats) Partial() bool {
	return s.Cancelled || s.FilesFailed > 0 || s.RowsFailed > 0 || s.NodesFailed > 0
}

// RunStatus is the lifecycle state of an asynchronous run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunInfo is a snapshot of an asynchronous run.
type RunInfo struct {
	ID         string         `json:"id"`
	SectorName string         `json:"sectorName"`
	Files      []string       `json:"files"`
	Status     RunStatus      `json:"status"`
	Progress   progress.Event `json:"progress"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// newErrorReport flattens err, filling in file when the error has none.
func newErrorReport(err error, file string) ErrorReport {
	msg := MapError(err)
	var te *taxonomy.Error
	if !errors.As(err, &te) {
		return ErrorReport{Kind: "Error", File: file, Message: err.Error(), Code: msg.Code}
	}
	r := ErrorReport{
		Kind:      te.Kind.String(),
		Stage:     te.Stage,
		Level:     string(te.Level),
		Name:      te.Name,
		Parent:    te.Parent,
		File:      te.File,
		Line:      te.Line,
		Message:   te.Error(),
		Code:      msg.Code,
		Retryable: te.Retryable(),
	}
	if te.Err != nil {
		r.Message = te.Err.Error()
	}
	if r.File == "" {
		r.File = file
	}
	return r
}
