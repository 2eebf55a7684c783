package reconcile

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

// Mode is the conflict policy for nodes that already exist.
type Mode string

const (
	// ModeSkip reuses the existing node and writes nothing.
	ModeSkip Mode = "skip"
	// ModeOverwrite updates the existing node in place, keeping its id.
	ModeOverwrite Mode = "overwrite"
)

// ParseMode accepts "skip" or "overwrite". An empty string is skip.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSkip:
		return ModeSkip, nil
	case ModeOverwrite:
		return ModeOverwrite, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want skip or overwrite)", s)
	}
}

// LevelStats counts node outcomes on one level.
type LevelStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Reconciled is the number of nodes that exist in the store after the run.
func (s LevelStats) Reconciled() int {
	return s.Created + s.Updated + s.Unchanged
}

// Result is the outcome of one Reconcile call.
type Result struct {
	SectorID uuid.UUID

	Sectors       LevelStats
	Categories    LevelStats
	Subcategories LevelStats
	Jobs          LevelStats

	// Errors holds one entry per failed node, in processing order.
	Errors []*taxonomy.Error

	// Cancelled is set when the context ended the run early. Pending counts
	// the jobs that were never attempted.
	Cancelled bool
	Pending   int
}

// Stats returns the counters for level.
func (r *Result) Stats(level taxonomy.Level) *LevelStats {
	switch level {
	case taxonomy.LevelSector:
		return &r.Sectors
	case taxonomy.LevelCategory:
		return &r.Categories
	case taxonomy.LevelSubcategory:
		return &r.Subcategories
	default:
		return &r.Jobs
	}
}

// Writes is the number of create and update calls that succeeded.
func (r *Result) Writes() int {
	n := 0
	for _, s := range []LevelStats{r.Sectors, r.Categories, r.Subcategories, r.Jobs} {
		n += s.Created + s.Updated
	}
	return n
}

// OK reports whether every node was reconciled.
func (r *Result) OK() bool {
	return len(r.Errors) == 0 && !r.Cancelled
}

type outcome int

const (
	created outcome = iota + 1
	updated
	unchanged
)

func (r *Result) record(level taxonomy.Level, o outcome) {
	s := r.Stats(level)
	switch o {
	case created:
		s.Created++
	case updated:
		s.Updated++
	case unchanged:
		s.Unchanged++
	}
}
