// Package taxonomy defines the four-level service catalog (sector, category,
// subcategory, job), the business keys used to match incoming nodes against
// persisted ones, the error taxonomy shared by the import pipeline, and the
// contract a persistent store must satisfy.
//
// The package has no storage or transport dependencies.
package taxonomy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Level identifies a depth in the catalog tree.
type Level string

const (
	LevelSector      Level = "sector"
	LevelCategory    Level = "category"
	LevelSubcategory Level = "subcategory"
	LevelJob         Level = "job"
)

// Parent returns the level directly above l, or "" for sectors.
func (l Level) Parent() Level {
	switch l {
	case LevelCategory:
		return LevelSector
	case LevelSubcategory:
		return LevelCategory
	case LevelJob:
		return LevelSubcategory
	default:
		return ""
	}
}

// MaxNameLength is the longest name accepted at any level, in runes.
const MaxNameLength = 255

// Sector is the root of the tree.
type Sector struct {
	ID          uuid.UUID
	Name        string
	Description string
	Position    int
	IsActive    bool
}

// Key returns the sector's business key.
func (s Sector) Key() Key { return Key{Name: NormalizeName(s.Name)} }

// Category groups subcategories inside a sector.
type Category struct {
	ID          uuid.UUID
	SectorID    uuid.UUID
	Name        string
	Description string
	Position    int
}

// Key returns the category's business key.
func (c Category) Key() Key { return Key{Parent: c.SectorID, Name: NormalizeName(c.Name)} }

// Subcategory groups jobs inside a category.
type Subcategory struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description string
}

// Key returns the subcategory's business key.
func (s Subcategory) Key() Key { return Key{Parent: s.CategoryID, Name: NormalizeName(s.Name)} }

// Job is a single service line item.
type Job struct {
	ID            uuid.UUID
	SubcategoryID uuid.UUID
	Name          string
	Description   string
	EstimatedTime int             // minutes, >= 0
	Price         decimal.Decimal // >= 0
}

// Key returns the job's business key.
func (j Job) Key() Key { return Key{Parent: j.SubcategoryID, Name: NormalizeName(j.Name)} }

// Key is the (parent id, normalized name) tuple that identifies a node
// independently of its surrogate id. Sectors use uuid.Nil as parent.
type Key struct {
	Parent uuid.UUID
	Name   string
}

// Counts is the number of persisted rows per level.
type Counts struct {
	Sectors       int64 `json:"sectors"`
	Categories    int64 `json:"categories"`
	Subcategories int64 `json:"subcategories"`
	Jobs          int64 `json:"jobs"`
}

// Total returns the number of nodes across all levels.
func (c Counts) Total() int64 {
	return c.Sectors + c.Categories + c.Subcategories + c.Jobs
}
