package mapper

import (
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// Tree is one sector's mapped catalog, ready for reconciliation.
type Tree struct {
	SectorName string
	Categories []*CategoryNode
}

// CategoryNode is one batch (usually one file).
type CategoryNode struct {
	Name          string
	Subcategories []*SubcategoryNode
}

// SubcategoryNode is a bucket of rows that share a subcategory name.
type SubcategoryNode struct {
	Name string
	Jobs []*JobNode
}

// JobNode is one mapped row.
type JobNode struct {
	Name          string
	Description   string
	EstimatedTime int
	Price         decimal.Decimal
	Line          int
	File          string
}

// Size returns the number of nodes per level below the sector.
func (t *Tree) Size() (categories, subcategories, jobs int) {
	for _, c := range t.Categories {
		categories++
		for _, s := range c.Subcategories {
			subcategories++
			jobs += len(s.Jobs)
		}
	}
	return categories, subcategories, jobs
}

// Merge folds o into t. Categories and subcategories with the same business
// name are combined; a job whose name already exists in the target bucket
// is dropped and reported.
func (t *Tree) Merge(o *Tree) []*taxonomy.Error {
	var errs []*taxonomy.Error

	for _, oc := range o.Categories {
		cat := t.category(oc.Name)
		if cat == nil {
			t.Categories = append(t.Categories, oc)
			continue
		}
		for _, os := range oc.Subcategories {
			sub := cat.subcategory(os.Name)
			if sub == nil {
				cat.Subcategories = append(cat.Subcategories, os)
				continue
			}
			for _, j := range os.Jobs {
				if sub.job(j.Name) != nil {
					e := taxonomy.NewValidationError(taxonomy.LevelJob, j.Name, j.Line, "duplicate job in subcategory")
					e.Parent = sub.Name
					e.File = j.File
					errs = append(errs, e)
					continue
				}
				sub.Jobs = append(sub.Jobs, j)
			}
		}
	}
	return errs
}

func (t *Tree) category(name string) *CategoryNode {
	key := taxonomy.NormalizeName(name)
	for _, c := range t.Categories {
		if taxonomy.NormalizeName(c.Name) == key {
			return c
		}
	}
	return nil
}

func (c *CategoryNode) subcategory(name string) *SubcategoryNode {
	key := taxonomy.NormalizeName(name)
	for _, s := range c.Subcategories {
		if taxonomy.NormalizeName(s.Name) == key {
			return s
		}
	}
	return nil
}

func (s *SubcategoryNode) job(name string) *JobNode {
	key := taxonomy.NormalizeName(name)
	for _, j := range s.Jobs {
		if taxonomy.NormalizeName(j.Name) == key {
			return j
		}
	}
	return nil
}
