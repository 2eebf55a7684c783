// Package reconcile writes a mapped catalog tree into a taxonomy.Store.
//
// Nodes are matched by business key and processed top-down, so a child is
// only written once its parent id is known. A failure aborts the subtree
// rooted at the failing node; siblings continue. The engine never retries:
// store failures come back as retryable *taxonomy.Error values and the
// caller decides.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/catalog/internal/mapper"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

const stage = "reconciling"

// DefaultStoreTimeout bounds a single store call.
const DefaultStoreTimeout = 10 * time.Second

// Options configure an Engine.
type Options struct {
	Mode         Mode
	StoreTimeout time.Duration
}

// Observer is told how many subcategory buckets have been processed.
type Observer func(done, total int)

// Engine reconciles trees against one store. It holds no per-run state and
// is safe for concurrent use.
type Engine struct {
	store  taxonomy.Store
	opts   Options
	logger *slog.Logger
}

// New returns an Engine. A zero Mode is skip and a non-positive timeout uses
// DefaultStoreTimeout.
func New(store taxonomy.Store, opts Options, logger *slog.Logger) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeSkip
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, opts: opts, logger: logger}
}

// Mode returns the engine's conflict policy.
func (e *Engine) Mode() Mode { return e.opts.Mode }

// WithMode returns a copy of the engine using mode.
func (e *Engine) WithMode(mode Mode) *Engine {
	cp := *e
	if mode != "" {
		cp.opts.Mode = mode
	}
	return &cp
}

// Reconcile upserts tree. The returned error is non-nil only when the whole
// run stopped: the sector itself failed or ctx was cancelled. Node-level
// failures are collected in Result.Errors.
func (e *Engine) Reconcile(ctx context.Context, tree *mapper.Tree, observe Observer) (*Result, error) {
	res := &Result{}
	if tree == nil {
		return res, taxonomy.NewValidationError(taxonomy.LevelSector, "", 0, "no tree to reconcile")
	}

	catTotal, subTotal, jobTotal := tree.Size()
	if err := ctx.Err(); err != nil {
		res.Cancelled = true
		res.Pending = jobTotal
		return res, err
	}

	// Cancellation is honored between buckets only. Store calls run on a
	// context that outlives ctx but still carries the per-call timeout.
	work := context.WithoutCancel(ctx)

	sector, err := e.sector(work, tree.SectorName, res)
	if err != nil {
		terr := e.fail(res, taxonomy.LevelSector, tree.SectorName, "", err)
		res.Categories.Failed += catTotal
		res.Subcategories.Failed += subTotal
		res.Jobs.Failed += jobTotal
		return res, terr
	}
	res.SectorID = sector.ID

	position, err := e.nextCategoryPosition(work, sector.ID)
	if err != nil {
		e.logger.Debug("list categories for position", "sector", sector.Name, "error", err)
	}

	done := 0
	report := func() {
		if observe != nil {
			observe(done, subTotal)
		}
	}
	report()

	for _, cn := range tree.Categories {
		if err := ctx.Err(); err != nil {
			return e.cancelled(res, tree, done, err)
		}

		cat, err := e.category(work, sector, cn, position, res)
		if err != nil {
			e.fail(res, taxonomy.LevelCategory, cn.Name, sector.Name, err)
			for _, sn := range cn.Subcategories {
				res.Subcategories.Failed++
				res.Jobs.Failed += len(sn.Jobs)
			}
			done += len(cn.Subcategories)
			report()
			continue
		}
		position++

		for _, sn := range cn.Subcategories {
			if err := ctx.Err(); err != nil {
				return e.cancelled(res, tree, done, err)
			}
			e.bucket(work, cat, sn, res)
			done++
			report()
		}
	}

	return res, nil
}

// bucket reconciles one subcategory and its jobs.
func (e *Engine) bucket(ctx context.Context, cat taxonomy.Category, sn *mapper.SubcategoryNode, res *Result) {
	sub, err := e.subcategory(ctx, cat, sn, res)
	if err != nil {
		e.fail(res, taxonomy.LevelSubcategory, sn.Name, cat.Name, err)
		res.Jobs.Failed += len(sn.Jobs)
		return
	}

	for i, jn := range sn.Jobs {
		if err := e.job(ctx, sub, jn, res); err != nil {
			terr := e.fail(res, taxonomy.LevelJob, jn.Name, sub.Name, err)
			terr.File = jn.File
			terr.Line = jn.Line
			if terr.Kind == taxonomy.KindReferential {
				// The parent is gone; the remaining siblings cannot be written.
				res.Jobs.Failed += len(sn.Jobs) - i - 1
				return
			}
		}
	}
}

// cancelled counts jobs never attempted and ends the run.
func (e *Engine) cancelled(res *Result, tree *mapper.Tree, done int, err error) (*Result, error) {
	_, _, jobs := tree.Size()
	attempted := res.Jobs.Reconciled() + res.Jobs.Failed
	res.Cancelled = true
	res.Pending = jobs - attempted
	e.logger.Info("reconcile cancelled",
		"sector", tree.SectorName,
		"buckets_done", done,
		"jobs_pending", res.Pending,
	)
	return res, err
}

// ----------------------------------------------------------------------------
// Levels
// ----------------------------------------------------------------------------

func (e *Engine) sector(ctx context.Context, name string, res *Result) (taxonomy.Sector, error) {
	name = taxonomy.CleanName(name)
	if err := validateName(name); err != nil {
		return taxonomy.Sector{}, err
	}

	incoming := taxonomy.Sector{Name: name, IsActive: true}
	s, o, err := upsert(ctx, e, incoming.Key(), incoming, nodeOps[taxonomy.Sector]{
		find: e.store.FindSector,
		// A new sector goes after the existing ones.
		create: func(ctx context.Context, sec *taxonomy.Sector) error {
			sectors, err := e.store.ListSectors(ctx)
			if err != nil {
				return err
			}
			sec.Position = nextPosition(sectors, func(s taxonomy.Sector) int { return s.Position })
			return e.store.CreateSector(ctx, sec)
		},
		update: e.store.UpdateSector,
		merge: func(existing taxonomy.Sector) taxonomy.Sector {
			existing.Name = name
			existing.IsActive = true
			return existing
		},
	})
	if err != nil {
		return s, err
	}
	res.record(taxonomy.LevelSector, o)
	return s, nil
}

func (e *Engine) category(ctx context.Context, sector taxonomy.Sector, cn *mapper.CategoryNode, position int, res *Result) (taxonomy.Category, error) {
	name := taxonomy.CleanName(cn.Name)
	if err := validateName(name); err != nil {
		return taxonomy.Category{}, err
	}

	incoming := taxonomy.Category{SectorID: sector.ID, Name: name, Position: position}
	c, o, err := upsert(ctx, e, incoming.Key(), incoming, nodeOps[taxonomy.Category]{
		find:   e.store.FindCategory,
		create: e.store.CreateCategory,
		update: e.store.UpdateCategory,
		merge: func(existing taxonomy.Category) taxonomy.Category {
			existing.Name = name
			return existing
		},
	})
	if err != nil {
		return c, err
	}
	res.record(taxonomy.LevelCategory, o)
	return c, nil
}

func (e *Engine) subcategory(ctx context.Context, cat taxonomy.Category, sn *mapper.SubcategoryNode, res *Result) (taxonomy.Subcategory, error) {
	name := taxonomy.CleanName(sn.Name)
	if err := validateName(name); err != nil {
		return taxonomy.Subcategory{}, err
	}

	incoming := taxonomy.Subcategory{CategoryID: cat.ID, Name: name}
	s, o, err := upsert(ctx, e, incoming.Key(), incoming, nodeOps[taxonomy.Subcategory]{
		find:   e.store.FindSubcategory,
		create: e.store.CreateSubcategory,
		update: e.store.UpdateSubcategory,
		merge: func(existing taxonomy.Subcategory) taxonomy.Subcategory {
			existing.Name = name
			return existing
		},
	})
	if err != nil {
		return s, err
	}
	res.record(taxonomy.LevelSubcategory, o)
	return s, nil
}

func (e *Engine) job(ctx context.Context, sub taxonomy.Subcategory, jn *mapper.JobNode, res *Result) error {
	name := taxonomy.CleanName(jn.Name)
	if err := validateName(name); err != nil {
		return err
	}
	if jn.EstimatedTime < 0 || jn.Price.IsNegative() {
		return errValidation("estimated time and price must not be negative")
	}

	incoming := taxonomy.Job{
		SubcategoryID: sub.ID,
		Name:          name,
		Description:   jn.Description,
		EstimatedTime: jn.EstimatedTime,
		Price:         jn.Price.Round(2),
	}
	_, o, err := upsert(ctx, e, incoming.Key(), incoming, nodeOps[taxonomy.Job]{
		find:   e.store.FindJob,
		create: e.store.CreateJob,
		update: e.store.UpdateJob,
		merge: func(existing taxonomy.Job) taxonomy.Job {
			existing.Name = incoming.Name
			existing.Description = incoming.Description
			existing.EstimatedTime = incoming.EstimatedTime
			existing.Price = incoming.Price
			return existing
		},
	})
	if err != nil {
		return err
	}
	res.record(taxonomy.LevelJob, o)
	return nil
}

func (e *Engine) nextCategoryPosition(ctx context.Context, sectorID uuid.UUID) (int, error) {
	var cats []taxonomy.Category
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		cats, err = e.store.ListCategories(ctx, sectorID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return nextPosition(cats, func(c taxonomy.Category) int { return c.Position }), nil
}

// nextPosition returns one past the highest position in nodes.
func nextPosition[T any](nodes []T, position func(T) int) int {
	next := 0
	for _, n := range nodes {
		if p := position(n); p >= next {
			next = p + 1
		}
	}
	return next
}

// ----------------------------------------------------------------------------
// Upsert
// ----------------------------------------------------------------------------

// nodeOps binds the store methods of one level.
type nodeOps[T any] struct {
	find   func(context.Context, taxonomy.Key) (T, error)
	create func(context.Context, *T) error
	update func(context.Context, T) error
	// merge copies the incoming fields onto an existing node.
	merge func(existing T) T
}

// upsert looks up key and then creates, updates or reuses the node according
// to the engine's mode. A duplicate on create means a concurrent writer won
// the insert; the winner is re-read and treated as found.
func upsert[T any](ctx context.Context, e *Engine, key taxonomy.Key, incoming T, ops nodeOps[T]) (T, outcome, error) {
	var zero T

	existing, err := find(ctx, e, key, ops.find)
	switch {
	case err == nil:
		return resolve(ctx, e, existing, ops)
	case !errors.Is(err, taxonomy.ErrNotFound):
		return zero, 0, err
	}

	node := incoming
	err = e.call(ctx, func(ctx context.Context) error { return ops.create(ctx, &node) })
	if err == nil {
		return node, created, nil
	}
	if !errors.Is(err, taxonomy.ErrDuplicate) {
		return zero, 0, err
	}

	existing, err = find(ctx, e, key, ops.find)
	if err != nil {
		return zero, 0, fmt.Errorf("re-read after duplicate insert: %w", err)
	}
	return resolve(ctx, e, existing, ops)
}

func find[T any](ctx context.Context, e *Engine, key taxonomy.Key, fn func(context.Context, taxonomy.Key) (T, error)) (T, error) {
	var node T
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		node, err = fn(ctx, key)
		return err
	})
	return node, err
}

// resolve applies the conflict policy to a node that already exists.
func resolve[T any](ctx context.Context, e *Engine, existing T, ops nodeOps[T]) (T, outcome, error) {
	if e.opts.Mode != ModeOverwrite {
		return existing, unchanged, nil
	}

	node := ops.merge(existing)
	if err := e.call(ctx, func(ctx context.Context) error { return ops.update(ctx, node) }); err != nil {
		var zero T
		return zero, 0, err
	}
	return node, updated, nil
}

// call runs fn under the per-call store timeout.
func (e *Engine) call(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()
	return fn(callCtx)
}

// ----------------------------------------------------------------------------
// Errors
// ----------------------------------------------------------------------------

type validationError struct{ msg string }

func (v validationError) Error() string { return v.msg }

func errValidation(msg string) error { return validationError{msg: msg} }

func validateName(name string) error {
	if name == "" {
		return errValidation("name is required")
	}
	if utf8.RuneCountInString(name) > taxonomy.MaxNameLength {
		return errValidation(fmt.Sprintf("name exceeds %d characters", taxonomy.MaxNameLength))
	}
	return nil
}

// classify picks the error kind for a failed node.
func classify(err error) taxonomy.Kind {
	var v validationError
	switch {
	case errors.As(err, &v), errors.Is(err, taxonomy.ErrInvalid):
		return taxonomy.KindValidation
	case errors.Is(err, taxonomy.ErrMissingParent):
		return taxonomy.KindReferential
	default:
		// Timeouts, I/O and an unresolved duplicate race are all worth retrying.
		return taxonomy.KindStore
	}
}

// fail records a node failure and returns the structured error.
func (e *Engine) fail(res *Result, level taxonomy.Level, name, parent string, err error) *taxonomy.Error {
	terr := &taxonomy.Error{
		Kind:   classify(err),
		Stage:  stage,
		Level:  level,
		Name:   name,
		Parent: parent,
		Err:    err,
	}
	res.Stats(level).Failed++
	res.Errors = append(res.Errors, terr)

	e.logger.Warn("reconcile node failed",
		"level", level,
		"name", name,
		"parent", parent,
		"kind", terr.Kind.String(),
		"error", err,
	)
	return terr
}
