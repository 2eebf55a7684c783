package postgres

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNumericOutOfRange   = "22003"
	codeStringTooLong       = "22001"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

func isForeignKeyViolation(err error) bool { return pgCode(err) == codeForeignKeyViolation }

// isInvalidValue reports a value the schema refuses no matter how often the
// write is retried.
func isInvalidValue(err error) bool {
	switch pgCode(err) {
	case codeCheckViolation, codeNumericOutOfRange, codeStringTooLong:
		return true
	}
	return false
}

// writeError translates a failed insert or update of one node.
func writeError(level taxonomy.Level, name string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s %q: %w", level, name, taxonomy.ErrDuplicate)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s %q: %w", level, name, taxonomy.ErrMissingParent)
	case isInvalidValue(err):
		return fmt.Errorf("%s %q: %w: %w", level, name, taxonomy.ErrInvalid, err)
	default:
		return fmt.Errorf("write %s %q: %w", level, name, err)
	}
}

// readError translates a failed single-row read.
func readError(level taxonomy.Level, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return taxonomy.ErrNotFound
	}
	return fmt.Errorf("read %s: %w", level, err)
}

// deleteError translates a failed delete. A foreign key violation means the
// node still has children.
func deleteError(level taxonomy.Level, err error) error {
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%s still has %s", level, childOf(level))
	}
	return fmt.Errorf("delete %s: %w", level, err)
}

// purgeError is deleteError for bulk deletes, matching the in-memory store.
func purgeError(level taxonomy.Level, err error) error {
	if isForeignKeyViolation(err) {
		return fmt.Errorf("purge %s: %s remain: %w", level, childOf(level), taxonomy.ErrMissingParent)
	}
	return fmt.Errorf("purge %s: %w", level, err)
}

func childOf(level taxonomy.Level) string {
	switch level {
	case taxonomy.LevelSector:
		return "categories"
	case taxonomy.LevelCategory:
		return "subcategories"
	case taxonomy.LevelSubcategory:
		return "jobs"
	default:
		return "children"
	}
}
