package postgres

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

var levelTables = map[taxonomy.Level]string{
	taxonomy.LevelSector:      "sectors",
	taxonomy.LevelCategory:    "categories",
	taxonomy.LevelSubcategory: "subcategories",
	taxonomy.LevelJob:         "jobs",
}

// PurgeAll deletes every row of one level. The foreign keys reject the
// purge while a lower level still holds rows.
func (s *Store) PurgeAll(ctx context.Context, level taxonomy.Level) (int64, error) {
	table, ok := levelTables[level]
	if !ok {
		return 0, fmt.Errorf("unknown level: %q", level)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+table)
	if err != nil {
		return 0, purgeError(level, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Counts(ctx context.Context) (taxonomy.Counts, error) {
	var c taxonomy.Counts
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM sectors),
			(SELECT count(*) FROM categories),
			(SELECT count(*) FROM subcategories),
			(SELECT count(*) FROM jobs)`,
	).Scan(&c.Sectors, &c.Categories, &c.Subcategories, &c.Jobs)
	if err != nil {
		return taxonomy.Counts{}, fmt.Errorf("count catalog: %w", err)
	}
	return c, nil
}
