package postgres

import (
	"context"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

const categoryColumns = `id, sector_id, name, description, position`

func scanCategory(row scanner) (taxonomy.Category, error) {
	var c taxonomy.Category
	err := row.Scan(&c.ID, &c.SectorID, &c.Name, &c.Description, &c.Position)
	return c, err
}

func (s *Store) FindCategory(ctx context.Context, key taxonomy.Key) (taxonomy.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE sector_id = $1 AND name_key = $2`,
		key.Parent, key.Name))
	if err != nil {
		return taxonomy.Category{}, readError(taxonomy.LevelCategory, err)
	}
	return c, nil
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (taxonomy.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		return taxonomy.Category{}, readError(taxonomy.LevelCategory, err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, sectorID uuid.UUID) ([]taxonomy.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE sector_id = $1 ORDER BY position, name`, sectorID)
	if err != nil {
		return nil, readError(taxonomy.LevelCategory, err)
	}
	out, err := collect(rows, scanCategory)
	if err != nil {
		return nil, readError(taxonomy.LevelCategory, err)
	}
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *taxonomy.Category) error {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (id, sector_id, name, name_key, description, position)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, c.SectorID, c.Name, c.Key().Name, c.Description, c.Position,
	)
	if err != nil {
		return writeError(taxonomy.LevelCategory, c.Name, err)
	}
	c.ID = id
	return nil
}

// UpdateCategory also moves the category when SectorID changed.
func (s *Store) UpdateCategory(ctx context.Context, c taxonomy.Category) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE categories
		SET sector_id = $2, name = $3, name_key = $4, description = $5, position = $6, updated_at = now()
		WHERE id = $1`,
		c.ID, c.SectorID, c.Name, c.Key().Name, c.Description, c.Position,
	)
	if err != nil {
		return writeError(taxonomy.LevelCategory, c.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return deleteError(taxonomy.LevelCategory, err)
	}
	if tag.RowsAffected() == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}
