package postgres

import (
	"context"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

const subcategoryColumns = `id, category_id, name, description`

func scanSubcategory(row scanner) (taxonomy.Subcategory, error) {
	var sub taxonomy.Subcategory
	err := row.Scan(&sub.ID, &sub.CategoryID, &sub.Name, &sub.Description)
	return sub, err
}

func (s *Store) FindSubcategory(ctx context.Context, key taxonomy.Key) (taxonomy.Subcategory, error) {
	sub, err := scanSubcategory(s.pool.QueryRow(ctx,
		`SELECT `+subcategoryColumns+` FROM subcategories WHERE category_id = $1 AND name_key = $2`,
		key.Parent, key.Name))
	if err != nil {
		return taxonomy.Subcategory{}, readError(taxonomy.LevelSubcategory, err)
	}
	return sub, nil
}

func (s *Store) GetSubcategory(ctx context.Context, id uuid.UUID) (taxonomy.Subcategory, error) {
	sub, err := scanSubcategory(s.pool.QueryRow(ctx,
		`SELECT `+subcategoryColumns+` FROM subcategories WHERE id = $1`, id))
	if err != nil {
		return taxonomy.Subcategory{}, readError(taxonomy.LevelSubcategory, err)
	}
	return sub, nil
}

func (s *Store) ListSubcategories(ctx context.Context, categoryID uuid.UUID) ([]taxonomy.Subcategory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subcategoryColumns+` FROM subcategories WHERE category_id = $1 ORDER BY name`, categoryID)
	if err != nil {
		return nil, readError(taxonomy.LevelSubcategory, err)
	}
	out, err := collect(rows, scanSubcategory)
	if err != nil {
		return nil, readError(taxonomy.LevelSubcategory, err)
	}
	return out, nil
}

func (s *Store) CreateSubcategory(ctx context.Context, sub *taxonomy.Subcategory) error {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subcategories (id, category_id, name, name_key, description)
		VALUES ($1, $2, $3, $4, $5)`,
		id, sub.CategoryID, sub.Name, sub.Key().Name, sub.Description,
	)
	if err != nil {
		return writeError(taxonomy.LevelSubcategory, sub.Name, err)
	}
	sub.ID = id
	return nil
}

func (s *Store) UpdateSubcategory(ctx context.Context, sub taxonomy.Subcategory) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subcategories
		SET category_id = $2, name = $3, name_key = $4, description = $5, updated_at = now()
		WHERE id = $1`,
		sub.ID, sub.CategoryID, sub.Name, sub.Key().Name, sub.Description,
	)
	if err != nil {
		return writeError(taxonomy.LevelSubcategory, sub.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSubcategory(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subcategories WHERE id = $1`, id)
	if err != nil {
		return deleteError(taxonomy.LevelSubcategory, err)
	}
	if tag.RowsAffected() == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}
