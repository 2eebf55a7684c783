package postgres

import (
	"context"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

const sectorColumns = `id, name, description, position, is_active`

func scanSector(row scanner) (taxonomy.Sector, error) {
	var s taxonomy.Sector
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Position, &s.IsActive)
	return s, err
}

func (s *Store) FindSector(ctx context.Context, key taxonomy.Key) (taxonomy.Sector, error) {
	sec, err := scanSector(s.pool.QueryRow(ctx,
		`SELECT `+sectorColumns+` FROM sectors WHERE name_key = $1`, key.Name))
	if err != nil {
		return taxonomy.Sector{}, readError(taxonomy.LevelSector, err)
	}
	return sec, nil
}

func (s *Store) GetSector(ctx context.Context, id uuid.UUID) (taxonomy.Sector, error) {
	sec, err := scanSector(s.pool.QueryRow(ctx,
		`SELECT `+sectorColumns+` FROM sectors WHERE id = $1`, id))
	if err != nil {
		return taxonomy.Sector{}, readError(taxonomy.LevelSector, err)
	}
	return sec, nil
}

func (s *Store) ListSectors(ctx context.Context) ([]taxonomy.Sector, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sectorColumns+` FROM sectors ORDER BY position, name`)
	if err != nil {
		return nil, readError(taxonomy.LevelSector, err)
	}
	out, err := collect(rows, scanSector)
	if err != nil {
		return nil, readError(taxonomy.LevelSector, err)
	}
	return out, nil
}

func (s *Store) CreateSector(ctx context.Context, sec *taxonomy.Sector) error {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sectors (id, name, name_key, description, position, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sec.Name, sec.Key().Name, sec.Description, sec.Position, sec.IsActive,
	)
	if err != nil {
		return writeError(taxonomy.LevelSector, sec.Name, err)
	}
	sec.ID = id
	return nil
}

func (s *Store) UpdateSector(ctx context.Context, sec taxonomy.Sector) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sectors
		SET name = $2, name_key = $3, description = $4, position = $5, is_active = $6, updated_at = now()
		WHERE id = $1`,
		sec.ID, sec.Name, sec.Key().Name, sec.Description, sec.Position, sec.IsActive,
	)
	if err != nil {
		return writeError(taxonomy.LevelSector, sec.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSector(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sectors WHERE id = $1`, id)
	if err != nil {
		return deleteError(taxonomy.LevelSector, err)
	}
	if tag.RowsAffected() == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}
