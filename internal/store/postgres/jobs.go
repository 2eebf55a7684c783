package postgres

import (
	"context"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

const jobColumns = `id, subcategory_id, name, description, estimated_time, price`

func scanJob(row scanner) (taxonomy.Job, error) {
	var j taxonomy.Job
	err := row.Scan(&j.ID, &j.SubcategoryID, &j.Name, &j.Description, &j.EstimatedTime, &j.Price)
	return j, err
}

func (s *Store) FindJob(ctx context.Context, key taxonomy.Key) (taxonomy.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE subcategory_id = $1 AND name_key = $2`,
		key.Parent, key.Name))
	if err != nil {
		return taxonomy.Job{}, readError(taxonomy.LevelJob, err)
	}
	return j, nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (taxonomy.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return taxonomy.Job{}, readError(taxonomy.LevelJob, err)
	}
	return j, nil
}

func (s *Store) ListJobs(ctx context.Context, subcategoryID uuid.UUID) ([]taxonomy.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE subcategory_id = $1 ORDER BY name`, subcategoryID)
	if err != nil {
		return nil, readError(taxonomy.LevelJob, err)
	}
	out, err := collect(rows, scanJob)
	if err != nil {
		return nil, readError(taxonomy.LevelJob, err)
	}
	return out, nil
}

func (s *Store) CreateJob(ctx context.Context, j *taxonomy.Job) error {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, subcategory_id, name, name_key, description, estimated_time, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, j.SubcategoryID, j.Name, j.Key().Name, j.Description, j.EstimatedTime, j.Price,
	)
	if err != nil {
		return writeError(taxonomy.LevelJob, j.Name, err)
	}
	j.ID = id
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, j taxonomy.Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET subcategory_id = $2, name = $3, name_key = $4, description = $5,
		    estimated_time = $6, price = $7, updated_at = now()
		WHERE id = $1`,
		j.ID, j.SubcategoryID, j.Name, j.Key().Name, j.Description, j.EstimatedTime, j.Price,
	)
	if err != nil {
		return writeError(taxonomy.LevelJob, j.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return deleteError(taxonomy.LevelJob, err)
	}
	if tag.RowsAffected() == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}
