package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smartflowhq/growth-engine/pkg/apperrors"
	"github.com/smartflowhq/growth-engine/pkg/database"
	"github.com/smartflowhq/growth-engine/pkg/models"
)

// ExperimentRepository provides data access for experiments. An experiment is
// persisted as a single record with its variants embedded; variants are not
// addressable on their own.
type ExperimentRepository interface {
	// Save inserts the experiment or overwrites the stored record wholesale.
	Save(ctx context.Context, exp *models.Experiment) error
	// GetByID returns apperrors.ErrNotFound when no record exists.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	// List returns a tenant's experiments sorted by creation time, newest
	// first. An empty status returns all of them.
	List(ctx context.Context, tenantID string, status string) ([]*models.Experiment, error)
}

type experimentRepository struct {
	db *database.DB
}

// NewExperimentRepository creates a new ExperimentRepository.
func NewExperimentRepository(db *database.DB) ExperimentRepository {
	return &experimentRepository{db: db}
}

var _ ExperimentRepository = (*experimentRepository)(nil)

func (r *experimentRepository) Save(ctx context.Context, exp *models.Experiment) error {
	variants, err := json.Marshal(exp.Variants)
	if err != nil {
		return fmt.Errorf("failed to marshal variants: %w", err)
	}

	query := `
		INSERT INTO growth_experiments (
			id, tenant_id, name, description, type, status, variants,
			start_date, end_date, created_at, primary_metric,
			minimum_sample_size, confidence_level, winner, statistical_significance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			variants = EXCLUDED.variants,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			primary_metric = EXCLUDED.primary_metric,
			minimum_sample_size = EXCLUDED.minimum_sample_size,
			confidence_level = EXCLUDED.confidence_level,
			winner = EXCLUDED.winner,
			statistical_significance = EXCLUDED.statistical_significance`

	_, err = r.db.Exec(ctx, query,
		exp.ID,
		exp.TenantID,
		exp.Name,
		exp.Description,
		exp.Type,
		exp.Status,
		variants,
		exp.StartDate,
		exp.EndDate,
		exp.CreatedAt,
		exp.PrimaryMetric,
		exp.MinimumSampleSize,
		exp.ConfidenceLevel,
		exp.Winner,
		exp.StatisticalSignificance,
	)
	if err != nil {
		return fmt.Errorf("failed to save experiment: %w", err)
	}

	return nil
}

func (r *experimentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	query := `
		SELECT id, tenant_id, name, description, type, status, variants,
		       start_date, end_date, created_at, primary_metric,
		       minimum_sample_size, confidence_level, winner, statistical_significance
		FROM growth_experiments
		WHERE id = $1`

	exp, err := scanExperiment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}

	return exp, nil
}

func (r *experimentRepository) List(ctx context.Context, tenantID string, status string) ([]*models.Experiment, error) {
	query := `
		SELECT id, tenant_id, name, description, type, status, variants,
		       start_date, end_date, created_at, primary_metric,
		       minimum_sample_size, confidence_level, winner, statistical_significance
		FROM growth_experiments
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*models.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, exp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating experiments: %w", err)
	}

	return experiments, nil
}

func scanExperiment(row pgx.Row) (*models.Experiment, error) {
	var exp models.Experiment
	var variants []byte

	err := row.Scan(
		&exp.ID,
		&exp.TenantID,
		&exp.Name,
		&exp.Description,
		&exp.Type,
		&exp.Status,
		&variants,
		&exp.StartDate,
		&exp.EndDate,
		&exp.CreatedAt,
		&exp.PrimaryMetric,
		&exp.MinimumSampleSize,
		&exp.ConfidenceLevel,
		&exp.Winner,
		&exp.StatisticalSignificance,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(variants, &exp.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}

	return &exp, nil
}
