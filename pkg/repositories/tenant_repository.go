package repositories

import (
	"context"
	"fmt"

	"github.com/smartflowhq/growth-engine/pkg/database"
)

// TenantRepository enumerates tenants for the reminder sweep.
type TenantRepository interface {
	ListIDs(ctx context.Context) ([]string, error)
}

type tenantRepository struct {
	db *database.DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *database.DB) TenantRepository {
	return &tenantRepository{db: db}
}

var _ TenantRepository = (*tenantRepository)(nil)

func (r *tenantRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM growth_tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}

	return ids, nil
}
