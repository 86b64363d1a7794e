package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smartflowhq/growth-engine/pkg/apperrors"
	"github.com/smartflowhq/growth-engine/pkg/database"
	"github.com/smartflowhq/growth-engine/pkg/models"
)

// ReminderLogRepository provides data access for the reminder dedup log.
// The table carries a unique constraint on (booking_id, channel, kind).
type ReminderLogRepository interface {
	Exists(ctx context.Context, bookingID, channel, kind string) (bool, error)
	// Record inserts a log entry. Returns apperrors.ErrConflict when an
	// entry for the same (booking_id, channel, kind) already exists.
	Record(ctx context.Context, entry *models.ReminderLog) error
}

type reminderLogRepository struct {
	db *database.DB
}

// NewReminderLogRepository creates a new ReminderLogRepository.
func NewReminderLogRepository(db *database.DB) ReminderLogRepository {
	return &reminderLogRepository{db: db}
}

var _ ReminderLogRepository = (*reminderLogRepository)(nil)

func (r *reminderLogRepository) Exists(ctx context.Context, bookingID, channel, kind string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM growth_reminder_log
			WHERE booking_id = $1 AND channel = $2 AND kind = $3
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, bookingID, channel, kind).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reminder log: %w", err)
	}

	return exists, nil
}

func (r *reminderLogRepository) Record(ctx context.Context, entry *models.ReminderLog) error {
	query := `
		INSERT INTO growth_reminder_log (tenant_id, booking_id, channel, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		entry.TenantID,
		entry.BookingID,
		entry.Channel,
		entry.Kind,
		entry.SentAt,
	)
	if err != nil {
		// Unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to record reminder: %w", err)
	}

	return nil
}
