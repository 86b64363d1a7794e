package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/smartflowhq/growth-engine/pkg/database"
	"github.com/smartflowhq/growth-engine/pkg/models"
)

// BookingRepository reads bookings owned by the booking subsystem. The
// reminder scheduler never writes bookings.
type BookingRepository interface {
	// ListConfirmedBetween returns a tenant's confirmed bookings with
	// start_at in [from, to).
	ListConfirmedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*models.Booking, error)
}

type bookingRepository struct {
	db *database.DB
}

// NewBookingRepository creates a new BookingRepository.
func NewBookingRepository(db *database.DB) BookingRepository {
	return &bookingRepository{db: db}
}

var _ BookingRepository = (*bookingRepository)(nil)

func (r *bookingRepository) ListConfirmedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*models.Booking, error) {
	query := `
		SELECT id, tenant_id, customer_name, customer_email, customer_phone, start_at, status
		FROM growth_bookings
		WHERE tenant_id = $1
		  AND status = $2
		  AND start_at >= $3
		  AND start_at < $4
		ORDER BY start_at`

	rows, err := r.db.Query(ctx, query, tenantID, models.BookingStatusConfirmed, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		err := rows.Scan(&b.ID, &b.TenantID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.StartAt, &b.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}
