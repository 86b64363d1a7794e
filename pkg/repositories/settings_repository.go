package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smartflowhq/growth-engine/pkg/database"
	"github.com/smartflowhq/growth-engine/pkg/models"
)

// SettingsRepository provides data access for per-tenant notification settings.
type SettingsRepository interface {
	// GetOrCreate returns the tenant's settings, lazily creating the default
	// row on first touch.
	GetOrCreate(ctx context.Context, tenantID string) (*models.NotificationSettings, error)
	Update(ctx context.Context, settings *models.NotificationSettings) error
}

type settingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *database.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

var _ SettingsRepository = (*settingsRepository)(nil)

func (r *settingsRepository) GetOrCreate(ctx context.Context, tenantID string) (*models.NotificationSettings, error) {
	settings, err := r.get(ctx, tenantID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get notification settings: %w", err)
	}

	defaults := models.DefaultNotificationSettings(tenantID)

	query := `
		INSERT INTO growth_notification_settings (
			tenant_id, email_enabled, sms_enabled, reminder_hours_before, created_at, updated_at
		) VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (tenant_id) DO UPDATE SET tenant_id = EXCLUDED.tenant_id
		RETURNING tenant_id, email_enabled, sms_enabled, reminder_hours_before, created_at, updated_at`

	settings = &models.NotificationSettings{}
	err = r.db.QueryRow(ctx, query,
		defaults.TenantID,
		defaults.EmailEnabled,
		defaults.SMSEnabled,
		defaults.ReminderHoursBefore,
	).Scan(
		&settings.TenantID,
		&settings.EmailEnabled,
		&settings.SMSEnabled,
		&settings.ReminderHoursBefore,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification settings: %w", err)
	}

	return settings, nil
}

func (r *settingsRepository) Update(ctx context.Context, settings *models.NotificationSettings) error {
	query := `
		INSERT INTO growth_notification_settings (
			tenant_id, email_enabled, sms_enabled, reminder_hours_before, created_at, updated_at
		) VALUES ($1, $2, $3, $4, now(), $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			reminder_hours_before = EXCLUDED.reminder_hours_before,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		settings.TenantID,
		settings.EmailEnabled,
		settings.SMSEnabled,
		settings.ReminderHoursBefore,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update notification settings: %w", err)
	}

	return nil
}

func (r *settingsRepository) get(ctx context.Context, tenantID string) (*models.NotificationSettings, error) {
	query := `
		SELECT tenant_id, email_enabled, sms_enabled, reminder_hours_before, created_at, updated_at
		FROM growth_notification_settings
		WHERE tenant_id = $1`

	settings := &models.NotificationSettings{}
	err := r.db.QueryRow(ctx, query, tenantID).Scan(
		&settings.TenantID,
		&settings.EmailEnabled,
		&settings.SMSEnabled,
		&settings.ReminderHoursBefore,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return settings, nil
}
