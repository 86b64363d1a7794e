package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/apperrors"
	"github.com/smartflowhq/growth-engine/pkg/logging"
	"github.com/smartflowhq/growth-engine/pkg/models"
	"github.com/smartflowhq/growth-engine/pkg/notify"
	"github.com/smartflowhq/growth-engine/pkg/repositories"
)

// reminderCacheTTL bounds how long dedup keys live in Redis. The log table
// remains the source of truth; the cache only saves a query per candidate.
const reminderCacheTTL = 48 * time.Hour

// ReminderService scans bookings across tenants and dispatches at-most-once
// reminders per (booking, channel, kind) through the configured notifiers.
type ReminderService interface {
	// Sweep runs one pass over all tenants as of the given time.
	Sweep(ctx context.Context, now time.Time)

	// RunScheduler starts a background goroutine that sweeps on the
	// service's configured interval. It runs immediately on startup, then
	// repeats every interval. Cancel the context to stop the scheduler.
	RunScheduler(ctx context.Context)
}

type reminderService struct {
	tenants  repositories.TenantRepository
	settings repositories.SettingsRepository
	bookings repositories.BookingRepository
	log      repositories.ReminderLogRepository
	email    notify.EmailSender
	sms      notify.SMSSender
	cache    *redis.Client // optional; nil disables the fast path
	logger   *zap.Logger

	// interval is both the sweep period and the dispatch window width.
	// Keeping them equal means consecutive windows tile the timeline, so a
	// booking is never skipped between runs. Widening the window is safe
	// (the dedup log absorbs overlap); narrowing it below the period drops
	// bookings.
	interval time.Duration
}

// NewReminderService creates a new ReminderService. cache may be nil.
func NewReminderService(
	tenants repositories.TenantRepository,
	settings repositories.SettingsRepository,
	bookings repositories.BookingRepository,
	log repositories.ReminderLogRepository,
	email notify.EmailSender,
	sms notify.SMSSender,
	cache *redis.Client,
	interval time.Duration,
	logger *zap.Logger,
) ReminderService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &reminderService{
		tenants:  tenants,
		settings: settings,
		bookings: bookings,
		log:      log,
		email:    email,
		sms:      sms,
		cache:    cache,
		interval: interval,
		logger:   logger.Named("reminder-service"),
	}
}

var _ ReminderService = (*reminderService)(nil)

func (s *reminderService) RunScheduler(ctx context.Context) {
	go func() {
		s.logger.Info("Reminder scheduler started", zap.Duration("interval", s.interval))

		// Run immediately on startup, then at each interval
		s.Sweep(ctx, time.Now().UTC())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Reminder scheduler stopped")
				return
			case <-ticker.C:
				s.Sweep(ctx, time.Now().UTC())
			}
		}
	}()
}

func (s *reminderService) Sweep(ctx context.Context, now time.Time) {
	tenantIDs, err := s.tenants.ListIDs(ctx)
	if err != nil {
		s.logger.Error("Reminder sweep: failed to list tenants", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			return
		}

		// One bad tenant must not halt the sweep.
		if err := s.sweepTenant(ctx, tenantID, now); err != nil {
			s.logger.Error("Reminder sweep: tenant processing failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
	}
}

func (s *reminderService) sweepTenant(ctx context.Context, tenantID string, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during tenant sweep: %v", r)
		}
	}()

	settings, err := s.settings.GetOrCreate(ctx, tenantID)
	if err != nil {
		return err
	}

	hours := settings.ReminderHoursBefore
	if hours <= 0 {
		hours = models.DefaultReminderHoursBefore
	}

	// Bookings that start between (now + lead time) and (now + lead time +
	// one sweep interval) are due for their "before" reminder.
	winStart := now.Add(time.Duration(hours) * time.Hour)
	winEnd := winStart.Add(s.interval)

	candidates, err := s.bookings.ListConfirmedBetween(ctx, tenantID, winStart, winEnd)
	if err != nil {
		return err
	}

	for _, booking := range candidates {
		if settings.EmailEnabled && booking.CustomerEmail != "" {
			s.dispatch(ctx, booking, models.ReminderChannelEmail)
		}
		if settings.SMSEnabled && s.sms.Configured() && booking.CustomerPhone != "" {
			s.dispatch(ctx, booking, models.ReminderChannelSMS)
		}
	}

	return nil
}

// dispatch sends one "before" reminder on the given channel unless the dedup
// log already has it. The send happens before the log insert, so a crash in
// between re-sends on the next sweep: delivery is at-least-once by design.
func (s *reminderService) dispatch(ctx context.Context, booking *models.Booking, channel string) {
	if s.alreadySent(ctx, booking.ID, channel) {
		return
	}

	var sent bool
	var err error
	switch channel {
	case models.ReminderChannelEmail:
		body := fmt.Sprintf("Reminder: %s, you have an appointment at %s.",
			booking.CustomerName, booking.StartAt.Format(time.RFC1123))
		sent, err = s.email.SendEmail(ctx, booking.CustomerEmail, "Appointment reminder", body)
	case models.ReminderChannelSMS:
		body := fmt.Sprintf("Reminder: your appointment is at %s.",
			booking.StartAt.Format(time.RFC1123))
		sent, err = s.sms.SendSMS(ctx, booking.CustomerPhone, body)
	default:
		return
	}

	if err != nil {
		// Leave the log untouched so the booking stays a candidate until
		// the send succeeds or the window passes.
		s.logger.Error("Reminder send failed",
			zap.String("booking_id", booking.ID),
			zap.String("channel", channel),
			zap.String("error", logging.SanitizeError(err)))
		return
	}
	if !sent {
		s.logger.Debug("Reminder channel not configured, skipping",
			zap.String("booking_id", booking.ID),
			zap.String("channel", channel))
		return
	}

	entry := &models.ReminderLog{
		TenantID:  booking.TenantID,
		BookingID: booking.ID,
		Channel:   channel,
		Kind:      models.ReminderKindBefore,
		SentAt:    time.Now().UTC(),
	}
	if err := s.log.Record(ctx, entry); err != nil && !errors.Is(err, apperrors.ErrConflict) {
		s.logger.Error("Failed to record reminder",
			zap.String("booking_id", booking.ID),
			zap.String("channel", channel),
			zap.Error(err))
		return
	}

	s.markSent(ctx, booking.ID, channel)

	s.logger.Info("Reminder sent",
		zap.String("tenant_id", booking.TenantID),
		zap.String("booking_id", booking.ID),
		zap.String("channel", channel))
}

func reminderCacheKey(bookingID, channel string) string {
	return fmt.Sprintf("reminder:%s:%s:%s", bookingID, channel, models.ReminderKindBefore)
}

// alreadySent consults the Redis fast path first, then the dedup log.
// Cache errors fall through to the database rather than blocking dispatch.
func (s *reminderService) alreadySent(ctx context.Context, bookingID, channel string) bool {
	if s.cache != nil {
		n, err := s.cache.Exists(ctx, reminderCacheKey(bookingID, channel)).Result()
		if err == nil && n > 0 {
			return true
		}
	}

	exists, err := s.log.Exists(ctx, bookingID, channel, models.ReminderKindBefore)
	if err != nil {
		s.logger.Error("Failed to check reminder log",
			zap.String("booking_id", bookingID),
			zap.String("channel", channel),
			zap.Error(err))
		// Assume sent on lookup failure: the unique constraint still
		// protects correctness and we avoid double-sending blindly.
		return true
	}
	if exists {
		s.markSent(ctx, bookingID, channel)
	}

	return exists
}

func (s *reminderService) markSent(ctx context.Context, bookingID, channel string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, reminderCacheKey(bookingID, channel), "1", reminderCacheTTL).Err(); err != nil {
		s.logger.Debug("Failed to populate reminder cache", zap.Error(err))
	}
}
