package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/apperrors"
	"github.com/smartflowhq/growth-engine/pkg/models"
)

type mockTenantRepo struct {
	ids []string
	err error
}

func (m *mockTenantRepo) ListIDs(_ context.Context) ([]string, error) {
	return m.ids, m.err
}

type mockSettingsRepo struct {
	byTenant map[string]*models.NotificationSettings
	errFor   map[string]error
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{
		byTenant: make(map[string]*models.NotificationSettings),
		errFor:   make(map[string]error),
	}
}

func (m *mockSettingsRepo) GetOrCreate(_ context.Context, tenantID string) (*models.NotificationSettings, error) {
	if err := m.errFor[tenantID]; err != nil {
		return nil, err
	}
	if s, ok := m.byTenant[tenantID]; ok {
		return s, nil
	}
	s := models.DefaultNotificationSettings(tenantID)
	m.byTenant[tenantID] = s
	return s, nil
}

func (m *mockSettingsRepo) Update(_ context.Context, settings *models.NotificationSettings) error {
	m.byTenant[settings.TenantID] = settings
	return nil
}

type mockBookingRepo struct {
	byTenant map[string][]*models.Booking
	from, to time.Time
}

func (m *mockBookingRepo) ListConfirmedBetween(_ context.Context, tenantID string, from, to time.Time) ([]*models.Booking, error) {
	m.from, m.to = from, to
	var out []*models.Booking
	for _, b := range m.byTenant[tenantID] {
		if b.Status != models.BookingStatusConfirmed {
			continue
		}
		if !b.StartAt.Before(from) && b.StartAt.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type mockReminderLogRepo struct {
	entries   []*models.ReminderLog
	recordErr error
}

func (m *mockReminderLogRepo) key(bookingID, channel, kind string) int {
	for i, e := range m.entries {
		if e.BookingID == bookingID && e.Channel == channel && e.Kind == kind {
			return i
		}
	}
	return -1
}

func (m *mockReminderLogRepo) Exists(_ context.Context, bookingID, channel, kind string) (bool, error) {
	return m.key(bookingID, channel, kind) >= 0, nil
}

func (m *mockReminderLogRepo) Record(_ context.Context, entry *models.ReminderLog) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	if m.key(entry.BookingID, entry.Channel, entry.Kind) >= 0 {
		return apperrors.ErrConflict
	}
	m.entries = append(m.entries, entry)
	return nil
}

type sentMessage struct {
	to   string
	body string
}

type mockEmailSender struct {
	sent    []sentMessage
	sendErr error
	dead    bool // simulates an unconfigured relay
}

func (m *mockEmailSender) SendEmail(_ context.Context, to, _ string, body string) (bool, error) {
	if m.sendErr != nil {
		return false, m.sendErr
	}
	if m.dead {
		return false, nil
	}
	m.sent = append(m.sent, sentMessage{to: to, body: body})
	return true, nil
}

type mockSMSSender struct {
	configured bool
	sent       []sentMessage
}

func (m *mockSMSSender) Configured() bool { return m.configured }

func (m *mockSMSSender) SendSMS(_ context.Context, to, body string) (bool, error) {
	if !m.configured {
		return false, nil
	}
	m.sent = append(m.sent, sentMessage{to: to, body: body})
	return true, nil
}

type reminderFixture struct {
	tenants  *mockTenantRepo
	settings *mockSettingsRepo
	bookings *mockBookingRepo
	log      *mockReminderLogRepo
	email    *mockEmailSender
	sms      *mockSMSSender
	svc      ReminderService
}

func newReminderFixture(tenantIDs ...string) *reminderFixture {
	f := &reminderFixture{
		tenants:  &mockTenantRepo{ids: tenantIDs},
		settings: newMockSettingsRepo(),
		bookings: &mockBookingRepo{byTenant: make(map[string][]*models.Booking)},
		log:      &mockReminderLogRepo{},
		email:    &mockEmailSender{},
		sms:      &mockSMSSender{},
	}
	f.svc = NewReminderService(
		f.tenants, f.settings, f.bookings, f.log,
		f.email, f.sms, nil, 5*time.Minute, zap.NewNop())
	return f
}

// dueBooking returns a confirmed booking whose start time falls inside the
// dispatch window for the default 24-hour lead time as of now.
func dueBooking(id, tenantID string, now time.Time) *models.Booking {
	return &models.Booking{
		ID:            id,
		TenantID:      tenantID,
		CustomerName:  "Jamie",
		CustomerEmail: "jamie@example.com",
		CustomerPhone: "+15551234567",
		StartAt:       now.Add(24*time.Hour + time.Minute),
		Status:        models.BookingStatusConfirmed,
	}
}

func TestReminderService_SendsAndLogsEmail(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")
	f.bookings.byTenant["tenant-1"] = []*models.Booking{dueBooking("bk-1", "tenant-1", now)}

	f.svc.Sweep(context.Background(), now)

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "jamie@example.com", f.email.sent[0].to)
	assert.Contains(t, f.email.sent[0].body, "Jamie")

	require.Len(t, f.log.entries, 1)
	entry := f.log.entries[0]
	assert.Equal(t, "bk-1", entry.BookingID)
	assert.Equal(t, models.ReminderChannelEmail, entry.Channel)
	assert.Equal(t, models.ReminderKindBefore, entry.Kind)
	assert.Equal(t, "tenant-1", entry.TenantID)

	// SMS is off by default and the sender is unconfigured.
	assert.Empty(t, f.sms.sent)
}

func TestReminderService_WindowBounds(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")

	f.svc.Sweep(context.Background(), now)

	assert.Equal(t, now.Add(24*time.Hour), f.bookings.from)
	assert.Equal(t, now.Add(24*time.Hour+5*time.Minute), f.bookings.to)
}

func TestReminderService_CustomLeadTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")
	f.settings.byTenant["tenant-1"] = &models.NotificationSettings{
		TenantID:            "tenant-1",
		EmailEnabled:        true,
		ReminderHoursBefore: 2,
	}

	f.svc.Sweep(context.Background(), now)

	assert.Equal(t, now.Add(2*time.Hour), f.bookings.from)
	assert.Equal(t, now.Add(2*time.Hour+5*time.Minute), f.bookings.to)
}

func TestReminderService_SecondSweepDoesNotResend(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")
	f.bookings.byTenant["tenant-1"] = []*models.Booking{dueBooking("bk-1", "tenant-1", now)}

	f.svc.Sweep(context.Background(), now)
	f.svc.Sweep(context.Background(), now)

	assert.Len(t, f.email.sent, 1)
	assert.Len(t, f.log.entries, 1)
}

func TestReminderService_MissingEmailSkipsSilently(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")
	b := dueBooking("bk-1", "tenant-1", now)
	b.CustomerEmail = ""
	f.bookings.byTenant["tenant-1"] = []*models.Booking{b}

	f.svc.Sweep(context.Background(), now)

	assert.Empty(t, f.email.sent)
	assert.Empty(t, f.log.entries)
}

func TestReminderService_SMSGating(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("enabled but sender unconfigured", func(t *testing.T) {
		f := newReminderFixture("tenant-1")
		f.settings.byTenant["tenant-1"] = &models.NotificationSettings{
			TenantID:            "tenant-1",
			SMSEnabled:          true,
			ReminderHoursBefore: 24,
		}
		f.bookings.byTenant["tenant-1"] = []*models.Booking{dueBooking("bk-1", "tenant-1", now)}

		f.svc.Sweep(context.Background(), now)

		assert.Empty(t, f.sms.sent)
		assert.Empty(t, f.log.entries)
	})

	t.Run("enabled and configured", func(t *testing.T) {
		f := newReminderFixture("tenant-1")
		f.sms.configured = true
		f.settings.byTenant["tenant-1"] = &models.NotificationSettings{
			TenantID:            "tenant-1",
			SMSEnabled:          true,
			ReminderHoursBefore: 24,
		}
		f.bookings.byTenant["tenant-1"] = []*models.Booking{dueBooking("bk-1", "tenant-1", now)}

		f.svc.Sweep(context.Background(), now)

		require.Len(t, f.sms.sent, 1)
		assert.Equal(t, "+15551234567", f.sms.sent[0].to)
		require.Len(t, f.log.entries, 1)
		assert.Equal(t, models.ReminderChannelSMS, f.log.entries[0].Channel)
	})

	t.Run("configured but no phone on booking", func(t *testing.T) {
		f := newReminderFixture("tenant-1")
		f.sms.configured = true
		f.settings.byTenant["tenant-1"] = &models.NotificationSettings{
			TenantID:            "tenant-1",
			SMSEnabled:          true,
			ReminderHoursBefore: 24,
		}
		b := dueBooking("bk-1", "tenant-1", now)
		b.CustomerPhone = ""
		f.bookings.byTenant["tenant-1"] = []*models.Booking{b}

		f.svc.Sweep(context.Background(), now)

		assert.Empty(t, f.sms.sent)
		assert.Empty(t, f.log.entries)
	})
}

func TestReminderService_BothChannels(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")
	f.sms.configured = true
	f.settings.byTenant["tenant-1"] = &models.NotificationSettings{
		TenantID:            "tenant-1",
		EmailEnabled:        true,
		SMSEnabled:          true,
		ReminderHoursBefore: 24,
	}
	f.bookings.byTenant["tenant-1"] = []*models.Booking{dueBooking("bk-1", "tenant-1", now)}

	f.svc.Sweep(context.Background(), now)

	assert.Len(t, f.email.sent, 1)
	assert.Len(t, f.sms.sent, 1)
	assert.Len(t, f.log.entries, 2)
}

func TestReminderService_SendFailureLeavesLogUntouched(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")
	f.email.sendErr = errors.New("relay refused connection")
	f.bookings.byTenant["tenant-1"] = []*models.Booking{dueBooking("bk-1", "tenant-1", now)}

	f.svc.Sweep(context.Background(), now)
	assert.Empty(t, f.log.entries)

	// Once the relay recovers, the next sweep retries and records.
	f.email.sendErr = nil
	f.svc.Sweep(context.Background(), now)
	assert.Len(t, f.email.sent, 1)
	assert.Len(t, f.log.entries, 1)
}

func TestReminderService_UnconfiguredRelayDoesNotRecord(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")
	f.email.dead = true
	f.bookings.byTenant["tenant-1"] = []*models.Booking{dueBooking("bk-1", "tenant-1", now)}

	f.svc.Sweep(context.Background(), now)

	assert.Empty(t, f.email.sent)
	assert.Empty(t, f.log.entries)
}

func TestReminderService_RecordConflictTolerated(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-1")
	f.log.recordErr = apperrors.ErrConflict
	f.bookings.byTenant["tenant-1"] = []*models.Booking{dueBooking("bk-1", "tenant-1", now)}

	// A concurrent scheduler instance won the insert race; this one just
	// moves on.
	f.svc.Sweep(context.Background(), now)
	assert.Len(t, f.email.sent, 1)
}

func TestReminderService_TenantFailureIsolation(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := newReminderFixture("tenant-bad", "tenant-good")
	f.settings.errFor["tenant-bad"] = errors.New("settings table locked")
	f.bookings.byTenant["tenant-good"] = []*models.Booking{dueBooking("bk-2", "tenant-good", now)}

	f.svc.Sweep(context.Background(), now)

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "jamie@example.com", f.email.sent[0].to)
	require.Len(t, f.log.entries, 1)
	assert.Equal(t, "tenant-good", f.log.entries[0].TenantID)
}

func TestReminderService_ListTenantsFailureAborts(t *testing.T) {
	f := newReminderFixture()
	f.tenants.err = errors.New("db down")

	// Must not panic; nothing dispatched.
	f.svc.Sweep(context.Background(), time.Now().UTC())
	assert.Empty(t, f.email.sent)
}
