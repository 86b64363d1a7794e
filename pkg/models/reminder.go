package models

import "time"

// Reminder channels.
const (
	ReminderChannelEmail = "email"
	ReminderChannelSMS   = "sms"
)

// Reminder kinds relative to the booking start time.
const (
	ReminderKindBefore = "before"
	ReminderKindAfter  = "after"
)

// DefaultReminderHoursBefore is the reminder lead time applied when a tenant
// has no explicit setting.
const DefaultReminderHoursBefore = 24

// Booking statuses relevant to reminder dispatch.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// NotificationSettings holds a tenant's reminder configuration.
// Stored in growth_notification_settings, one row per tenant.
type NotificationSettings struct {
	TenantID            string    `json:"tenant_id"`
	EmailEnabled        bool      `json:"email_enabled"`
	SMSEnabled          bool      `json:"sms_enabled"`
	ReminderHoursBefore int       `json:"reminder_hours_before"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultNotificationSettings returns the settings a tenant gets on first touch.
func DefaultNotificationSettings(tenantID string) *NotificationSettings {
	return &NotificationSettings{
		TenantID:            tenantID,
		EmailEnabled:        true,
		SMSEnabled:          false,
		ReminderHoursBefore: DefaultReminderHoursBefore,
	}
}

// Booking is an appointment owned by the booking subsystem. The reminder
// scheduler only ever reads bookings.
type Booking struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	StartAt       time.Time `json:"start_at"`
	Status        string    `json:"status"`
}

// ReminderLog records one dispatched reminder. The storage layer enforces
// uniqueness on (booking_id, channel, kind), which is what makes dispatch
// idempotent across scheduler runs.
type ReminderLog struct {
	TenantID  string    `json:"tenant_id"`
	BookingID string    `json:"booking_id"`
	Channel   string    `json:"channel"`
	Kind      string    `json:"kind"`
	SentAt    time.Time `json:"sent_at"`
}
