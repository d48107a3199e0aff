package mq

import "time"

// RoutingKeyReminderDue is published on the events exchange for every due reminder.
const RoutingKeyReminderDue = "reminder.due"

type ReminderDuePayload struct {
	ReminderID string    `json:"reminder_id"`
	UserID     string    `json:"user_id"`
	DocumentID string    `json:"document_id"`
	ExpiresOn  string    `json:"expires_on"` // YYYY-MM-DD
	DaysBefore int       `json:"days_before"`
	DueAt      time.Time `json:"due_at"`
}
