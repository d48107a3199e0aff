package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reminder is one (document, days-before) notice. DispatchedAt is terminal
// once set.
type Reminder struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	DocumentID   uuid.UUID  `json:"document_id"`
	ExpiresOn    time.Time  `json:"expires_on"`
	DaysBefore   int        `json:"days_before"`
	DueAt        time.Time  `json:"due_at"`
	CreatedAt    time.Time  `json:"created_at"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
}

// Notice is what a notifier receives for a due reminder.
type Notice struct {
	ReminderID uuid.UUID
	UserID     uuid.UUID
	DocumentID uuid.UUID
	ExpiresOn  time.Time
	DaysBefore int
	DueAt      time.Time
}

// DueAtFor returns expiresOn at 00:00 UTC minus daysBefore days.
func DueAtFor(expiresOn time.Time, daysBefore int) time.Time {
	return AddDays(expiresOn, -daysBefore)
}

func NewReminder(userID, documentID uuid.UUID, expiresOn time.Time, daysBefore int, now time.Time) (*Reminder, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidReminder)
	}
	if documentID == uuid.Nil {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidReminder)
	}
	if daysBefore <= 0 {
		return nil, fmt.Errorf("%w: days before must be > 0, got %d", ErrInvalidReminder, daysBefore)
	}

	expiresOn = DateOf(expiresOn)
	return &Reminder{
		ID:         uuid.New(),
		UserID:     userID,
		DocumentID: documentID,
		ExpiresOn:  expiresOn,
		DaysBefore: daysBefore,
		DueAt:      DueAtFor(expiresOn, daysBefore),
		CreatedAt:  now.UTC(),
	}, nil
}

func (r *Reminder) IsDispatched() bool {
	return r.DispatchedAt != nil
}

// IsDue reports whether r is pending and its due time has passed.
func (r *Reminder) IsDue(now time.Time) bool {
	return !r.IsDispatched() && !r.DueAt.After(now)
}

// MarkDispatched sets DispatchedAt once; later calls return false and change nothing.
func (r *Reminder) MarkDispatched(at time.Time) bool {
	if r.DispatchedAt != nil {
		return false
	}
	at = at.UTC()
	r.DispatchedAt = &at
	return true
}

func (r *Reminder) Notice() Notice {
	return Notice{
		ReminderID: r.ID,
		UserID:     r.UserID,
		DocumentID: r.DocumentID,
		ExpiresOn:  r.ExpiresOn,
		DaysBefore: r.DaysBefore,
		DueAt:      r.DueAt,
	}
}
