package models

import "time"

// Contact represents a contact owned by a user. The dispatch engine reads
// contacts; it only ever writes the last-successful-send timestamp.
type Contact struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	FirstName  string     `json:"first_name"`
	Phone      string     `json:"phone"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
