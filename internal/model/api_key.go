package model

import "time"

// APIKey identifies an operator or automation client. Only the sha256 hash of
// the raw key is stored; the raw key is shown exactly once at creation time.
type APIKey struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}
