package identity

import (
	"time"
)

// Account statuses. Patients register Active, staff accounts Pending;
// repeated late cancellations escalate a patient to Malicious and then
// Blocked.
const (
	StatusBlocked   = 0
	StatusPending   = 1
	StatusActive    = 2
	StatusMalicious = 3
)

// Roles recognised by the API.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// User maps to the app_user table.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Role         string     `db:"role" json:"role"`
	Status       int        `db:"status" json:"status"`
	Expertise    *string    `db:"expertise" json:"expertise,omitempty"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	City         *string    `db:"city" json:"city,omitempty"`
	Country      *string    `db:"country" json:"country,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsBlocked reports whether the account may no longer use the system.
func (u *User) IsBlocked() bool {
	return u.Status == StatusBlocked
}

// StatusName returns the label used in API responses.
func StatusName(status int) string {
	switch status {
	case StatusBlocked:
		return "blocked"
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusMalicious:
		return "malicious"
	default:
		return "unknown"
	}
}
