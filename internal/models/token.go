package models

import "time"

// RefreshToken represents a persisted refresh token session.
type RefreshToken struct {
	ID         string     `db:"id" json:"id"`
	EmployeeID string     `db:"employee_id" json:"employee_id"`
	Token      string     `db:"token" json:"token"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	Revoked    bool       `db:"revoked" json:"revoked"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress  string     `db:"ip_address" json:"ip_address"`
	UserAgent  string     `db:"user_agent" json:"user_agent"`
}

// TokenStatus is the lifecycle state of a one-time token.
type TokenStatus string

const (
	TokenValid   TokenStatus = "Valid"
	TokenExpired TokenStatus = "Expired"
)

// TokenPurpose distinguishes the one-time token tables.
type TokenPurpose string

const (
	TokenPurposeActivation    TokenPurpose = "activation"
	TokenPurposePasswordReset TokenPurpose = "password_reset"
)

// OneTimeToken is an emailed token used for account activation or password reset.
type OneTimeToken struct {
	ID         string      `db:"id" json:"id"`
	EmployeeID string      `db:"employee_id" json:"employee_id"`
	Email      string      `db:"email" json:"email"`
	Token      string      `db:"token" json:"-"`
	Status     TokenStatus `db:"status" json:"status"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time   `db:"expires_at" json:"expires_at"`
}

// Usable reports whether the token may still be consumed at the given instant.
func (t *OneTimeToken) Usable(now time.Time) bool {
	return t.Status == TokenValid && now.Before(t.ExpiresAt)
}
