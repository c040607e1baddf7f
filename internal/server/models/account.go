// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a registered user. PasswordHash holds the bcrypt digest and is
// never rendered to clients.
type Account struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	PasswordHash   string
	IsVerified     bool
	AccountCreated time.Time
	AccountUpdated time.Time

	// Verification token state. All three are nil once the account has been
	// verified.
	VerificationToken *string
	TokenIssuedAt     *time.Time
	TokenExpiresAt    *time.Time
}
