// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// Role is the authorization role of a user account.
type Role string

// User roles.
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// UserStatus is the lifecycle status of a user account.
type UserStatus string

// User statuses. Deleted is terminal.
const (
	UserActive  UserStatus = "ACTIVE"
	UserBlocked UserStatus = "BLOCKED"
	UserDeleted UserStatus = "DELETED"
)

// Terminal reports whether no further status transition is permitted.
func (s UserStatus) Terminal() bool { return s == UserDeleted }

// CanTransitionTo reports whether the user status transition is legal.
// ACTIVE and BLOCKED are mutually reachable; DELETED is reachable from
// both and absorbs everything.
func (s UserStatus) CanTransitionTo(to UserStatus) bool {
	if s.Terminal() || s == to {
		return false
	}
	switch to {
	case UserActive, UserBlocked, UserDeleted:
		return true
	}
	return false
}

// CardStatus is the lifecycle status of a card.
type CardStatus string

// Card statuses. Expired and Deleted are terminal.
const (
	CardActive  CardStatus = "ACTIVE"
	CardBlocked CardStatus = "BLOCKED"
	CardExpired CardStatus = "EXPIRED"
	CardDeleted CardStatus = "DELETED"
)

// Terminal reports whether no further status transition is permitted.
func (s CardStatus) Terminal() bool { return s == CardExpired || s == CardDeleted }

// CanTransitionTo reports whether the card status transition is legal:
// ACTIVE <-> BLOCKED, ACTIVE -> EXPIRED, {ACTIVE, BLOCKED} -> DELETED.
func (s CardStatus) CanTransitionTo(to CardStatus) bool {
	if s.Terminal() || s == to {
		return false
	}
	switch {
	case s == CardActive && to == CardBlocked:
		return true
	case s == CardBlocked && to == CardActive:
		return true
	case s == CardActive && to == CardExpired:
		return true
	case to == CardDeleted:
		return true
	}
	return false
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// User represents an account. The credential hash is opaque to the core;
// RefreshToken is the single active refresh credential (empty if none).
type User struct {
	ID           uuid.UUID // PK
	Username     string    // unique
	PwdHash      string    // argon2id, self-describing (salt embedded)
	Role         Role
	Status       UserStatus
	RefreshToken string
	CreatedAt    time.Time
}

// Card represents a bank card. NumberEnc is the card number in encoded
// form; the plaintext exists only transiently for display masking.
type Card struct {
	ID        uuid.UUID // PK
	NumberEnc string    // AEAD-encoded 16-digit number
	Expiry    time.Time // calendar date, last day of a month
	Status    CardStatus
	Balance   decimal.Decimal // >= 0 always
	OwnerID   uuid.UUID       // FK -> users.id
	CreatedAt time.Time
}

// CardView is the externally visible card shape: the number appears
// only masked.
type CardView struct {
	ID           uuid.UUID
	MaskedNumber string
	Expiry       time.Time
	Status       CardStatus
	Balance      decimal.Decimal
	OwnerID      uuid.UUID
}

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// Page is a zero-based page request.
type Page struct {
	Number int
	Size   int
}

// Page size bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the page request to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the page.
func (p Page) Offset() int { return p.Number * p.Size }
