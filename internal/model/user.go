package model

import "time"

// Tier is a user's subscription level.
type Tier string

const (
	TierFree    Tier = "FREE"
	TierPro     Tier = "PRO"
	TierPremium Tier = "PREMIUM"
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierFree, TierPro, TierPremium}

// TierLimits is the number of short URLs a user may create per calendar month.
var TierLimits = map[Tier]int{
	TierFree:    5,
	TierPro:     100,
	TierPremium: 2000,
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := TierLimits[t]
	return ok
}

// TierLimit is one row of the tier limit table.
type TierLimit struct {
	Tier  Tier `json:"tier"`
	Limit int  `json:"limit"`
}

// User is a registered account.
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	DisplayUsername string    `json:"display_username"`
	Tier            Tier      `json:"tier"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UserUpdate holds the mutable user fields. Nil fields are left unchanged.
type UserUpdate struct {
	DisplayUsername *string
	Tier            *Tier
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=20"`
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateTierRequest is the body of PUT /auth/tier
type UpdateTierRequest struct {
	Tier Tier `json:"tier" validate:"required,oneof=FREE PRO PREMIUM"`
}

// UpdateUserRequest is the body of PATCH /users/me
type UpdateUserRequest struct {
	DisplayUsername string `json:"display_username" validate:"required,min=1,max=50"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Credential is a locally stored password hash.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
