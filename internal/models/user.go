package models

import "time"

// User is a back-office staff account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is a persisted refresh token record. Only the sha256 hash of
// the token secret is stored; the full token never touches the database.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// Region groups cities for listing filters.
type Region struct {
	Name   string   `json:"name"`
	Cities []string `json:"cities"`
}

type RegionConfig struct {
	Regions []Region `json:"regions"`
}
