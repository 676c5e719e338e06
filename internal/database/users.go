package database

import (
	"database/sql"
	"fmt"
	"time"

	"brickdesk/server/internal/models"
)

func (d *Database) CreateUser(u *models.User) error {
	now := time.Now().UTC()
	_, err := d.db.Exec(`
        INSERT INTO users (id, username, display_name, role, password_hash, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, u.ID, u.Username, u.DisplayName, u.Role, u.PasswordHash, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (d *Database) GetUserByUsername(username string) (*models.User, error) {
	return d.scanUser(d.db.QueryRow(`
        SELECT id, username, display_name, role, password_hash, created_at, updated_at
        FROM users WHERE username = ?
    `, username))
}

func (d *Database) GetUserByID(id string) (*models.User, error) {
	return d.scanUser(d.db.QueryRow(`
        SELECT id, username, display_name, role, password_hash, created_at, updated_at
        FROM users WHERE id = ?
    `, id))
}

func (d *Database) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var displayName sql.NullString
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &displayName, &u.Role, &u.PasswordHash, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.DisplayName = displayName.String
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}

func (d *Database) CreateRefreshToken(tok *models.RefreshToken) error {
	_, err := d.db.Exec(`
        INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked)
        VALUES (?, ?, ?, ?, ?, 0)
    `, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

func (d *Database) GetRefreshToken(id string) (*models.RefreshToken, error) {
	var tok models.RefreshToken
	var revoked int
	var createdAt sql.NullTime
	err := d.db.QueryRow(`
        SELECT id, user_id, token_hash, expires_at, created_at, revoked
        FROM refresh_tokens WHERE id = ?
    `, id).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &createdAt, &revoked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tok.CreatedAt = createdAt.Time
	tok.Revoked = revoked != 0
	return &tok, nil
}

func (d *Database) RevokeRefreshToken(id string) error {
	_, err := d.db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE id = ?", id)
	return err
}

func (d *Database) RevokeUserRefreshTokens(userID string) error {
	_, err := d.db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID)
	return err
}
