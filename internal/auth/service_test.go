package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brickdesk/server/internal/database"
	"brickdesk/server/internal/models"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *database.Database) {
	t.Helper()
	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	svc, err := NewService(db, "test-secret", opts...)
	require.NoError(t, err)
	return svc, db
}

func createTestUser(t *testing.T, db *database.Database, username, password string) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  "测试账号",
		Role:         "staff",
		PasswordHash: hash,
	}
	require.NoError(t, db.CreateUser(user))
	return user
}

func TestNewService_RequiresSecret(t *testing.T) {
	_, err := NewService(nil, "  ")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	svc, db := newTestService(t)
	user := createTestUser(t, db, "admin", "s3cret")

	pair, got, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// The access token round-trips through Authenticate.
	authed, err := svc.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, db := newTestService(t)
	createTestUser(t, db, "admin", "s3cret")

	_, _, err := svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = svc.Login("nobody", "s3cret")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = svc.Login("", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_RotatesPair(t *testing.T) {
	svc, db := newTestService(t)
	createTestUser(t, db, "admin", "s3cret")

	pair, _, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)

	rotated, _, err := svc.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.NotEmpty(t, rotated.AccessToken)

	// The old refresh token is dead the moment the new pair exists.
	_, _, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The new one still works.
	_, _, err = svc.Refresh(rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_InvalidInputs(t *testing.T) {
	svc, db := newTestService(t)
	createTestUser(t, db, "admin", "s3cret")

	_, _, err := svc.Refresh("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.Refresh("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.Refresh(uuid.NewString() + ".bogus-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_WrongSecretBurnsToken(t *testing.T) {
	svc, db := newTestService(t)
	createTestUser(t, db, "admin", "s3cret")

	pair, _, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)

	id := pair.RefreshToken[:36]
	_, _, err = svc.Refresh(id + ".wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The real token is revoked after the failed guess.
	_, _, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_Expired(t *testing.T) {
	now := time.Now()
	svc, db := newTestService(t, WithClock(func() time.Time { return now }))
	createTestUser(t, db, "admin", "s3cret")

	pair, _, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)

	// Move past the refresh TTL.
	now = now.Add(8 * 24 * time.Hour)
	_, _, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout_RevokesAllSessions(t *testing.T) {
	svc, db := newTestService(t)
	user := createTestUser(t, db, "admin", "s3cret")

	first, _, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)
	second, _, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(user.ID))

	_, _, err = svc.Refresh(first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = svc.Refresh(second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_RejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Authenticate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_SignedWithDifferentSecretFails(t *testing.T) {
	token, err := GenerateAccessToken([]byte("other-secret"), "user-1", "admin", "staff", time.Hour)
	require.NoError(t, err)

	svc, _ := newTestService(t)
	_, err = svc.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
