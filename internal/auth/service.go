package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"brickdesk/server/internal/database"
	"brickdesk/server/internal/models"
)

const (
	defaultAccessTTL  = 10 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Service issues and rotates token pairs for back-office staff.
type Service struct {
	db         *database.Database
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenPair is an access/refresh token pair with the access expiry.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresIn time.Duration
}

type ServiceOption func(*Service)

func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(db *database.Database, secret string, opts ...ServiceOption) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is not configured")
	}
	svc := &Service{
		db:         db,
		secret:     []byte(secret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// Login authenticates credentials and issues a fresh token pair.
func (s *Service) Login(username, password string) (TokenPair, *models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return TokenPair{}, nil, ErrUnauthorized
	}
	user, err := s.db.GetUserByUsername(username)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if user == nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.mintTokens(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Refresh rotates a refresh token and issues a new pair. The presented token
// is revoked before the new pair is minted, so a replay of the old token
// after a successful rotation always fails.
func (s *Service) Refresh(refreshToken string) (TokenPair, *models.User, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidToken
	}

	record, err := s.db.GetRefreshToken(tokenID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if record == nil || record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, nil, ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		// Wrong secret for a live token id smells like theft; burn the record.
		_ = s.db.RevokeRefreshToken(record.ID)
		return TokenPair{}, nil, ErrInvalidToken
	}

	user, err := s.db.GetUserByID(record.UserID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if user == nil {
		return TokenPair{}, nil, ErrInvalidToken
	}

	if err := s.db.RevokeRefreshToken(record.ID); err != nil {
		return TokenPair{}, nil, err
	}

	pair, err := s.mintTokens(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Logout revokes every refresh token belonging to the user.
func (s *Service) Logout(userID string) error {
	return s.db.RevokeUserRefreshTokens(userID)
}

// Authenticate validates an access token and loads the user behind it.
func (s *Service) Authenticate(token string) (*models.User, error) {
	claims, err := ParseAccessToken(s.secret, token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.db.GetUserByID(claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

func (s *Service) mintTokens(user *models.User) (TokenPair, error) {
	accessToken, err := GenerateAccessToken(s.secret, user.ID, user.Username, user.Role, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refreshString, record, err := s.generateRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.db.CreateRefreshToken(record); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshString,
		AccessExpiresIn: s.accessTTL,
	}, nil
}

func (s *Service) generateRefreshToken(userID string) (string, *models.RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	tokenID := uuid.NewString()
	sum := sha256.Sum256([]byte(secret))
	record := &models.RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	return tokenID + "." + secret, record, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
