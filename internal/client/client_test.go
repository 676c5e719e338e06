package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brickdesk/server/internal/models"
)

type fakeBackend struct {
	refreshCalls  atomic.Int32
	propertyCalls atomic.Int32

	validAccess  string
	validRefresh string
	refreshFails bool
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{validAccess: "access-1", validRefresh: "refresh-1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["username"] != "admin" || req["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid username or password"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fb.validAccess,
			"refresh_token": fb.validRefresh,
			"token_type":    "Bearer",
			"expires_in":    36000,
			"user":          models.User{ID: "u1", Username: "admin"},
		})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		fb.refreshCalls.Add(1)
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if fb.refreshFails || req["refresh_token"] != fb.validRefresh {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Refresh token is invalid or expired"}}`))
			return
		}
		fb.validAccess = "access-2"
		fb.validRefresh = "refresh-2"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fb.validAccess,
			"refresh_token": fb.validRefresh,
			"token_type":    "Bearer",
			"expires_in":    36000,
		})
	})
	mux.HandleFunc("/api/properties", func(w http.ResponseWriter, r *http.Request) {
		fb.propertyCalls.Add(1)
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token != fb.validAccess {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid or expired token"}}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"title":"房源A","status":"在售","canonical_status":"FOR_SALE"}]`))
	})
	mux.HandleFunc("/api/properties/import", func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 64 {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_, _ = w.Write([]byte(`{"error":{"message":"Upload exceeds the limit"}}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"queued":1}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return fb, server
}

func TestLogin_StoresPair(t *testing.T) {
	_, server := newFakeBackend(t)
	store := NewMemoryStore()
	c := New(server.URL, store, nil)

	user, err := c.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)

	creds, err := store.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "refresh-1", creds.RefreshToken)
}

func TestLogin_BadCredentials(t *testing.T) {
	_, server := newFakeBackend(t)
	c := New(server.URL, NewMemoryStore(), nil)

	_, err := c.Login(context.Background(), "admin", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid username or password", apiErr.Message)
}

func TestListProperties_NoCredentials(t *testing.T) {
	fb, server := newFakeBackend(t)
	c := New(server.URL, NewMemoryStore(), nil)

	_, err := c.ListProperties(context.Background(), models.PropertyFilter{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, int32(0), fb.refreshCalls.Load(), "no network traffic without a session")
	assert.Equal(t, int32(0), fb.propertyCalls.Load())
}

func TestRefreshFlow_SingleRefreshSingleRetry(t *testing.T) {
	fb, server := newFakeBackend(t)
	store := NewMemoryStore()
	c := New(server.URL, store, nil)

	// A stale access token with a valid refresh token.
	require.NoError(t, store.Store(Credentials{AccessToken: "expired", RefreshToken: "refresh-1"}))

	views, err := c.ListProperties(context.Background(), models.PropertyFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "FOR_SALE", views[0].CanonicalStatus)

	assert.Equal(t, int32(1), fb.refreshCalls.Load(), "exactly one refresh call")
	assert.Equal(t, int32(2), fb.propertyCalls.Load(), "original request retried exactly once")

	// The store holds the rotated pair.
	creds, err := store.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "access-2", creds.AccessToken)
	assert.Equal(t, "refresh-2", creds.RefreshToken)
}

func TestRefreshFlow_MissingRefreshToken(t *testing.T) {
	fb, server := newFakeBackend(t)
	store := NewMemoryStore()
	c := New(server.URL, store, nil)

	require.NoError(t, store.Store(Credentials{AccessToken: "expired"}))

	_, err := c.ListProperties(context.Background(), models.PropertyFilter{})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(0), fb.refreshCalls.Load(), "no refresh call without a refresh token")

	creds, _ := store.Credentials()
	assert.Empty(t, creds.AccessToken, "store purged")
}

// rejectingStore accepts the initial seed and then fails every Store call.
type rejectingStore struct {
	*MemoryStore
	sealed bool
}

func (s *rejectingStore) Store(creds Credentials) error {
	if s.sealed {
		return errors.New("disk full")
	}
	return s.MemoryStore.Store(creds)
}

func TestRefreshFlow_PersistFailurePurgesStore(t *testing.T) {
	fb, server := newFakeBackend(t)
	store := &rejectingStore{MemoryStore: NewMemoryStore()}
	c := New(server.URL, store, nil)

	require.NoError(t, store.Store(Credentials{AccessToken: "expired", RefreshToken: "refresh-1"}))
	store.sealed = true

	_, err := c.ListProperties(context.Background(), models.PropertyFilter{})
	require.Error(t, err)
	assert.Equal(t, int32(1), fb.refreshCalls.Load())
	assert.Equal(t, int32(1), fb.propertyCalls.Load(), "no retry with an unpersisted pair")

	// The consumed pair must not linger.
	creds, readErr := store.Credentials()
	require.NoError(t, readErr)
	assert.Empty(t, creds.AccessToken)
	assert.Empty(t, creds.RefreshToken)
}

func TestRefreshFlow_RefreshRejected(t *testing.T) {
	fb, server := newFakeBackend(t)
	store := NewMemoryStore()
	c := New(server.URL, store, nil)

	fb.refreshFails = true
	require.NoError(t, store.Store(Credentials{AccessToken: "expired", RefreshToken: "refresh-1"}))

	_, err := c.ListProperties(context.Background(), models.PropertyFilter{})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), fb.refreshCalls.Load())
	assert.Equal(t, int32(1), fb.propertyCalls.Load(), "no second retry after a failed refresh")

	creds, _ := store.Credentials()
	assert.Empty(t, creds.AccessToken)
	assert.Empty(t, creds.RefreshToken)
}

func TestConnectivityError_IsDistinctFromAuthFailure(t *testing.T) {
	// Point at a closed port.
	store := NewMemoryStore()
	require.NoError(t, store.Store(Credentials{AccessToken: "x", RefreshToken: "y"}))
	c := New("http://127.0.0.1:1", store, nil)

	_, err := c.ListProperties(context.Background(), models.PropertyFilter{})
	var connErr *ConnectivityError
	assert.ErrorAs(t, err, &connErr)
	assert.False(t, errors.Is(err, ErrSessionExpired))
	assert.NotContains(t, err.Error(), "credential")
}

func TestImportProperties_PayloadTooLarge(t *testing.T) {
	_, server := newFakeBackend(t)
	store := NewMemoryStore()
	require.NoError(t, store.Store(Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"}))
	c := New(server.URL, store, nil)

	big := strings.Repeat("x", 1024)
	_, err := c.ImportProperties(context.Background(), "big.csv", strings.NewReader(big))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "credentials.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	// Empty store reads as empty credentials, not an error.
	creds, err := store.Credentials()
	require.NoError(t, err)
	assert.Empty(t, creds.AccessToken)

	want := Credentials{
		AccessToken:  "a",
		RefreshToken: "r",
		User:         &models.User{ID: "u1", Username: "admin"},
	}
	require.NoError(t, store.Store(want))

	got, err := store.Credentials()
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	require.NotNil(t, got.User)
	assert.Equal(t, "admin", got.User.Username)

	require.NoError(t, store.Clear())
	creds, err = store.Credentials()
	require.NoError(t, err)
	assert.Empty(t, creds.AccessToken)

	// Clearing an already-empty store is fine.
	require.NoError(t, store.Clear())
}
