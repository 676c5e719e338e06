// Package client is the typed API client used by back-office tools. It owns
// the credential lifecycle: bearer tokens are attached from the injected
// CredentialStore and an expired session is refreshed transparently, at most
// once per failing request, with the original request retried exactly once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"brickdesk/server/internal/models"
)

var (
	// ErrUnauthenticated means no usable access token is stored; log in first.
	ErrUnauthenticated = errors.New("client: not authenticated")

	// ErrSessionExpired means the access token was rejected and the refresh
	// attempt failed; the stored pair has been purged and a new login is needed.
	ErrSessionExpired = errors.New("client: session expired, log in again")

	// ErrPayloadTooLarge means the server rejected an upload for its size.
	ErrPayloadTooLarge = errors.New("client: payload too large, reduce the file size")
)

// APIError is a non-2xx response with the server's error message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ConnectivityError wraps transport failures so callers can tell a network
// problem from bad credentials.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach backend: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	http    *http.Client
	store   CredentialStore
	logger  *logrus.Logger

	// refreshMu serializes refresh attempts so concurrent 401s on one client
	// trigger a single rotation.
	refreshMu sync.Mutex
}

func New(baseURL string, store CredentialStore, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
		logger:  logger,
	}
}

type errorPayload struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         *models.User `json:"user,omitempty"`
}

// Login authenticates and persists the issued pair in the store.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := c.send(ctx, http.MethodPost, "/auth/login", body, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("malformed login response: %w", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, errors.New("malformed login response: missing tokens")
	}

	creds := Credentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         tokens.User,
	}
	if err := c.store.Store(creds); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}
	return tokens.User, nil
}

// Logout revokes the session server-side and clears the store either way.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/logout", nil)
	if err == nil {
		resp.Body.Close()
	}
	if clearErr := c.store.Clear(); clearErr != nil {
		return clearErr
	}
	return err
}

// Me returns the current user for the stored session.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.getJSON(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// PropertyView mirrors the server's listing payload with derived fields.
type PropertyView struct {
	models.Property
	CanonicalStatus string   `json:"canonical_status"`
	DisplayPriceWan *float64 `json:"display_price_wan"`
	UnitPricePerSqm *float64 `json:"unit_price_yuan_per_sqm"`
}

// ListProperties fetches listings matching the filter.
func (c *Client) ListProperties(ctx context.Context, filter models.PropertyFilter) ([]PropertyView, error) {
	params := url.Values{}
	if filter.Status != "" {
		params.Set("status", filter.Status)
	}
	if filter.City != "" {
		params.Set("city", filter.City)
	}
	if filter.District != "" {
		params.Set("district", filter.District)
	}
	if filter.Region != "" {
		params.Set("region", filter.Region)
	}
	if filter.Keyword != "" {
		params.Set("keyword", filter.Keyword)
	}
	if filter.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", filter.Limit))
	}
	if filter.Offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", filter.Offset))
	}

	path := "/api/properties"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var views []PropertyView
	if err := c.getJSON(ctx, path, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// CreateLead submits a lead through the public capture endpoint.
func (c *Client) CreateLead(ctx context.Context, lead *models.Lead) error {
	body, err := json.Marshal(lead)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, "/api/leads", body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return c.apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(lead)
}

// ExportProperties streams the CSV export into w.
func (c *Client) ExportProperties(ctx context.Context, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/properties/export", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

// do performs an authenticated request. On a 401 it refreshes the stored pair
// once and retries the original request once; a second 401 is final.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	return c.doWithType(ctx, method, path, body, "application/json")
}

func (c *Client) doWithType(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	creds, err := c.store.Credentials()
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, ErrUnauthenticated
	}

	resp, err := c.sendWithType(ctx, method, path, body, contentType, creds.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	token, err := c.refreshSession(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("path", path).Debug("Retrying request after token refresh")
	return c.sendWithType(ctx, method, path, body, contentType, token)
}

// refreshSession rotates the stored pair and returns the new access token.
// The mutex makes concurrent 401s share one rotation: whoever wins refreshes,
// the rest observe the already-rotated store and skip the network call.
func (c *Client) refreshSession(ctx context.Context, staleAccess string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	creds, err := c.store.Credentials()
	if err != nil {
		return "", fmt.Errorf("read credentials: %w", err)
	}
	if creds.AccessToken != "" && creds.AccessToken != staleAccess {
		return creds.AccessToken, nil
	}
	if creds.RefreshToken == "" {
		_ = c.store.Clear()
		return "", ErrSessionExpired
	}

	body, _ := json.Marshal(map[string]string{"refresh_token": creds.RefreshToken})
	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", body, "")
	if err != nil {
		// The refresh token may already be consumed server-side; keeping it
		// would risk a replay of a dead token. Fail closed.
		_ = c.store.Clear()
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_ = c.store.Clear()
		return "", ErrSessionExpired
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		_ = c.store.Clear()
		return "", ErrSessionExpired
	}

	rotated := Credentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         creds.User,
	}
	if tokens.User != nil {
		rotated.User = tokens.User
	}
	if err := c.store.Store(rotated); err != nil {
		// The old refresh token is already consumed server-side; a store that
		// still holds it would replay a dead token.
		_ = c.store.Clear()
		return "", fmt.Errorf("persist rotated credentials: %w", err)
	}

	c.logger.Debug("Rotated token pair")
	return rotated.AccessToken, nil
}

// ImportProperties uploads a listings CSV. The whole file is buffered so the
// request can be replayed after a token refresh.
func (c *Client) ImportProperties(ctx context.Context, filename string, csvData io.Reader) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, csvData); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	resp, err := c.doWithType(ctx, http.MethodPost, "/api/properties/import", buf.Bytes(), mw.FormDataContentType())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return 0, c.apiError(resp)
	}
	var result struct {
		Queued int `json:"queued"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("malformed response: %w", err)
	}
	return result.Queued, nil
}

// send performs a single HTTP round trip, attaching the bearer token when set.
func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	return c.sendWithType(ctx, method, path, body, "application/json", token)
}

func (c *Client) sendWithType(ctx context.Context, method, path string, body []byte, contentType, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}
	return resp, nil
}

func (c *Client) apiError(resp *http.Response) error {
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return ErrPayloadTooLarge
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrSessionExpired
	}

	var payload errorPayload
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}
