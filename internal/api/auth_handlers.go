package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"brickdesk/server/internal/auth"
	"brickdesk/server/internal/models"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         *models.User `json:"user,omitempty"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	pair, user, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			respondError(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.logger.WithError(err).Error("Login failed")
		respondError(c, http.StatusInternalServerError, "Login failed")
		return
	}

	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(pair.AccessExpiresIn.Seconds()),
		User:         user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates the token pair. The refresh token comes from the request
// body or, for browser clients, from the httpOnly cookie.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie(refreshCookie); err == nil {
			req.RefreshToken = cookie
		}
	}
	if req.RefreshToken == "" {
		respondError(c, http.StatusUnauthorized, "Missing refresh token")
		return
	}

	pair, user, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			h.clearAuthCookies(c)
			respondError(c, http.StatusUnauthorized, "Refresh token is invalid or expired")
			return
		}
		h.logger.WithError(err).Error("Token refresh failed")
		respondError(c, http.StatusInternalServerError, "Token refresh failed")
		return
	}

	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(pair.AccessExpiresIn.Seconds()),
		User:         user,
	})
}

func (h *Handler) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Logout(c *gin.Context) {
	user := currentUser(c)
	if user != nil {
		if err := h.auth.Logout(user.ID); err != nil {
			h.logger.WithError(err).Error("Failed to revoke refresh tokens")
		}
	}
	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) setAuthCookies(c *gin.Context, pair auth.TokenPair) {
	secure := h.cfg.Server.Production
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, pair.AccessToken, int(pair.AccessExpiresIn.Seconds()), "/", "", secure, true)
	c.SetCookie(refreshCookie, pair.RefreshToken, int(h.auth.RefreshTTL().Seconds()), "/", "", secure, true)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	secure := h.cfg.Server.Production
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", "", secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", secure, true)
}
