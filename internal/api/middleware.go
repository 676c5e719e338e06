package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"brickdesk/server/internal/auth"
	"brickdesk/server/internal/models"
)

const (
	authHeader     = "Authorization"
	bearerPrefix   = "Bearer "
	userContextKey = "auth_user"
)

// RequireAuth authenticates the request via the Authorization header or the
// httpOnly access cookie and stores the user in the gin context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader(authHeader))
		if err != nil {
			if cookie, cookieErr := c.Cookie(accessCookie); cookieErr == nil && cookie != "" {
				token = cookie
			} else {
				respondError(c, http.StatusUnauthorized, err.Error())
				c.Abort()
				return
			}
		}

		user, err := h.auth.Authenticate(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				respondError(c, http.StatusUnauthorized, "Invalid or expired token")
			} else {
				h.logger.WithError(err).Error("Authentication error")
				respondError(c, http.StatusInternalServerError, "Authentication error")
			}
			c.Abort()
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
