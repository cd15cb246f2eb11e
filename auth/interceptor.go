package auth

import (
	"net/http"
	"strings"

	"syncx/errors"

	"github.com/gin-gonic/gin"
)

// Session tokens travel in httponly cookies, one per surface.
const (
	CookieName      = "syncx-token"
	AdminCookieName = "syncx-admin-token"
)

const userIDGinKey = "user_id"

// ErrorResponder renders an authentication failure. The HTTP layer provides
// its own so every error shares one shape.
type ErrorResponder func(c *gin.Context, err error)

// TokenFromRequest reads the token from the named cookie, then from an
// "Authorization: Bearer" header, then, when allowQuery is set, from the
// "token" query parameter used by socket clients.
func TokenFromRequest(r *http.Request, cookieName string, allowQuery bool) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// RequireUser rejects requests without a valid user token and injects the
// user id into both the gin and the request context.
func RequireUser(a *Authenticator, fail ErrorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.Authenticate(TokenFromRequest(c.Request, CookieName, false))
		if err != nil {
			fail(c, err)
			c.Abort()
			return
		}
		c.Set(userIDGinKey, userID)
		c.Request = c.Request.WithContext(ContextWithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// RequireAdmin rejects requests without a valid admin token.
func RequireAdmin(a *Authenticator, fail ErrorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.AuthenticateAdmin(TokenFromRequest(c.Request, AdminCookieName, false)); err != nil {
			fail(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CallerID returns the user injected by RequireUser.
func CallerID(c *gin.Context) (string, error) {
	if userID := c.GetString(userIDGinKey); userID != "" {
		return userID, nil
	}
	return "", errors.ErrUnauthorized
}
