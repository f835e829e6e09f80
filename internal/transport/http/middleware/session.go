package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/usecase"
)

const (
	// SessionKey is the context key under which the parsed session is stored.
	SessionKey = "session"
	// SessionCookie is the cookie name carrying the session token.
	SessionCookie = "authcore_session"
)

// Session resolves the caller's session token, if any, and stores the parsed
// session in the request context. A missing or invalid token leaves the
// request anonymous rather than rejecting it; handlers that require an
// authenticated caller enforce that themselves.
func Session(sessions *usecase.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				token = cookie
			}
		}

		if token != "" {
			if session, err := sessions.Parse(token); err == nil {
				c.Set(SessionKey, session)
			}
		}

		c.Next()
	}
}

// GetSession retrieves the parsed session from the request context, falling
// back to an anonymous session.
func GetSession(c *gin.Context) domain.Session {
	if value, exists := c.Get(SessionKey); exists {
		if session, ok := value.(domain.Session); ok {
			return session
		}
	}
	return domain.AnonymousSession()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
