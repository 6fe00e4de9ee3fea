package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/services"
)

// Context keys for caller data
const (
	ContextKeyPrincipal = "auth_principal"
	ContextKeyUser      = "auth_user"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   entities.UserRole
}

func (p Principal) IsStaff() bool {
	return p.Role.IsStaff()
}

// CanAccess reports whether the caller may act on data owned by userID.
func (p Principal) CanAccess(userID uuid.UUID) bool {
	return p.IsStaff() || p.UserID == userID
}

// anonymousStaff is the caller in AUTH_MODE=none.
var anonymousStaff = Principal{Role: entities.UserRoleAdmin}

// Middleware authenticates API requests with bearer tokens.
type Middleware struct {
	verifier Verifier
	users    UserStore
	mode     config.AuthMode
}

// NewMiddleware creates the authentication middleware. verifier and users
// may be nil in AUTH_MODE=none.
func NewMiddleware(verifier Verifier, users UserStore, mode config.AuthMode) *Middleware {
	return &Middleware{verifier: verifier, users: users, mode: mode}
}

// Handler returns a Gin middleware handler that authenticates requests.
func (m *Middleware) Handler() gin.HandlerFunc {
	if m.mode == config.AuthModeNone {
		return func(c *gin.Context) {
			c.Set(ContextKeyPrincipal, anonymousStaff)
			c.Next()
		}
	}

	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortUnauthorized(c, "authentication required")
			return
		}

		ident, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthorized) {
				log.Printf("Token verification failed: %v", err)
			}
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		user, err := m.resolveUser(c, ident)
		if err != nil {
			if !errors.Is(err, services.ErrNotFound) && !errors.Is(err, services.ErrUnauthorized) {
				log.Printf("Failed to resolve user for %s: %v", ident.Subject, err)
			}
			abortUnauthorized(c, "unknown user")
			return
		}
		if !user.IsActive {
			abortUnauthorized(c, "account is disabled")
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyPrincipal, Principal{UserID: user.ID, Email: user.Email, Role: user.Role})
		c.Next()
	}
}

// resolveUser maps a verified identity to a local account. Remote
// identities get an account on first sight.
func (m *Middleware) resolveUser(c *gin.Context, ident *Identity) (*entities.User, error) {
	if m.mode == config.AuthModeRemote {
		return m.users.EnsureFromIdentity(c.Request.Context(), services.ExternalIdentity{
			ID:    ident.Subject,
			Email: ident.Email,
			Name:  ident.Name,
		})
	}

	id, err := uuid.Parse(ident.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return m.users.Get(c.Request.Context(), id)
}

// RequireStaff rejects callers that are not ADMIN or DEVELOPER.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := GetPrincipal(c); !ok || !p.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient permissions",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="library"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// GetPrincipal retrieves the authenticated caller from the context.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	if v, exists := c.Get(ContextKeyPrincipal); exists {
		if p, ok := v.(Principal); ok {
			return p, true
		}
	}
	return Principal{}, false
}

// GetUser retrieves the caller's account. It is nil in AUTH_MODE=none.
func GetUser(c *gin.Context) *entities.User {
	if v, exists := c.Get(ContextKeyUser); exists {
		if u, ok := v.(*entities.User); ok {
			return u
		}
	}
	return nil
}
