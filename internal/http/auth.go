package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/services"
)

type AuthController struct {
	authenticator Authenticator
	limiter       *auth.RateLimiter
}

func NewAuthController(authenticator Authenticator, limiter *auth.RateLimiter) *AuthController {
	return &AuthController{authenticator: authenticator, limiter: limiter}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := ac.authenticator.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		respondServiceError(c, err, "register")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login exchanges credentials for a bearer token. Repeated failures from
// one client for one email are locked out for a while.
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	ip := c.ClientIP()
	if ac.limiter != nil {
		if allowed, retryAfter := ac.limiter.Allow(ip, req.Email); !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many login attempts"})
			return
		}
	}

	session, err := ac.authenticator.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if ac.limiter != nil && errors.Is(err, services.ErrUnauthorized) {
			ac.limiter.RecordFailure(ip, req.Email)
		}
		respondServiceError(c, err, "login")
		return
	}
	if ac.limiter != nil {
		ac.limiter.RecordSuccess(ip, req.Email)
	}
	c.JSON(http.StatusOK, session)
}
