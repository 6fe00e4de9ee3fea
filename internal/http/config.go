package http

import (
	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	Database *database.Database
	Version  string

	Books     BookService
	Users     UserService
	Checkouts CheckoutService

	// Overdue runs sweeps for POST /api/checkouts/overdue/notify. Leave it
	// unset when email is not configured and the endpoint answers 503.
	// Assigning a nil *overdue.Sweeper makes a non-nil interface and the
	// endpoint would panic instead.
	Overdue OverdueRunner
	// SweepSchedule is reported on /health. Same nil rule as Overdue.
	SweepSchedule SweepSchedule

	AuthMode       config.AuthMode
	AuthMiddleware *auth.Middleware
	// Authenticator and LoginLimiter are only set in AUTH_MODE=local.
	Authenticator Authenticator
	LoginLimiter  *auth.RateLimiter
}
