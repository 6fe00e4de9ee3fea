package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/email"
	"github.com/mrlokans/library/internal/http"
	"github.com/mrlokans/library/internal/metadata"
	"github.com/mrlokans/library/internal/overdue"
	"github.com/mrlokans/library/internal/realtime"
	"github.com/mrlokans/library/internal/scheduler"
	"github.com/mrlokans/library/internal/services"
	"github.com/mrlokans/library/internal/tasks"
)

// =============================================================================
// Services
// =============================================================================

var _ http.BookService = (*services.BookService)(nil)
var _ http.UserService = (*services.UserService)(nil)
var _ http.CheckoutService = (*services.CheckoutService)(nil)
var _ auth.UserStore = (*services.UserService)(nil)

// =============================================================================
// Authentication
// =============================================================================

var _ auth.Verifier = (*auth.TokenService)(nil)
var _ auth.Verifier = (*auth.RemoteVerifier)(nil)
var _ http.Authenticator = (*auth.Service)(nil)

// =============================================================================
// External Services
// =============================================================================

var _ services.MetadataProvider = (*metadata.OpenLibraryClient)(nil)
var _ tasks.Mirror = (*realtime.Client)(nil)
var _ overdue.Notifier = (*email.OverdueNotifier)(nil)

// =============================================================================
// Side Effects
// =============================================================================

var _ services.EventDispatcher = (*tasks.QueueDispatcher)(nil)
var _ services.EventDispatcher = (*tasks.AsyncDispatcher)(nil)
var _ services.EventDispatcher = tasks.NopDispatcher{}

// Overdue sweeps
var _ http.OverdueRunner = (*overdue.Sweeper)(nil)
var _ scheduler.SweepRunner = (*overdue.Sweeper)(nil)
var _ tasks.SweepRunner = (*overdue.Sweeper)(nil)
var _ http.SweepSchedule = (*scheduler.OverdueScheduler)(nil)
