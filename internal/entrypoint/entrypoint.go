package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database"
	"github.com/mrlokans/library/internal/email"
	"github.com/mrlokans/library/internal/entities"
	http_controllers "github.com/mrlokans/library/internal/http"
	"github.com/mrlokans/library/internal/metadata"
	"github.com/mrlokans/library/internal/overdue"
	"github.com/mrlokans/library/internal/realtime"
	"github.com/mrlokans/library/internal/scheduler"
	"github.com/mrlokans/library/internal/services"
	"github.com/mrlokans/library/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT. SIGKILL can't be caught.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before the workers that their events feed.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Library v%s", version)

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Task queue. It lives in its own sqlite file next to the main database,
	// whatever the main driver is.
	var taskClient *tasks.Client
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromSettings(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()
	}

	var syncer *tasks.EntitySyncer
	var dispatcher services.EventDispatcher
	switch {
	case !cfg.Sync.Enabled():
		log.Printf("WARNING: realtime sync is not configured. Set SYNC_URL and SYNC_SERVICE_KEY to enable it.")
		dispatcher = tasks.NopDispatcher{}
	case taskClient != nil:
		syncer = tasks.NewEntitySyncer(db.DB, realtime.NewClient(cfg.Sync))
		dispatcher = tasks.NewQueueDispatcher(taskClient)
	default:
		syncer = tasks.NewEntitySyncer(db.DB, realtime.NewClient(cfg.Sync))
		dispatcher = tasks.NewAsyncDispatcher(syncer)
		log.Printf("[SYNC] Task queue disabled, changes are pushed without retries")
	}

	var provider services.MetadataProvider
	if cfg.Metadata.Enabled {
		provider = metadata.NewOpenLibraryClient(cfg.Metadata.BaseURL)
	}

	userService := services.NewUserService(db.DB, dispatcher, cfg.Loans.DefaultMaxCheckouts)
	bookService := services.NewBookService(db.DB, provider, dispatcher)
	checkoutService := services.NewCheckoutService(db.DB, dispatcher, services.LoanPolicy{
		LoanPeriod:    cfg.Loans.LoanPeriod,
		RenewalPeriod: cfg.Loans.RenewalPeriod,
		MaxRenewals:   cfg.Loans.MaxRenewals,
	})

	sweeper := newSweeper(db, cfg, dispatcher)

	var overdueScheduler *scheduler.OverdueScheduler
	if sweeper != nil && cfg.OverdueSweep.Enabled {
		overdueScheduler = scheduler.NewOverdueScheduler(sweeper, cfg.OverdueSweep)
		if err := overdueScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start overdue scheduler: %v", err)
		}
	}

	var taskCtxCancel context.CancelFunc
	if taskClient != nil {
		if syncer != nil {
			taskClient.Register(tasks.NewSyncEntityQueue(syncer))
		}
		if sweeper != nil {
			taskClient.Register(tasks.NewOverdueSweepQueue(sweeper))
		}

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		// Loans that fell due while the server was down are picked up now
		// rather than at the next scheduled run.
		if sweeper != nil {
			if _, err := taskClient.Enqueue(taskCtx, tasks.OverdueSweepTask{RequestedBy: "startup"}); err != nil {
				log.Printf("[TASK] Failed to enqueue startup overdue sweep: %v", err)
			}
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Database:  db,
		Version:   version,
		Books:     bookService,
		Users:     userService,
		Checkouts: checkoutService,
		AuthMode:  cfg.Auth.Mode,
	}
	if sweeper != nil {
		routerCfg.Overdue = sweeper
	}
	if overdueScheduler != nil {
		routerCfg.SweepSchedule = overdueScheduler
	}

	limiter := configureAuth(cfg, userService, &routerCfg)
	if limiter != nil {
		defer limiter.Stop()
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if overdueScheduler != nil {
			overdueScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// configureAuth fills in the auth parts of the router config for the
// configured mode and returns the login limiter, if one was created.
func configureAuth(cfg *config.Config, users *services.UserService, routerCfg *http_controllers.RouterConfig) *auth.RateLimiter {
	switch cfg.Auth.Mode {
	case config.AuthModeLocal:
		log.Printf("Authentication mode: local")

		secret := cfg.Auth.JWTSecret
		if secret == "" {
			generated, err := auth.GenerateSecret()
			if err != nil {
				log.Fatalf("Failed to generate JWT secret: %v", err)
			}
			secret = generated
			log.Printf("WARNING: generated a JWT secret, tokens will not survive a restart (set AUTH_JWT_SECRET to persist)")
		}

		tokens := auth.NewTokenService(secret, cfg.Auth.TokenExpiry)
		limiter := auth.NewRateLimiter(auth.DefaultRateLimitConfig())
		routerCfg.AuthMiddleware = auth.NewMiddleware(tokens, users, config.AuthModeLocal)
		routerCfg.Authenticator = auth.NewService(users, tokens, cfg.Auth)
		routerCfg.LoginLimiter = limiter
		return limiter

	case config.AuthModeRemote:
		log.Printf("Authentication mode: remote (%s)", cfg.Auth.VerifyURL)
		routerCfg.AuthMiddleware = auth.NewMiddleware(auth.NewRemoteVerifier(cfg.Auth.VerifyURL), users, config.AuthModeRemote)
		return nil

	case config.AuthModeNone:
		log.Printf("WARNING: Authentication mode: none (every caller is treated as staff)")
		routerCfg.AuthMiddleware = auth.NewMiddleware(nil, users, config.AuthModeNone)
		return nil

	default:
		log.Fatalf("Unknown AUTH_MODE %q (expected none, local or remote)", cfg.Auth.Mode)
		return nil
	}
}

// newSweeper returns nil when outbound email is not configured.
func newSweeper(db *database.Database, cfg *config.Config, dispatcher services.EventDispatcher) *overdue.Sweeper {
	if !cfg.Email.Enabled() {
		log.Printf("WARNING: email is not configured. Overdue notices are disabled. Set EMAIL_API_URL and EMAIL_API_KEY to enable them.")
		return nil
	}
	return overdue.NewSweeper(db.DB, email.NewOverdueNotifier(email.NewClient(cfg.Email)), dispatcher)
}

// SweepOnce runs a single overdue sweep and returns its result. Flag changes
// are left on the task queue for the server to push, since this process
// exits before any worker could run.
func SweepOnce(ctx context.Context, cfg *config.Config) (overdue.Result, error) {
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return overdue.Result{}, fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	var dispatcher services.EventDispatcher = tasks.NopDispatcher{}
	if cfg.Sync.Enabled() && cfg.Tasks.Enabled {
		taskClient, err := tasks.NewClient(cfg.Database.Path, tasks.FromSettings(cfg.Tasks))
		if err != nil {
			return overdue.Result{}, fmt.Errorf("initialize task queue: %w", err)
		}
		defer taskClient.Close()
		dispatcher = tasks.NewQueueDispatcher(taskClient)
	} else if cfg.Sync.Enabled() {
		log.Printf("[SYNC] Task queue disabled, flag changes from this sweep will not reach the mirror")
	}

	sweeper := newSweeper(db, cfg, dispatcher)
	if sweeper == nil {
		return overdue.Result{}, errors.New("email is not configured")
	}
	return sweeper.Run(ctx)
}

// CreateAdmin creates an ADMIN account with a password, or promotes and
// resets the password of an existing account with the same email.
func CreateAdmin(ctx context.Context, cfg *config.Config, emailAddr, name, password string) (*entities.User, error) {
	hash, err := auth.HashPassword(password, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	users := services.NewUserService(db.DB, tasks.NopDispatcher{}, cfg.Loans.DefaultMaxCheckouts)

	existing, err := users.GetByEmail(ctx, emailAddr)
	switch {
	case errors.Is(err, services.ErrNotFound):
		return users.Create(ctx, services.CreateUserInput{
			Email:        emailAddr,
			Name:         name,
			Role:         entities.UserRoleAdmin,
			PasswordHash: hash,
		})
	case err != nil:
		return nil, err
	}

	role := entities.UserRoleAdmin
	active := true
	if _, err := users.Update(ctx, existing.ID, services.UpdateUserInput{Role: &role, IsActive: &active}); err != nil {
		return nil, err
	}
	if err := users.SetPassword(ctx, existing.ID, hash); err != nil {
		return nil, err
	}
	return users.Get(ctx, existing.ID)
}
