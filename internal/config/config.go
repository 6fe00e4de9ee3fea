package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone   AuthMode = "none"   // Every caller is treated as staff (development only)
	AuthModeLocal  AuthMode = "local"  // Passwords and JWTs issued by this service
	AuthModeRemote AuthMode = "remote" // Tokens verified by an external auth service
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Loans
		OverdueSweep
		Sync
		Email
		Metadata
		Tasks
		Auth
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver DatabaseDriver
		Path   string // sqlite file
		DSN    string // postgres connection string
		Debug  bool   // log every SQL statement
	}
	Loans struct {
		LoanPeriod          time.Duration // default due date offset for new checkouts
		RenewalPeriod       time.Duration // added to the current due date on renewal
		MaxRenewals         int
		DefaultMaxCheckouts int
	}
	OverdueSweep struct {
		Enabled  bool
		Schedule string // Cron format: "0 0 * * *" = daily at midnight
	}
	Sync struct {
		URL        string // base URL of the realtime REST endpoint, e.g. https://x.supabase.co/rest/v1
		ServiceKey string
		Timeout    time.Duration
	}
	Email struct {
		APIURL  string
		APIKey  string
		From    string
		Timeout time.Duration
	}
	Metadata struct {
		Enabled bool
		BaseURL string
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Auth struct {
		Mode        AuthMode
		JWTSecret   string
		TokenExpiry time.Duration
		BcryptCost  int
		VerifyURL   string // remote mode only
	}
)

// Enabled reports whether realtime sync has enough configuration to run.
func (s Sync) Enabled() bool {
	return s.URL != "" && s.ServiceKey != ""
}

// Enabled reports whether outbound email has enough configuration to run.
func (e Email) Enabled() bool {
	return e.APIURL != "" && e.APIKey != ""
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8081)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("database_driver", string(DatabaseDriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")
	v.SetDefault("database_debug", false)

	// Circulation rules
	v.SetDefault("loan_period", "336h")    // 14 days
	v.SetDefault("renewal_period", "336h") // 14 days
	v.SetDefault("max_renewals", DefaultMaxRenewals)
	v.SetDefault("default_max_checkouts", DefaultMaxCheckouts)

	v.SetDefault("overdue_sweep_enabled", true)
	v.SetDefault("overdue_sweep_schedule", "0 0 * * *") // Daily at midnight

	v.SetDefault("sync_url", "")
	v.SetDefault("sync_service_key", "")
	v.SetDefault("sync_timeout", "10s")

	v.SetDefault("email_api_url", "https://api.resend.com/emails")
	v.SetDefault("email_api_key", "")
	v.SetDefault("email_from", "Library System <noreply@library.com>")
	v.SetDefault("email_timeout", "10s")

	v.SetDefault("metadata_enabled", true)
	v.SetDefault("metadata_base_url", "https://openlibrary.org")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Auth defaults
	v.SetDefault("auth_mode", string(AuthModeLocal))
	v.SetDefault("auth_jwt_secret", "")  // Auto-generated if empty
	v.SetDefault("auth_token_expiry", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_verify_url", "http://localhost:3001")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver: DatabaseDriver(v.GetString("DATABASE_DRIVER")),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
			Debug:  v.GetBool("DATABASE_DEBUG"),
		},
		Loans: Loans{
			LoanPeriod:          v.GetDuration("LOAN_PERIOD"),
			RenewalPeriod:       v.GetDuration("RENEWAL_PERIOD"),
			MaxRenewals:         v.GetInt("MAX_RENEWALS"),
			DefaultMaxCheckouts: v.GetInt("DEFAULT_MAX_CHECKOUTS"),
		},
		OverdueSweep: OverdueSweep{
			Enabled:  v.GetBool("OVERDUE_SWEEP_ENABLED"),
			Schedule: v.GetString("OVERDUE_SWEEP_SCHEDULE"),
		},
		Sync: Sync{
			URL:        v.GetString("SYNC_URL"),
			ServiceKey: v.GetString("SYNC_SERVICE_KEY"),
			Timeout:    v.GetDuration("SYNC_TIMEOUT"),
		},
		Email: Email{
			APIURL:  v.GetString("EMAIL_API_URL"),
			APIKey:  v.GetString("EMAIL_API_KEY"),
			From:    v.GetString("EMAIL_FROM"),
			Timeout: v.GetDuration("EMAIL_TIMEOUT"),
		},
		Metadata: Metadata{
			Enabled: v.GetBool("METADATA_ENABLED"),
			BaseURL: v.GetString("METADATA_BASE_URL"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Auth: Auth{
			Mode:        AuthMode(v.GetString("AUTH_MODE")),
			JWTSecret:   v.GetString("AUTH_JWT_SECRET"),
			TokenExpiry: v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:  v.GetInt("AUTH_BCRYPT_COST"),
			VerifyURL:   v.GetString("AUTH_VERIFY_URL"),
		},
	}
}
