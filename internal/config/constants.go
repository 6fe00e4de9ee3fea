package config

const (
	// DefaultDatabasePath is the default path for the sqlite database
	DefaultDatabasePath = "./library.db"

	// DefaultMaxRenewals is how many times a loan can be extended
	DefaultMaxRenewals = 2

	// DefaultMaxCheckouts is the per-user limit of simultaneous loans
	DefaultMaxCheckouts = 5
)
