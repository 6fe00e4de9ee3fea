// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite or postgres), migrations
//	├── books/           # Catalog CRUD and the available-copies counter
//	├── users/           # Account management and loan-limit lookups
//	├── checkouts/       # Loan records, filtering and overdue queries
//	└── failures/        # Overdue email failure log
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type over a *gorm.DB. Services pass
// the transaction handle when several repositories take part in one unit of
// work:
//
//	db, err := database.NewDatabase(cfg.Database)
//
//	err = db.DB.Transaction(func(tx *gorm.DB) error {
//		if err := books.NewRepository(tx).DecrementAvailable(bookID); err != nil {
//			return err
//		}
//		return checkouts.NewRepository(tx).Create(checkout)
//	})
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add a WithTx(tx *gorm.DB) method if it takes part in transactions
//  5. Add a compile-time interface check in internal/interfaces
package database
