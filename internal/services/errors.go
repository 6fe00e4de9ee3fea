package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Error classes. Every error returned by a service wraps exactly one of them
// (or none, for internal failures), and the HTTP layer maps on the class.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrBookNotFound     = fmt.Errorf("book %w", ErrNotFound)
	ErrCheckoutNotFound = fmt.Errorf("checkout %w", ErrNotFound)
	// ErrNoActiveCheckout is returned when a return targets a loan that is
	// missing or already closed.
	ErrNoActiveCheckout = fmt.Errorf("active checkout %w", ErrNotFound)

	ErrNoCopiesAvailable    = fmt.Errorf("%w: no copies available", ErrConflict)
	ErrCheckoutLimitReached = fmt.Errorf("%w: checkout limit reached", ErrConflict)
	ErrRenewalLimitReached  = fmt.Errorf("%w: renewal limit reached", ErrConflict)
	ErrCheckoutNotActive    = fmt.Errorf("%w: checkout is not active", ErrConflict)
	ErrDuplicate            = fmt.Errorf("%w: already exists", ErrConflict)
	ErrBookOnLoan           = fmt.Errorf("%w: book has active checkouts", ErrConflict)
	ErrCopiesOnLoan         = fmt.Errorf("%w: total copies below copies on loan", ErrConflict)
	ErrUserHasCheckouts     = fmt.Errorf("%w: user has checkouts", ErrConflict)

	ErrUserInactive = fmt.Errorf("%w: account is disabled", ErrUnauthorized)
)

// notFound translates gorm's missing-row error into the given domain error
// and passes everything else through.
func notFound(err error, domain error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain
	}
	return err
}

// isUniqueViolation recognises unique constraint failures from sqlite and
// postgres. gorm only translates them when TranslateError is enabled, so the
// driver messages are checked as well.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
