package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/mrlokans/library/internal/metadata"
)

// EntityKind names a record type mirrored to the realtime store.
type EntityKind string

const (
	EntityUser     EntityKind = "users"
	EntityBook     EntityKind = "books"
	EntityCheckout EntityKind = "checkouts"
)

// ChangeOp says how a change should be mirrored.
type ChangeOp string

const (
	ChangeCreated ChangeOp = "created" // upsert the full row
	ChangeUpdated ChangeOp = "updated" // patch the row
)

// ChangeEvent describes a committed change. Receivers reload the row by ID,
// so a late delivery always pushes the current state.
type ChangeEvent struct {
	Entity EntityKind
	ID     uuid.UUID
	Op     ChangeOp
}

// EventDispatcher propagates committed changes to external systems. Dispatch
// must not block on the remote side and must never fail the caller; services
// only call it after their transaction has committed.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events ...ChangeEvent)
}

// MetadataProvider looks up bibliographic data by ISBN.
type MetadataProvider interface {
	SearchByISBN(ctx context.Context, isbn string) (*metadata.BookMetadata, error)
}
