package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mikestefanello/backlite"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/database/checkouts"
	"github.com/mrlokans/library/internal/database/users"
	"github.com/mrlokans/library/internal/services"
)

// Mirror is the remote store rows are pushed to.
type Mirror interface {
	Upsert(ctx context.Context, table string, row any) error
	Patch(ctx context.Context, table string, id uuid.UUID, fields any) error
}

// EntitySyncer pushes the current state of a local row to the mirror.
type EntitySyncer struct {
	db     *gorm.DB
	mirror Mirror
}

func NewEntitySyncer(db *gorm.DB, mirror Mirror) *EntitySyncer {
	return &EntitySyncer{db: db, mirror: mirror}
}

// Sync reloads the row named by ev and mirrors it: created rows are upserted
// in full, updated rows are patched with their mutable columns. A row that no
// longer exists locally is skipped.
func (s *EntitySyncer) Sync(ctx context.Context, ev services.ChangeEvent) error {
	row, patch, err := s.load(ev)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[SYNC] %s %s no longer exists, skipping", ev.Entity, ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s %s: %w", ev.Entity, ev.ID, err)
	}

	table := string(ev.Entity)
	switch ev.Op {
	case services.ChangeCreated:
		return s.mirror.Upsert(ctx, table, row)
	case services.ChangeUpdated:
		return s.mirror.Patch(ctx, table, ev.ID, patch)
	}
	return fmt.Errorf("unknown change op %q", ev.Op)
}

func (s *EntitySyncer) load(ev services.ChangeEvent) (any, map[string]any, error) {
	switch ev.Entity {
	case services.EntityUser:
		u, err := users.NewRepository(s.db).GetByID(ev.ID)
		if err != nil {
			return nil, nil, err
		}
		return u, map[string]any{
			"email":         u.Email,
			"name":          u.Name,
			"role":          u.Role,
			"is_active":     u.IsActive,
			"max_checkouts": u.MaxCheckouts,
			"updated_at":    u.UpdatedAt,
		}, nil

	case services.EntityBook:
		b, err := books.NewRepository(s.db).GetByIDWithDeleted(ev.ID)
		if err != nil {
			return nil, nil, err
		}
		var deletedAt *time.Time
		if b.DeletedAt.Valid {
			deletedAt = &b.DeletedAt.Time
		}
		return b, map[string]any{
			"title":            b.Title,
			"author":           b.Author,
			"publisher":        b.Publisher,
			"published_year":   b.PublishedYear,
			"genre":            b.Genre,
			"description":      b.Description,
			"cover_url":        b.CoverURL,
			"total_copies":     b.TotalCopies,
			"available_copies": b.AvailableCopies,
			"updated_at":       b.UpdatedAt,
			"deleted_at":       deletedAt,
		}, nil

	case services.EntityCheckout:
		c, err := checkouts.NewRepository(s.db).GetByID(ev.ID)
		if err != nil {
			return nil, nil, err
		}
		return c, map[string]any{
			"status":             c.Status,
			"due_date":           c.DueDate,
			"returned_at":        c.ReturnedAt,
			"renewal_count":      c.RenewalCount,
			"overdue_email_sent": c.OverdueEmailSent,
			"updated_at":         c.UpdatedAt,
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown entity %q", ev.Entity)
}

// SyncEntityTask mirrors one committed change.
type SyncEntityTask struct {
	Entity services.EntityKind `json:"entity"`
	ID     uuid.UUID           `json:"id"`
	Op     services.ChangeOp   `json:"op"`
}

// Config returns the queue configuration for sync tasks. Tasks that exhaust
// their attempts are kept for three days for inspection.
func (t SyncEntityTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sync_entity",
		MaxAttempts: 5,
		Backoff:     30 * time.Second,
		Timeout:     30 * time.Second,
		Retention: &backlite.Retention{
			Duration:   72 * time.Hour,
			OnlyFailed: true,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func (t SyncEntityTask) event() services.ChangeEvent {
	return services.ChangeEvent{Entity: t.Entity, ID: t.ID, Op: t.Op}
}

// SyncEntityProcessor creates a processor function for SyncEntityTask.
func SyncEntityProcessor(syncer *EntitySyncer) backlite.QueueProcessor[SyncEntityTask] {
	return func(ctx context.Context, task SyncEntityTask) error {
		if syncer == nil {
			return fmt.Errorf("syncer not configured")
		}
		if err := syncer.Sync(ctx, task.event()); err != nil {
			log.Printf("[SYNC] %s %s %s failed: %v", task.Op, task.Entity, task.ID, err)
			return err
		}
		return nil
	}
}

// NewSyncEntityQueue creates a backlite queue for sync tasks.
func NewSyncEntityQueue(syncer *EntitySyncer) backlite.Queue {
	return backlite.NewQueue(SyncEntityProcessor(syncer))
}
