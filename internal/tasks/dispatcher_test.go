package tasks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/library/internal/services"
)

func waitForCall(t *testing.T, mirror *fakeMirror) mirrorCall {
	t.Helper()
	select {
	case c := <-mirror.seen:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("mirror was not called within timeout")
		return mirrorCall{}
	}
}

func TestAsyncDispatcher(t *testing.T) {
	db := setupTestDB(t)
	book := seedBook(t, db)
	mirror := newFakeMirror()

	ctx, cancel := context.WithCancel(context.Background())
	NewAsyncDispatcher(NewEntitySyncer(db, mirror)).Dispatch(ctx,
		services.ChangeEvent{Entity: services.EntityBook, ID: book.ID, Op: services.ChangeCreated})
	// the request context ending must not abort the push
	cancel()

	call := waitForCall(t, mirror)
	assert.Equal(t, "upsert", call.Method)
	assert.Equal(t, "books", call.Table)
}

func TestQueueDispatcher(t *testing.T) {
	db := setupTestDB(t)
	book := seedBook(t, db)
	mirror := newFakeMirror()

	cfg := DefaultConfig()
	cfg.Workers = 1
	client, err := NewClient(filepath.Join(t.TempDir(), "library.db"), cfg)
	require.NoError(t, err)
	defer client.Close()

	client.Register(NewSyncEntityQueue(NewEntitySyncer(db, mirror)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	NewQueueDispatcher(client).Dispatch(context.Background(),
		services.ChangeEvent{Entity: services.EntityBook, ID: book.ID, Op: services.ChangeUpdated})

	call := waitForCall(t, mirror)
	assert.Equal(t, "patch", call.Method)
	assert.Equal(t, book.ID, call.ID)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	client.Stop(stopCtx)
}

func TestNopDispatcher(t *testing.T) {
	assert.NotPanics(t, func() {
		NopDispatcher{}.Dispatch(context.Background(), services.ChangeEvent{})
	})
}
