package tasks

import (
	"context"
	"log"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/library/internal/services"
)

// QueueDispatcher enqueues a SyncEntityTask per change. Enqueue failures are
// logged; the local write has already committed and stays authoritative.
type QueueDispatcher struct {
	client *Client
}

func NewQueueDispatcher(client *Client) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, events ...services.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	batch := make([]backlite.Task, 0, len(events))
	for _, ev := range events {
		batch = append(batch, SyncEntityTask{Entity: ev.Entity, ID: ev.ID, Op: ev.Op})
	}
	if _, err := d.client.Enqueue(ctx, batch...); err != nil {
		log.Printf("[SYNC] Failed to enqueue %d change(s): %v", len(events), err)
	}
}

// AsyncDispatcher syncs each change on its own goroutine without retries.
// Used when the task queue is disabled.
type AsyncDispatcher struct {
	syncer *EntitySyncer
}

func NewAsyncDispatcher(syncer *EntitySyncer) *AsyncDispatcher {
	return &AsyncDispatcher{syncer: syncer}
}

func (d *AsyncDispatcher) Dispatch(ctx context.Context, events ...services.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		for _, ev := range events {
			if err := d.syncer.Sync(ctx, ev); err != nil {
				log.Printf("[SYNC] %s %s %s failed: %v", ev.Op, ev.Entity, ev.ID, err)
			}
		}
	}()
}

// NopDispatcher drops every change. Used when no sync endpoint is configured.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, ...services.ChangeEvent) {}

var (
	_ services.EventDispatcher = (*QueueDispatcher)(nil)
	_ services.EventDispatcher = (*AsyncDispatcher)(nil)
	_ services.EventDispatcher = NopDispatcher{}
)
