// Package tasks runs side effects out of band on a durable, sqlite-backed
// queue. Realtime sync pushes and overdue sweeps are enqueued here so that a
// slow or unavailable remote never holds up a request.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Client owns the queue database and the backlite workers reading it.
type Client struct {
	client *backlite.Client
	db     *sql.DB
	config Config

	mu      sync.RWMutex
	started bool
}

// queuePath puts the queue next to the main database: library.db becomes
// library-tasks.db. A Postgres deployment still gets a local file here.
func queuePath(mainDBPath string) string {
	base := filepath.Base(mainDBPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(mainDBPath), name+"-tasks"+filepath.Ext(base))
}

func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	db, err := sql.Open("sqlite3", queuePath(mainDBPath)+"?_journal=WAL&_timeout=5000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}

	// One connection per worker plus headroom for request-path enqueues.
	db.SetMaxOpenConns(cfg.Workers + 5)
	db.SetMaxIdleConns(cfg.Workers + 2)
	db.SetConnMaxLifetime(time.Hour)

	client, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          &stdLogger{},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create backlite client: %w", err)
	}

	if err := client.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to install backlite schema: %w", err)
	}

	return &Client{
		client: client,
		db:     db,
		config: cfg,
	}, nil
}

// Register adds processors for the sync and sweep queues. Queues registered
// after Start are ignored, since backlite reads the registry once.
func (c *Client) Register(queues ...backlite.Queue) {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if started {
		log.Printf("[TASK] Ignoring %d queue(s) registered after start", len(queues))
		return
	}

	for _, q := range queues {
		c.client.Register(q)
	}
}

func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	log.Printf("[TASK] Queue started with %d workers", c.config.Workers)
	c.client.Start(ctx)
}

// Stop reports whether in-flight tasks finished before ctx expired.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return true
	}
	c.started = false
	c.mu.Unlock()

	log.Println("[TASK] Stopping queue...")
	finished := c.client.Stop(ctx)
	if finished {
		log.Println("[TASK] Queue stopped, no tasks in flight")
	} else {
		log.Println("[TASK] Queue stopped with tasks still in flight, they are released for the next start")
	}
	return finished
}

// Close stops workers that are still running, then closes the queue file.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Stop(ctx)

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Enqueue stores tasks in one transaction and returns their IDs. The write
// is detached from ctx cancellation: a change that already committed must
// reach the queue even if the request that made it has gone away.
func (c *Client) Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	return c.client.Add(tasks...).Ctx(context.WithoutCancel(ctx)).Save()
}

type stdLogger struct{}

func (l *stdLogger) Info(message string, params ...any) {
	log.Printf("[TASK] "+message, params...)
}

func (l *stdLogger) Error(message string, params ...any) {
	log.Printf("[TASK ERROR] "+message, params...)
}
