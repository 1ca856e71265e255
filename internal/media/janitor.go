package media

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/channelhub/backend/internal/metrics"
)

// Deleter removes stored media by location.
type Deleter interface {
	Delete(ctx context.Context, location string) error
}

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Janitor asynchronously deletes media that an update has superseded.
// Failures are logged and counted, never reported to the caller.
type Janitor struct {
	store   Deleter
	logger  *slog.Logger
	timeout time.Duration

	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewJanitor starts a worker pool deleting from store.
func NewJanitor(store Deleter, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	j := &Janitor{
		store:   store,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan string, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	j.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go j.worker()
	}

	return j
}

// Discard schedules deletion of location. Empty locations are ignored.
func (j *Janitor) Discard(ctx context.Context, location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJanitorClosed
	}

	select {
	case <-ctx.Done():
		metrics.AssetCleanupsTotal.WithLabelValues("dropped").Inc()
		return ctx.Err()
	case j.jobs <- location:
		return nil
	}
}

// Shutdown stops accepting work and waits for queued deletions to finish.
// When ctx expires first, in-flight deletions are cancelled.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.jobs)
	}
	j.mu.Unlock()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		j.cancel()
		return ctx.Err()
	case <-done:
		j.cancel()
		return nil
	}
}

func (j *Janitor) worker() {
	defer j.wg.Done()
	for location := range j.jobs {
		j.handle(location)
	}
}

func (j *Janitor) handle(location string) {
	if j.store == nil {
		j.logger.Error("asset janitor missing store", "location", location)
		metrics.AssetCleanupsTotal.WithLabelValues("failed").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
	defer cancel()

	if err := j.store.Delete(ctx, location); err != nil {
		j.logger.Error("delete superseded asset", "location", location, "error", err)
		metrics.AssetCleanupsTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.AssetCleanupsTotal.WithLabelValues("deleted").Inc()
}
