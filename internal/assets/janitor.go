package assets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-registration/internal/logger"

	"github.com/cenkalti/backoff/v4"
)

type Deleter interface {
	Delete(ctx context.Context, assetID string) error
}

// Janitor deletes orphaned assets in the background with bounded retries.
type Janitor struct {
	deleter    Deleter
	logger     *logger.Logger
	queue      chan string
	maxRetries int
	timeout    time.Duration

	// NewBackOff builds the retry schedule for one asset.
	NewBackOff func() backoff.BackOff

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewJanitor(deleter Deleter, log *logger.Logger, maxRetries int, timeout time.Duration) *Janitor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Janitor{
		deleter:    deleter,
		logger:     log,
		queue:      make(chan string, 256),
		maxRetries: maxRetries,
		timeout:    timeout,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 5 * time.Minute
			return b
		},
	}
}

func (j *Janitor) Start() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for assetID := range j.queue {
			j.reap(assetID)
		}
	}()
}

// Schedule queues an asset for deletion without blocking the caller.
func (j *Janitor) Schedule(assetID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		j.logger.Error("ASSETS", fmt.Sprintf("janitor closed, orphaned asset %s not scheduled", assetID))
		return
	}
	select {
	case j.queue <- assetID:
		j.logger.Info("ASSETS", fmt.Sprintf("Scheduled orphaned asset %s for deletion", assetID))
	default:
		j.logger.Error("ASSETS", fmt.Sprintf("janitor queue full, orphaned asset %s dropped", assetID))
	}
}

// Close stops accepting work and waits for queued deletes to finish.
func (j *Janitor) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()
	j.wg.Wait()
}

func (j *Janitor) reap(assetID string) {
	attempt := 0
	op := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		return j.deleter.Delete(ctx, assetID)
	}
	notify := func(err error, wait time.Duration) {
		j.logger.Warn("ASSETS", fmt.Sprintf("delete %s failed (attempt %d): %v, retrying in %s", assetID, attempt, err, wait))
	}

	policy := backoff.WithMaxRetries(j.NewBackOff(), uint64(j.maxRetries))
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		j.logger.Error("ASSETS", fmt.Sprintf("giving up on orphaned asset %s after %d attempts: %v", assetID, attempt, err))
		return
	}
	j.logger.Info("ASSETS", fmt.Sprintf("Deleted orphaned asset %s", assetID))
}
