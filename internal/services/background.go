package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
)

const defaultBackgroundTimeout = 30 * time.Second

// Background runs fire-and-forget work such as class fan-outs after a
// request has been answered. Failures are logged, never returned.
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
	log     *zap.Logger
}

// NewBackground returns a runner whose tasks are cancelled after timeout.
func NewBackground(timeout time.Duration) *Background {
	if timeout <= 0 {
		timeout = defaultBackgroundTimeout
	}
	return &Background{timeout: timeout, log: logger.WithModule("background")}
}

// Go starts fn on its own goroutine with a fresh context.
func (b *Background) Go(name string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("background task panicked", zap.String("task", name), zap.String("panic", fmt.Sprint(r)))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.log.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every started task has returned.
func (b *Background) Wait() {
	b.wg.Wait()
}

// Shutdown waits for running tasks until ctx is done.
func (b *Background) Shutdown(ctx context.Context) error {
	ctx = ensureContext(ctx)
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background: %w", ctx.Err())
	}
}
