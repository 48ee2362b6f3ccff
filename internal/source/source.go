// Package source adapts external text generators behind a narrow boundary.
// The workflow only ever sees the Adapter; retry policy stays out of here.
package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"recontext/internal/domain"
	"recontext/internal/prompt"
)

// Client produces raw text for a prompt. Implementations wrap exactly one
// external generator and perform no retries of their own.
type Client interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// AdapterConfig tunes the adapter boundary, not the generator behind it.
type AdapterConfig struct {
	// RequestTimeout bounds each invocation. Zero means no timeout beyond
	// the caller's context.
	RequestTimeout time.Duration
	// MinInterval is the minimum spacing between invocations. Concurrent
	// sections share the same window. Zero disables pacing.
	MinInterval time.Duration
}

// Adapter turns a Client into the engine's content source. It renders the
// task prompt, paces requests, applies the per-request timeout, and maps
// every failure to a source-unavailable error.
type Adapter struct {
	client Client
	cfg    AdapterConfig
	logger *zap.Logger

	mu          sync.Mutex
	nextRequest time.Time
}

// NewAdapter wraps a client for use by the workflow.
func NewAdapter(client Client, cfg AdapterConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, cfg: cfg, logger: logger}
}

// Invoke renders the task prompt and performs one generation call.
func (a *Adapter) Invoke(ctx context.Context, task domain.GenerationTask) (string, error) {
	if err := a.pace(ctx); err != nil {
		return "", domain.WrapEngineError(domain.ErrSourceUnavailable.Code, "request pacing interrupted", err)
	}
	if a.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RequestTimeout)
		defer cancel()
	}
	p := prompt.Generation(task)
	a.logger.Debug("invoking content source",
		zap.String("section", task.Section),
		zap.String("client", a.client.Name()),
		zap.Int("prompt_bytes", len(p)),
		zap.Bool("correction", task.Correction != nil),
	)
	text, err := a.client.Complete(ctx, p)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", domain.WrapEngineError(domain.ErrSourceUnavailable.Code, "content source timed out", err)
		}
		return "", domain.WrapEngineError(domain.ErrSourceUnavailable.Code, "content source failed", err)
	}
	return text, nil
}

// pace reserves the next request slot and blocks until it opens. Each caller
// pushes the shared window forward by MinInterval, so concurrent sections
// queue up rather than burst.
func (a *Adapter) pace(ctx context.Context) error {
	if a.cfg.MinInterval <= 0 {
		return nil
	}
	a.mu.Lock()
	now := time.Now()
	slot := a.nextRequest
	if slot.Before(now) {
		slot = now
	}
	a.nextRequest = slot.Add(a.cfg.MinInterval)
	a.mu.Unlock()
	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
