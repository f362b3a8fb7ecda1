// Package compliance provides a fail-closed audit publisher for ownership events.
//
// Publisher writes synchronously. If the write fails the caller's operation
// MUST fail too, so no ownership change exists without its audit record. When
// the store is outbox-backed and the context carries a transaction, the record
// commits or rolls back with the change.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "mediashare/pkg/platform/audit"
)

// ErrMalformedEvent is returned for events that cannot form a trail entry.
var ErrMalformedEvent = errors.New("malformed compliance event")

// Publisher emits compliance events with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and synchronously appends event. Only compliance actions are
// accepted; operations events never reach the durable trail.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if err := validate(event); err != nil {
		return err
	}
	event.Category = audit.CategoryCompliance
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	start := p.now()
	err := p.store.Append(ctx, event)
	if p.metrics != nil {
		p.metrics.observe(event.Action, err, p.now().Sub(start))
	}
	if err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"asset_id", event.Subject,
				"request_id", event.RequestID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}
	return nil
}

func validate(event audit.Event) error {
	switch {
	case event.Subject == "":
		return fmt.Errorf("%w: subject is required", ErrMalformedEvent)
	case event.ActorID == "":
		return fmt.Errorf("%w: actor is required", ErrMalformedEvent)
	case audit.AuditEvent(event.Action).Category() != audit.CategoryCompliance:
		return fmt.Errorf("%w: %q is not a compliance action", ErrMalformedEvent, event.Action)
	}
	return nil
}
