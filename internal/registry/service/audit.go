package service

import (
	"context"
	"log/slog"

	"mediashare/pkg/platform/audit"
	"mediashare/pkg/platform/middleware/metadata"
	"mediashare/pkg/requestcontext"
)

// auditEmitter logs every event and forwards compliance events to the
// publisher. Without a publisher the log line is the only record; operations
// events are only ever logged, at debug level.
type auditEmitter struct {
	publisher AuditPublisher
	logger    *slog.Logger
}

func (e *auditEmitter) emit(ctx context.Context, action audit.AuditEvent, event audit.Event) error {
	event = e.log(ctx, action, event)
	if e.publisher == nil || event.Category != audit.CategoryCompliance {
		return nil
	}
	return e.publisher.Emit(ctx, event)
}

// record logs an operations event. Operations events never reach the
// publisher, so there is nothing to fail.
func (e *auditEmitter) record(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	e.log(ctx, action, event)
}

func (e *auditEmitter) log(ctx context.Context, action audit.AuditEvent, event audit.Event) audit.Event {
	event.Action = string(action)
	event.Category = action.Category()
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ClientIP == "" {
		client := metadata.FromContext(ctx)
		event.ClientIP, event.UserAgent = client.IP, client.UserAgent
	}

	if e.logger != nil {
		level := slog.LevelInfo
		if event.Category == audit.CategoryOperations {
			level = slog.LevelDebug
		}
		e.logger.Log(ctx, level, event.Action,
			"log_type", "audit",
			"request_id", event.RequestID,
			"asset_id", event.Subject,
			"actor", event.ActorID,
			"counterparty", event.Counterparty,
			"share", event.Share,
			"version", event.Version,
			"client_ip", event.ClientIP,
		)
	}
	return event
}
