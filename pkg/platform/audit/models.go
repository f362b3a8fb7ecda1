package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by retention and routing needs.
type EventCategory string

const (
	// CategoryCompliance covers ownership changes. These are written in the
	// same transaction as the change itself and kept indefinitely.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the asset the event concerns.
	Subject string
	Action  string
	// ActorID is the authenticated party (creator or sender).
	ActorID string
	// Counterparty is the receiving owner for transfers.
	Counterparty string
	// Share is the percentage moved; for asset_created it is the creator's stake.
	Share int
	// Remaining is the actor's share after the action.
	Remaining int
	Version   int64
	RequestID string
	// ClientIP and UserAgent record where the request originated.
	ClientIP  string
	UserAgent string
}

type AuditEvent string

const (
	EventAssetCreated     AuditEvent = "asset_created"
	EventShareTransferred AuditEvent = "share_transferred"
	EventStakeExited      AuditEvent = "stake_exited"
	EventAssetRead        AuditEvent = "asset_read"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAssetCreated:     CategoryCompliance,
	EventShareTransferred: CategoryCompliance,
	EventStakeExited:      CategoryCompliance,

	EventAssetRead: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can be queried back.
type Lister interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
