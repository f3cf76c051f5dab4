package audit

import (
	"time"

	id "cardforge/pkg/domain"
)

// EventCategory classifies audit events so sinks can route or retain them
// differently.
type EventCategory string

const (
	// CategorySecurity covers account and session activity.
	CategorySecurity EventCategory = "security"
	// CategoryContent covers changes to authored cards.
	CategoryContent EventCategory = "content"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    id.UserID     `json:"user_id,omitempty"`
	Subject   string        `json:"subject"`
	Action    string        `json:"action"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Card events
	EventCardCreated         AuditEvent = "card_created"
	EventCardUpdated         AuditEvent = "card_updated"
	EventCardDeleted         AuditEvent = "card_deleted"
	EventCardAspectAdjusted  AuditEvent = "card_aspect_adjusted"
	EventCardIdentityResaved AuditEvent = "card_identity_resaved"

	// Account events
	EventUserRegistered    AuditEvent = "user_registered"
	EventSessionCreated    AuditEvent = "session_created"
	EventSessionRevoked    AuditEvent = "session_revoked"
	EventAuthFailed        AuditEvent = "auth_failed"
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserRegistered:    CategorySecurity,
	EventSessionCreated:    CategorySecurity,
	EventSessionRevoked:    CategorySecurity,
	EventAuthFailed:        CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryContent.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryContent
}
