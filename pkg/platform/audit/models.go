package audit

import (
	"context"
	"time"

	"certreg/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal or regulatory significance:
	// issuance and retirement of certifications.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// authority binding, treasury changes, rejected issuers.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Actor is the principal that invoked the operation.
	Actor domain.Principal
	// Subject names what was acted on: a certification id, a principal or
	// a registry setting.
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor domain.Principal) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

type AuditEvent string

const (
	// Admin gate events
	EventAuthorityBound AuditEvent = "authority_bound"
	EventMintFeeSet     AuditEvent = "mint_fee_set"
	EventTreasurySet    AuditEvent = "treasury_set"

	// Certification events
	EventCertificationMinted       AuditEvent = "certification_minted"
	EventCertificationMintRejected AuditEvent = "certification_mint_rejected"
	EventCertificationBurned       AuditEvent = "certification_burned"
	EventCertificationBurnRejected AuditEvent = "certification_burn_rejected"

	// Issuer allow-list events
	EventIssuerAdded   AuditEvent = "issuer_added"
	EventIssuerRemoved AuditEvent = "issuer_removed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCertificationMinted: CategoryCompliance,
	EventCertificationBurned: CategoryCompliance,

	EventAuthorityBound:            CategorySecurity,
	EventTreasurySet:               CategorySecurity,
	EventMintFeeSet:                CategorySecurity,
	EventIssuerAdded:               CategorySecurity,
	EventIssuerRemoved:             CategorySecurity,
	EventCertificationBurnRejected: CategorySecurity,

	EventCertificationMintRejected: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
