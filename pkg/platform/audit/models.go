package audit

import (
	"context"
	"time"

	id "clocklayer/pkg/domain"
)

// Event is emitted from domain logic to capture key signup and admin actions.
// It stays transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time     `json:"timestamp"`
	IdentityID id.IdentityID `json:"identity_id,omitempty"`
	Action     string        `json:"action"`
	// Subject is the secondary entity involved: the referrer for attribution,
	// the message id for broadcasts.
	Subject   string `json:"subject,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// ActorID is set when someone other than IdentityID performed the action.
	ActorID string `json:"actor_id,omitempty"`
}

type AuditEvent string

const (
	EventIdentityLinked     AuditEvent = "identity_linked"
	EventUserCreated        AuditEvent = "user_created"
	EventReferralAttributed AuditEvent = "referral_attributed"
	EventProfileUpdated     AuditEvent = "profile_updated"
	EventPhoneVerified      AuditEvent = "phone_verified"
	EventLivenessRejected   AuditEvent = "liveness_rejected"
	EventWaitlistAdmitted   AuditEvent = "waitlist_admitted"
	EventMessageBroadcast   AuditEvent = "message_broadcast"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListByIdentity(ctx context.Context, identityID id.IdentityID) ([]Event, error)
}
