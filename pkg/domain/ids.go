package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "clocklayer/pkg/domain-errors"
)

// IdentityID is the stable identifier the identity provider assigns to a
// linked social account. It keys the user record.
type IdentityID string

// SessionID identifies one signup wizard session.
type SessionID uuid.UUID

// MessageID identifies a broadcast message.
type MessageID uuid.UUID

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ParseIdentityID validates a provider identity id at a trust boundary.
func ParseIdentityID(s string) (IdentityID, error) {
	if !identityPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid identity id")
	}
	return IdentityID(s), nil
}

func (id IdentityID) String() string { return string(id) }

// IsZero reports whether no identity has been linked.
func (id IdentityID) IsZero() bool { return id == "" }

// Short returns the first n characters, used to derive default usernames.
func (id IdentityID) Short(n int) string {
	s := string(id)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// NewSessionID returns a random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseSessionID parses a non-nil UUID session id.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewMessageID returns a random message id.
func NewMessageID() MessageID { return MessageID(uuid.New()) }

// ParseMessageID parses a non-nil UUID message id.
func ParseMessageID(s string) (MessageID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return MessageID{}, err
	}
	return MessageID(u), nil
}

func (id MessageID) String() string { return uuid.UUID(id).String() }

func parseUUID(s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id must not be nil")
	}
	return u, nil
}

func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SessionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id MessageID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *MessageID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
