// Package models holds the signup wizard session and its step transitions.
package models

import (
	"time"

	"github.com/google/uuid"

	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
)

// Step is a wizard position. Steps are ordered; Admitted is terminal.
type Step int

const (
	StepConnect  Step = 1
	StepProfile  Step = 2
	StepPhone    Step = 3
	StepConfirm  Step = 4
	StepLiveness Step = 5
	StepTasks    Step = 6
	StepAdmitted Step = 7
)

func (s Step) String() string {
	switch s {
	case StepConnect:
		return "connect"
	case StepProfile:
		return "profile"
	case StepPhone:
		return "phone"
	case StepConfirm:
		return "confirm"
	case StepLiveness:
		return "liveness"
	case StepTasks:
		return "tasks"
	case StepAdmitted:
		return "admitted"
	}
	return "unknown"
}

// PhoneSubphase splits the phone step into requesting and verifying a code.
type PhoneSubphase string

const (
	PhoneRequest PhoneSubphase = "request"
	PhoneVerify  PhoneSubphase = "verify"
)

// Draft is the profile as edited in the wizard.
type Draft struct {
	Name            string  `json:"name"`
	Username        string  `json:"username"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
	Phone           string  `json:"phone,omitempty"`
}

type PhoneState struct {
	Subphase      PhoneSubphase `json:"subphase"`
	PendingNumber string        `json:"pendingNumber,omitempty"`
	// Handle is the gateway's confirmation handle for the code in flight.
	Handle string `json:"handle,omitempty"`
}

// Challenge is the bot-challenge handle owned by the phone step. It exists
// only while the session is on that step. A failed code request bumps the
// generation and spends the token that was used.
type Challenge struct {
	ID         string `json:"id,omitempty"`
	Generation int    `json:"generation"`
	Spent      string `json:"spent,omitempty"`
}

// Active reports whether the challenge can currently be used.
func (c Challenge) Active() bool { return c.ID != "" }

// Session is a wizard in progress. It is never written to the profile store.
type Session struct {
	ID           id.SessionID  `json:"id"`
	IdentityID   id.IdentityID `json:"identityId,omitempty"`
	Step         Step          `json:"step"`
	MaxStep      Step          `json:"maxStep"`
	Draft        Draft         `json:"draft"`
	Phone        PhoneState    `json:"phone"`
	Challenge    Challenge     `json:"challenge"`
	ReferralCode string        `json:"referralCode,omitempty"`
	Confirmed    bool          `json:"confirmed"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	ExpiresAt    time.Time     `json:"expiresAt"`
}

// NewSession starts a wizard on the connect step.
func NewSession(sessionID id.SessionID, referralCode string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:           sessionID,
		Step:         StepConnect,
		MaxStep:      StepConnect,
		Phone:        PhoneState{Subphase: PhoneRequest},
		ReferralCode: referralCode,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Touch records an update and slides the expiry forward.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// Advance moves one step forward. The tasks step only ends through Admit.
func (s *Session) Advance() error {
	if s.Step >= StepTasks {
		return dErrors.New(dErrors.CodeInvalidState, "cannot advance past "+s.Step.String())
	}
	s.moveTo(s.Step + 1)
	return nil
}

// Retreat moves one step back, stopping at the connect step.
func (s *Session) Retreat() error {
	if s.Step == StepAdmitted {
		return dErrors.New(dErrors.CodeInvalidState, "signup is already complete")
	}
	if s.Step > StepConnect {
		s.moveTo(s.Step - 1)
	}
	return nil
}

// JumpTo moves to any step already reached, other than Admitted.
func (s *Session) JumpTo(step Step) error {
	if s.Step == StepAdmitted {
		return dErrors.New(dErrors.CodeInvalidState, "signup is already complete")
	}
	if step < StepConnect || step > s.MaxStep || step == StepAdmitted {
		return dErrors.New(dErrors.CodeInvalidState, "step has not been reached")
	}
	s.moveTo(step)
	return nil
}

// Admit finishes the wizard.
func (s *Session) Admit() {
	s.moveTo(StepAdmitted)
	s.Confirmed = true
}

// ResetToConnect drops the linked identity and everything derived from it.
// Used when a later step finds the caller is no longer authenticated.
func (s *Session) ResetToConnect() {
	s.moveTo(StepConnect)
	s.IdentityID = ""
	s.MaxStep = StepConnect
	s.Draft = Draft{}
	s.Phone = PhoneState{Subphase: PhoneRequest}
	s.Confirmed = false
}

// Link binds the identity and seeds the draft from the stored profile.
// Binding a different identity discards the progress made by the previous
// one, so the new identity walks every step itself.
func (s *Session) Link(identityID id.IdentityID, draft Draft) {
	if s.IdentityID != identityID {
		s.MaxStep = s.Step
		s.Phone = PhoneState{Subphase: PhoneRequest}
		s.Challenge = Challenge{Generation: s.Challenge.Generation}
		s.Confirmed = false
	}
	s.IdentityID = identityID
	s.Draft = draft
}

// ResetChallenge invalidates the current challenge after a failed use and
// issues the next generation.
func (s *Session) ResetChallenge(spentToken string) {
	s.Challenge.Generation++
	s.Challenge.ID = uuid.NewString()
	s.Challenge.Spent = spentToken
}

// ChangePhone returns the phone step to requesting a code.
func (s *Session) ChangePhone() {
	s.Phone.Subphase = PhoneRequest
	s.Phone.Handle = ""
}

// AwaitCode records a sent code for number.
func (s *Session) AwaitCode(number, handle string) {
	s.Phone = PhoneState{Subphase: PhoneVerify, PendingNumber: number, Handle: handle}
}

func (s *Session) moveTo(step Step) {
	if s.Step == StepPhone && step != StepPhone {
		s.Challenge = Challenge{Generation: s.Challenge.Generation}
		s.Phone.Subphase = PhoneRequest
		s.Phone.Handle = ""
	}
	if step == StepPhone && (s.Step != StepPhone || !s.Challenge.Active()) {
		s.Challenge.Generation++
		s.Challenge.ID = uuid.NewString()
		s.Challenge.Spent = ""
		s.Phone.Subphase = PhoneRequest
		s.Phone.Handle = ""
	}
	s.Step = step
	if step > s.MaxStep {
		s.MaxStep = step
	}
}
