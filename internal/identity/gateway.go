// Package identity is the Identity Gateway port: social-account linking and
// phone verification by one-time code.
package identity

import (
	"context"
	"errors"

	id "clocklayer/pkg/domain"
)

// Supported providers.
const (
	ProviderTwitter = "twitter.com"
	ProviderGoogle  = "google.com"
)

var (
	// ErrAccountExists means the social account is already linked under a
	// different sign-in credential.
	ErrAccountExists = errors.New("account exists with different credential")
	// ErrInvalidCode means the one-time code did not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrCodeExpired means the confirmation handle is no longer valid.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrChallengeRejected means the bot challenge token was refused.
	ErrChallengeRejected = errors.New("challenge token rejected")
	// ErrInvalidPhone means the provider refused the phone number.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// LinkResult is the identity returned by a successful link.
type LinkResult struct {
	ID          id.IdentityID
	Provider    string
	DisplayName string
	Handle      string
	AvatarURL   string
}

// ConfirmationHandle identifies an outstanding phone verification.
type ConfirmationHandle string

// Gateway is implemented by HTTPGateway and Fake.
type Gateway interface {
	LinkViaPopup(ctx context.Context, provider, credential string) (*LinkResult, error)
	SendPhoneCode(ctx context.Context, phone, challengeToken string) (ConfirmationHandle, error)
	VerifyPhoneCode(ctx context.Context, handle ConfirmationHandle, code string) error
}
