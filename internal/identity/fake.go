package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	id "clocklayer/pkg/domain"
)

// DefaultFakeCode is the one-time code the Fake accepts unless overridden.
const DefaultFakeCode = "123456"

// Fake is a deterministic in-process gateway for development and tests.
// Unknown credentials link to an id derived from the credential hash, so the
// same credential always yields the same identity.
type Fake struct {
	Code string

	mu       sync.Mutex
	accounts map[string]LinkResult
	handles  map[ConfirmationHandle]string
	conflict map[string]bool
	seq      int
}

func NewFake() *Fake {
	return &Fake{
		Code:     DefaultFakeCode,
		accounts: make(map[string]LinkResult),
		handles:  make(map[ConfirmationHandle]string),
		conflict: make(map[string]bool),
	}
}

// Register pins the result returned for credential.
func (f *Fake) Register(credential string, result LinkResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[credential] = result
}

// MarkConflict makes linking credential fail with ErrAccountExists.
func (f *Fake) MarkConflict(credential string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflict[credential] = true
}

func (f *Fake) LinkViaPopup(_ context.Context, provider, credential string) (*LinkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict[credential] {
		return nil, ErrAccountExists
	}
	if res, ok := f.accounts[credential]; ok {
		res.Provider = provider
		return &res, nil
	}
	sum := sha256.Sum256([]byte(provider + "|" + credential))
	return &LinkResult{
		ID:       id.IdentityID("fake" + hex.EncodeToString(sum[:])[:24]),
		Provider: provider,
	}, nil
}

func (f *Fake) SendPhoneCode(_ context.Context, phone, challengeToken string) (ConfirmationHandle, error) {
	if challengeToken == "" {
		return "", ErrChallengeRejected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	handle := ConfirmationHandle(fmt.Sprintf("fake-session-%d", f.seq))
	f.handles[handle] = phone
	return handle, nil
}

func (f *Fake) VerifyPhoneCode(_ context.Context, handle ConfirmationHandle, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handles[handle]; !ok {
		return ErrCodeExpired
	}
	if code != f.Code {
		return ErrInvalidCode
	}
	delete(f.handles, handle)
	return nil
}
