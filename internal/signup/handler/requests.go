package handler

import (
	"strings"

	"clocklayer/internal/signup/models"
	dErrors "clocklayer/pkg/domain-errors"
)

// StartRequest is the body for POST /signup/sessions.
type StartRequest struct {
	ReferralCode string `json:"referralCode"`
}

func (r *StartRequest) Validate() error {
	r.ReferralCode = strings.TrimSpace(r.ReferralCode)
	if len(r.ReferralCode) > 64 {
		return dErrors.New(dErrors.CodeValidation, "referralCode must be at most 64 characters")
	}
	return nil
}

// LinkIdentityRequest is the body for POST /signup/sessions/{id}/identity.
type LinkIdentityRequest struct {
	Provider   string `json:"provider"`
	Credential string `json:"credential"`
}

func (r *LinkIdentityRequest) Validate() error {
	r.Provider = strings.TrimSpace(r.Provider)
	if r.Provider == "" {
		return dErrors.New(dErrors.CodeValidation, "provider is required")
	}
	if strings.TrimSpace(r.Credential) == "" {
		return dErrors.New(dErrors.CodeValidation, "credential is required")
	}
	if len(r.Credential) > 8192 {
		return dErrors.New(dErrors.CodeValidation, "credential is too long")
	}
	return nil
}

// PhoneCodeRequest is the body for POST /signup/sessions/{id}/phone/code.
// Presence checks are left to the service so they share its messages.
type PhoneCodeRequest struct {
	Phone          string `json:"phone"`
	ChallengeToken string `json:"challengeToken"`
}

func (r *PhoneCodeRequest) Validate() error {
	if len(r.Phone) > 32 {
		return dErrors.New(dErrors.CodeValidation, "phone must be at most 32 characters")
	}
	return nil
}

type VerifyCodeRequest struct {
	Code string `json:"code"`
}

func (r *VerifyCodeRequest) Validate() error {
	if len(r.Code) > 16 {
		return dErrors.New(dErrors.CodeValidation, "code must be at most 16 characters")
	}
	return nil
}

type JumpRequest struct {
	Step int `json:"step"`
}

func (r *JumpRequest) Validate() error {
	if r.Step < int(models.StepConnect) || r.Step > int(models.StepTasks) {
		return dErrors.New(dErrors.CodeValidation, "step must be between 1 and 6")
	}
	return nil
}

// TasksRequest is the task widget's connect payload.
type TasksRequest struct {
	ExternalID string `json:"externalId"`
	Points     int    `json:"points"`
}

func (r *TasksRequest) Validate() error {
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	if r.ExternalID == "" {
		return dErrors.New(dErrors.CodeValidation, "externalId is required")
	}
	if r.Points < 0 {
		return dErrors.New(dErrors.CodeValidation, "points must not be negative")
	}
	return nil
}
