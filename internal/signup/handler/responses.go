package handler

import (
	"time"

	"clocklayer/internal/signup/models"
	"clocklayer/internal/waitlist"
)

// SessionResponse is the wizard state sent to clients. Confirmation handles
// stay server side.
type SessionResponse struct {
	ID         string             `json:"id"`
	IdentityID string             `json:"identityId,omitempty"`
	Step       int                `json:"step"`
	StepName   string             `json:"stepName"`
	MaxStep    int                `json:"maxStep"`
	Draft      models.Draft       `json:"draft"`
	Phone      PhoneResponse      `json:"phone"`
	Challenge  *ChallengeResponse `json:"challenge,omitempty"`
	Confirmed  bool               `json:"confirmed"`
	ExpiresAt  time.Time          `json:"expiresAt"`
	Waitlist   waitlist.State     `json:"waitlist"`
}

type PhoneResponse struct {
	Subphase      string `json:"subphase"`
	PendingNumber string `json:"pendingNumber,omitempty"`
}

type ChallengeResponse struct {
	ID         string `json:"id"`
	Generation int    `json:"generation"`
}

// LinkResponse is returned by the identity step.
type LinkResponse struct {
	Session     SessionResponse `json:"session"`
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	Returning   bool            `json:"returning"`
	Redirect    string          `json:"redirect,omitempty"`
}

func toSessionResponse(v *models.View) SessionResponse {
	s := v.Session
	resp := SessionResponse{
		ID:         s.ID.String(),
		IdentityID: s.IdentityID.String(),
		Step:       int(s.Step),
		StepName:   s.Step.String(),
		MaxStep:    int(s.MaxStep),
		Draft:      s.Draft,
		Phone: PhoneResponse{
			Subphase:      string(s.Phone.Subphase),
			PendingNumber: s.Phone.PendingNumber,
		},
		Confirmed: s.Confirmed,
		ExpiresAt: s.ExpiresAt,
		Waitlist:  v.Waitlist,
	}
	if s.Challenge.Active() {
		resp.Challenge = &ChallengeResponse{ID: s.Challenge.ID, Generation: s.Challenge.Generation}
	}
	return resp
}

func toLinkResponse(o *models.LinkOutcome) LinkResponse {
	return LinkResponse{
		Session:     toSessionResponse(o.View),
		AccessToken: o.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   o.ExpiresAt,
		Returning:   o.Returning,
		Redirect:    o.Redirect,
	}
}
