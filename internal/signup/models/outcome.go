package models

import (
	"time"

	"clocklayer/internal/waitlist"
)

// View is a session as returned to the client, with the waitlist counter.
type View struct {
	Session  *Session
	Waitlist waitlist.State
}

// LinkOutcome is the result of connecting an identity.
type LinkOutcome struct {
	View        *View
	AccessToken string
	ExpiresAt   time.Time
	// Returning is set for users who already passed the task gate; Redirect
	// then points at the dashboard.
	Returning bool
	Redirect  string
}

// LinkRequest carries the credential obtained from the provider popup.
type LinkRequest struct {
	Provider   string
	Credential string
}

// ImageUpload is a profile picture submitted with the profile step.
type ImageUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type ProfileInput struct {
	Name     string
	Username string
	Image    *ImageUpload
}

// TaskConnect is the task widget's connect callback.
type TaskConnect struct {
	ExternalID string
	Points     int
}
