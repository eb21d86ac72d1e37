// Package models holds the persistent user record and its merge rules.
package models

import (
	"time"

	id "clocklayer/pkg/domain"
)

// UserRecord is one signed-up person, keyed by identity id.
type UserRecord struct {
	ID                id.IdentityID  `json:"id"`
	Name              string         `json:"name"`
	Username          string         `json:"username"`
	ProfileImageURL   *string        `json:"profileImageUrl,omitempty"`
	Phone             *string        `json:"phone,omitempty"`
	SignupUserAgent   string         `json:"signupUserAgent,omitempty"`
	ReferredBy        *id.IdentityID `json:"referredBy,omitempty"`
	TaskLedgerID      *string        `json:"taskLedgerId,omitempty"`
	TaskLedgerPoints  int            `json:"taskLedgerPoints"`
	HasCompletedTasks bool           `json:"hasCompletedTasks"`
	AdmittedAt        *time.Time     `json:"admittedAt,omitempty"`
	CreatedAt         *time.Time     `json:"createdAt,omitempty"`
	LastLoginAt       time.Time      `json:"lastLoginAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Admitted reports whether the record has passed the task gate.
func (u *UserRecord) Admitted() bool {
	return u.HasCompletedTasks
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name            *string
	Username        *string
	ProfileImageURL *string
	Phone           *string
	SignupUserAgent *string
	ReferredBy      *id.IdentityID
	LastLoginAt     *time.Time
	CreatedAt       *time.Time

	// Admission group. Applied only together with the first false->true
	// transition of HasCompletedTasks.
	HasCompletedTasks *bool
	TaskLedgerID      *string
	TaskLedgerPoints  *int
	AdmittedAt        *time.Time
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Admission builds the patch written by the task gate.
func Admission(ledgerID string, points int, at time.Time) Patch {
	done := true
	return Patch{
		HasCompletedTasks: &done,
		TaskLedgerID:      &ledgerID,
		TaskLedgerPoints:  &points,
		AdmittedAt:        &at,
	}
}

// Apply merges p into u at time now and reports whether anything changed.
//
// Last write wins per field, except: CreatedAt and ReferredBy are set once,
// and HasCompletedTasks never goes back to false. Repeating an admission patch
// on an admitted record is a no-op.
func (u *UserRecord) Apply(p Patch, now time.Time) bool {
	changed := false
	setString := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	setOptional := func(dst **string, src *string) {
		if src == nil {
			return
		}
		if *dst == nil || **dst != *src {
			v := *src
			*dst = &v
			changed = true
		}
	}

	setString(&u.Name, p.Name)
	setString(&u.Username, p.Username)
	setString(&u.SignupUserAgent, p.SignupUserAgent)
	setOptional(&u.ProfileImageURL, p.ProfileImageURL)
	setOptional(&u.Phone, p.Phone)

	if p.LastLoginAt != nil && !u.LastLoginAt.Equal(*p.LastLoginAt) {
		u.LastLoginAt = *p.LastLoginAt
		changed = true
	}
	if p.CreatedAt != nil && u.CreatedAt == nil {
		v := *p.CreatedAt
		u.CreatedAt = &v
		changed = true
	}
	if p.ReferredBy != nil && u.ReferredBy == nil && *p.ReferredBy != "" && *p.ReferredBy != u.ID {
		v := *p.ReferredBy
		u.ReferredBy = &v
		changed = true
	}

	if p.HasCompletedTasks != nil && *p.HasCompletedTasks && !u.HasCompletedTasks {
		u.HasCompletedTasks = true
		if p.TaskLedgerID != nil {
			v := *p.TaskLedgerID
			u.TaskLedgerID = &v
		}
		if p.TaskLedgerPoints != nil {
			u.TaskLedgerPoints = *p.TaskLedgerPoints
		}
		admitted := now
		if p.AdmittedAt != nil {
			admitted = *p.AdmittedAt
		}
		u.AdmittedAt = &admitted
		changed = true
	}

	if changed {
		u.UpdatedAt = now
	}
	return changed
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (u *UserRecord) Clone() *UserRecord {
	c := *u
	c.ProfileImageURL = clonePtr(u.ProfileImageURL)
	c.Phone = clonePtr(u.Phone)
	c.ReferredBy = clonePtr(u.ReferredBy)
	c.TaskLedgerID = clonePtr(u.TaskLedgerID)
	c.AdmittedAt = clonePtr(u.AdmittedAt)
	c.CreatedAt = clonePtr(u.CreatedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Filter selects user records. Zero-valued fields do not constrain.
type Filter struct {
	HasCompletedTasks *bool
	ReferredBy        *id.IdentityID
	Username          string
	Limit             int
}

// Admitted is the waitlist counter query.
func Admitted() Filter {
	t := true
	return Filter{HasCompletedTasks: &t}
}

// ReferredBy lists the records attributed to referrer.
func ReferredBy(referrer id.IdentityID) Filter {
	return Filter{ReferredBy: &referrer}
}

// Matches reports whether u satisfies f.
func (f Filter) Matches(u *UserRecord) bool {
	if f.HasCompletedTasks != nil && u.HasCompletedTasks != *f.HasCompletedTasks {
		return false
	}
	if f.ReferredBy != nil && (u.ReferredBy == nil || *u.ReferredBy != *f.ReferredBy) {
		return false
	}
	if f.Username != "" && u.Username != f.Username {
		return false
	}
	return true
}

// Snapshot is the full result set of a live query at one point in time.
type Snapshot struct {
	Records []*UserRecord
	At      time.Time
}

func (s Snapshot) Len() int { return len(s.Records) }
