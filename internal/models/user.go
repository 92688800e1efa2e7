package models

import (
	"github.com/google/uuid"
)

// User is the full entity: scalar properties plus both relationships resolved.
// SupervisedBy may itself carry a supervisor, down to the root of the chain.
type User struct {
	ID           string        `json:"id"`
	GivenName    *string       `json:"givenName"`
	FamilyName   *string       `json:"familyName"`
	BelongsTo    *Organization `json:"belongsTo"`
	SupervisedBy *User         `json:"supervisedBy"`
	Version      int64         `json:"version"`
}

// NewUser creates a new User in the given organization with a freshly generated ID.
// Version stays zero until the user is first saved.
func NewUser(org *Organization, givenName, familyName *string) *User {
	return &User{
		ID:         uuid.NewString(),
		GivenName:  givenName,
		FamilyName: familyName,
		BelongsTo:  org,
	}
}

// Ref returns the id-only view of the user.
func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID}
}

// Projection returns the user as a projection, keeping only one level of supervision.
func (u *User) Projection() *UserProjection {
	p := &UserProjection{
		ID:         u.ID,
		GivenName:  u.GivenName,
		FamilyName: u.FamilyName,
		Version:    u.Version,
	}
	if u.BelongsTo != nil {
		org := *u.BelongsTo
		p.BelongsTo = &org
	}
	if u.SupervisedBy != nil {
		p.SupervisedBy = u.SupervisedBy.Ref()
	}
	return p
}

// SupervisorID returns the ID of the direct supervisor, or "" when there is none.
func (u *User) SupervisorID() string {
	if u.SupervisedBy == nil {
		return ""
	}
	return u.SupervisedBy.ID
}

// OrgID returns the ID of the owning organization, or "" if it is not loaded.
func (u *User) OrgID() string {
	if u.BelongsTo == nil {
		return ""
	}
	return u.BelongsTo.ID
}
