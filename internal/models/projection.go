package models

// UserRef is the id-only projection of a user. It is used to point at a
// supervisor without loading its subgraph.
type UserRef struct {
	ID string `json:"id"`
}

// UserProjection is the interface-style projection of a user: scalars, the
// organization, and the direct supervisor as a reference.
type UserProjection struct {
	ID           string        `json:"id"`
	GivenName    *string       `json:"givenName"`
	FamilyName   *string       `json:"familyName"`
	BelongsTo    *Organization `json:"belongsTo"`
	SupervisedBy *UserRef      `json:"supervisedBy"`
	Version      int64         `json:"version"`
}

// SupervisorID returns the ID of the direct supervisor, or "" when there is none.
func (p *UserProjection) SupervisorID() string {
	if p.SupervisedBy == nil {
		return ""
	}
	return p.SupervisedBy.ID
}

// OrgID returns the ID of the owning organization, or "" if it is not set.
func (p *UserProjection) OrgID() string {
	if p.BelongsTo == nil {
		return ""
	}
	return p.BelongsTo.ID
}

// UserDTO is the flat data-transfer shape of a user. Unlike UserProjection it
// holds the organization by value and the supervisor as a detached reference.
type UserDTO struct {
	ID           string       `json:"id"`
	GivenName    *string      `json:"givenName"`
	FamilyName   *string      `json:"familyName"`
	BelongsTo    Organization `json:"belongsTo"`
	SupervisedBy *UserRef     `json:"supervisedBy"`
	Version      int64        `json:"version"`
}

// Projection converts the DTO into the equivalent projection.
func (d *UserDTO) Projection() *UserProjection {
	org := d.BelongsTo
	p := &UserProjection{
		ID:         d.ID,
		GivenName:  d.GivenName,
		FamilyName: d.FamilyName,
		BelongsTo:  &org,
		Version:    d.Version,
	}
	if d.SupervisedBy != nil {
		p.SupervisedBy = &UserRef{ID: d.SupervisedBy.ID}
	}
	return p
}
