package models

// UserInput is the request body shared by user create and update operations.
// Absent fields are nil and leave the current value unchanged on update.
type UserInput struct {
	GivenName    *string `json:"givenName,omitempty"`
	FamilyName   *string `json:"familyName,omitempty"`
	SupervisorID *string `json:"supervisorId,omitempty"`
	// Version, when set, makes an update conditional on the stored version.
	Version *int64 `json:"version,omitempty"`
}

// HasSupervisor reports whether the input carries a supervisor id. An empty
// id still counts and fails the supervisor lookup.
func (in UserInput) HasSupervisor() bool {
	return in.SupervisorID != nil
}

// OverlayNames copies the name fields present in the input onto the projection.
func (in UserInput) OverlayNames(p *UserProjection) {
	if in.GivenName != nil {
		p.GivenName = in.GivenName
	}
	if in.FamilyName != nil {
		p.FamilyName = in.FamilyName
	}
}

// OrganizationInput is the request body for creating an organization.
type OrganizationInput struct {
	Name string `json:"name"`
}
