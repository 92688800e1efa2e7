// Package models defines the domain models for orggraph.
package models

import (
	"github.com/google/uuid"
)

// Organization is the tenant a user belongs to. It is immutable after creation.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewOrganization creates a new Organization with a freshly generated ID.
func NewOrganization(name string) *Organization {
	return &Organization{
		ID:   uuid.NewString(),
		Name: name,
	}
}
