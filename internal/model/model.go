package model

// Package model contains domain models shared across layers.
// No persistence tags or business logic beyond small invariants live here.

// Project is an import target inside an organization.
type Project struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}
