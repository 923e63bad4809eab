package service

import "strings"

// Role names recognised by the capability checks. The auth collaborator supplies
// roles as an opaque set; the core only inspects membership of these two.
const (
	RoleValidator = "validator"
	RoleAdmin     = "admin"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID    string
	Roles []string
}

// HasRole reports whether the actor carries the named role.
func (a Actor) HasRole(role string) bool {
	for _, candidate := range a.Roles {
		if strings.EqualFold(strings.TrimSpace(candidate), role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor holds the admin capability.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// CanValidate reports whether the actor may review pending feedback.
func (a Actor) CanValidate() bool {
	return a.HasRole(RoleValidator) || a.IsAdmin()
}
