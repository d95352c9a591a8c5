package admins

import (
	"time"

	"github.com/google/uuid"
)

// Status is the admin user lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRemoved   Status = "removed" // terminal
)

// statusTransitions is the lifecycle state machine: active and suspended
// flip back and forth, removed is terminal.
var statusTransitions = map[Status][]Status{
	StatusActive:    {StatusSuspended, StatusRemoved},
	StatusSuspended: {StatusActive, StatusRemoved},
	StatusRemoved:   {},
}

// CanTransition reports whether the lifecycle permits moving to the target
// state.
func (s Status) CanTransition(to Status) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AdminUser binds a person to exactly one admin role. Reassignment
// replaces the role reference; suspension pauses the person's authority
// without touching the binding.
type AdminUser struct {
	ID      uuid.UUID `json:"id"`
	UserRef string    `json:"user_ref"` // the underlying person/account
	RoleID  uuid.UUID `json:"role_id"`
	Status  Status    `json:"status"`

	AssignedBy string `json:"assigned_by"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
