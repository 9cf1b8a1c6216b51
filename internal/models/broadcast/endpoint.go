package models

import "time"

// Role identifies which side of the platform a device belongs to.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

// ParseRole maps an API role string onto a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePassenger, RoleDriver:
		return Role(s), true
	default:
		return "", false
	}
}

// DeviceEndpoint is one device's push destination. There is at most one valid
// endpoint per (owner_role, owner_id); a new registration for the same owner
// supersedes the previous one.
type DeviceEndpoint struct {
	Token        string    `json:"token" db:"token"`
	OwnerRole    Role      `json:"owner_role" db:"owner_role"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	LastSeenAt   time.Time `json:"last_seen_at" db:"last_seen_at"`
	Valid        bool      `json:"valid" db:"valid"`
}
