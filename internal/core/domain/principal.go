package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the kind of authenticated actor.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleClient  Role = "client"
	RoleLivreur Role = "livreur"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient || r == RoleLivreur
}

// Principal is the authenticated caller.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// IsAdmin is a shorthand for the admin role check.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// ScopeFilter restricts list queries to rows a principal may see.
// A zero filter means unrestricted.
type ScopeFilter struct {
	ClientID  *uuid.UUID
	LivreurID *uuid.UUID
}

// QueryScope yields the base filter for one kind of principal.
type QueryScope interface {
	BaseFilter() ScopeFilter
}

// AdminScope sees everything.
type AdminScope struct{}

func (AdminScope) BaseFilter() ScopeFilter { return ScopeFilter{} }

// ClientScope sees the stores a client owns.
type ClientScope struct {
	ClientID uuid.UUID
}

func (s ClientScope) BaseFilter() ScopeFilter {
	id := s.ClientID
	return ScopeFilter{ClientID: &id}
}

// LivreurScope sees the parcels a courier carried.
type LivreurScope struct {
	LivreurID uuid.UUID
}

func (s LivreurScope) BaseFilter() ScopeFilter {
	id := s.LivreurID
	return ScopeFilter{LivreurID: &id}
}

// ScopeFor picks the query scope for a principal.
func ScopeFor(p Principal) (QueryScope, error) {
	switch p.Role {
	case RoleAdmin:
		return AdminScope{}, nil
	case RoleClient:
		return ClientScope{ClientID: p.ID}, nil
	case RoleLivreur:
		return LivreurScope{LivreurID: p.ID}, nil
	}
	return nil, fmt.Errorf("unknown role %q", p.Role)
}
