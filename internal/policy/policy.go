package policy

import (
	"context"

	"storefront/internal/domain"
)

type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
)

// Actor is the caller as asserted by the upstream identity provider.
type Actor struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

func (a Actor) Anonymous() bool {
	return a.UserID == ""
}

// Scope tells which surface a resource is being reached through.
type Scope int

const (
	// ScopeOwner resources belong to a single user; foreign access is hidden.
	ScopeOwner Scope = iota
	// ScopeAdmin resources are administrative; foreign access is reported.
	ScopeAdmin
)

type Resource struct {
	Scope   Scope
	OwnerID string
}

func OwnedBy(userID string) Resource {
	return Resource{Scope: ScopeOwner, OwnerID: userID}
}

func Admin() Resource {
	return Resource{Scope: ScopeAdmin}
}

type Decision int

const (
	Deny Decision = iota
	Allow
)

// Evaluate is the single authorization rule of the service.
func Evaluate(actor Actor, res Resource) Decision {
	if actor.Anonymous() {
		return Deny
	}
	switch res.Scope {
	case ScopeOwner:
		if actor.UserID == res.OwnerID {
			return Allow
		}
	case ScopeAdmin:
		if actor.Role == RoleAdmin {
			return Allow
		}
	}
	return Deny
}

// Require turns a Deny into the error kind the scope prescribes: owner
// resources read as missing, admin resources as forbidden.
func Require(actor Actor, res Resource, what string) error {
	if Evaluate(actor, res) == Allow {
		return nil
	}
	if res.Scope == ScopeAdmin {
		return domain.NewError(domain.ErrPermissionDenied, "administrator role required")
	}
	return domain.NotFound(what + " not found")
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
