package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/internal/domain"
)

func TestEvaluate(t *testing.T) {
	buyer := Actor{UserID: "u1", Role: RoleBuyer}
	other := Actor{UserID: "u2", Role: RoleBuyer}
	admin := Actor{UserID: "a1", Role: RoleAdmin}

	tests := []struct {
		name  string
		actor Actor
		res   Resource
		want  Decision
	}{
		{"owner reads own order", buyer, OwnedBy("u1"), Allow},
		{"buyer reads foreign order", other, OwnedBy("u1"), Deny},
		{"admin is not owner", admin, OwnedBy("u1"), Deny},
		{"anonymous owner match on empty id", Actor{}, OwnedBy(""), Deny},
		{"admin on admin scope", admin, Admin(), Allow},
		{"buyer on admin scope", buyer, Admin(), Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.actor, tt.res))
		})
	}
}

func TestRequire_HidesForeignOwnerResources(t *testing.T) {
	err := Require(Actor{UserID: "u2"}, OwnedBy("u1"), "order")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrPermissionDenied))

	err = Require(Actor{UserID: "u2", Role: RoleBuyer}, Admin(), "orders")
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))

	assert.NoError(t, Require(Actor{UserID: "u1"}, OwnedBy("u1"), "order"))
}

func TestActorContext(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "u1", Role: RoleAdmin})
	assert.Equal(t, "u1", ActorFrom(ctx).UserID)
	assert.True(t, ActorFrom(context.Background()).Anonymous())
}
