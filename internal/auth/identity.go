// Package auth turns bearer tokens and session cookies into the Identity the
// shop service authorizes against.
package auth

import (
	"context"

	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

// Identity is the caller of an operation. UserID is zero for anonymous
// visitors, who are known only by their session key.
type Identity struct {
	UserID     int64
	Role       models.Role
	SessionKey string
}

func (i Identity) IsAuthenticated() bool {
	return i.UserID != 0
}

func (i Identity) IsStaff() bool {
	return i.IsAuthenticated() && i.Role == models.RoleStaff
}

func (i Identity) IsDeliveryAgent() bool {
	return i.IsAuthenticated() && i.Role == models.RoleDeliveryAgent
}

// CartOwner prefers the user over the session key.
func (i Identity) CartOwner() store.CartOwner {
	if i.IsAuthenticated() {
		return store.CartOwner{UserID: i.UserID}
	}
	return store.CartOwner{SessionKey: i.SessionKey}
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the anonymous zero Identity when none was stored.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(contextKey{}).(Identity)
	return id
}
