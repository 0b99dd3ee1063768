package auth

import (
	"context"
	"maps"
)

type contextKey struct{}

// AuthContext is the caller's identity for one request. A zero UserID means
// no session. VerifiedGroups maps groups unlocked with the group password to
// the PasswordKey they were unlocked with.
type AuthContext struct {
	UserID         int64
	Email          string
	SessionID      int64
	VerifiedGroups map[int64]string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// HasSession reports whether the request carries a valid session.
func (ac AuthContext) HasSession() bool {
	return ac.UserID != 0
}

// GrantKey returns the password key groupID was unlocked with, if any.
func (ac AuthContext) GrantKey(groupID int64) (string, bool) {
	key, ok := ac.VerifiedGroups[groupID]
	return key, ok
}

// Grants returns a copy of the verified groups that callers may extend.
func (ac AuthContext) Grants() map[int64]string {
	grants := make(map[int64]string, len(ac.VerifiedGroups)+1)
	maps.Copy(grants, ac.VerifiedGroups)
	return grants
}

// Cookie names shared by the middleware that reads them and the handlers
// that set them.
const (
	SessionCookie = "giftlist_session"
	GrantCookie   = "giftlist_grant"
)
