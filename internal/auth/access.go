package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/giftlist/internal/apperr"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
)

// RoleGuest is the role granted by the group password. It is never stored.
const RoleGuest = "guest"

// Via names the credential an Access was derived from.
type Via string

const (
	ViaSession  Via = "session"
	ViaPassword Via = "password"
)

// Access is the caller's standing in one group.
type Access struct {
	GroupID int64
	Role    string
	Via     Via
}

func (a Access) IsOwner() bool {
	return a.Role == model.RoleOwner
}

// GroupReader is the group storage consulted by Authorize.
type GroupReader interface {
	GetMember(groupID, userID int64) (*model.Membership, error)
	PasswordHash(groupID int64) (string, error)
}

// Authorize resolves the caller's access to groupID. A session membership
// takes precedence over a password grant. A grant only counts while the
// group still has the password it was issued for.
func Authorize(ctx context.Context, groups GroupReader, groupID int64) (Access, error) {
	ac, _ := FromContext(ctx)

	if ac.HasSession() {
		m, err := groups.GetMember(groupID, ac.UserID)
		if err != nil {
			return Access{}, apperr.Store("failed to check membership", err)
		}
		if m != nil {
			return Access{GroupID: groupID, Role: m.Role, Via: ViaSession}, nil
		}
	}

	if key, ok := ac.GrantKey(groupID); ok {
		hash, err := groups.PasswordHash(groupID)
		if err != nil {
			return Access{}, apperr.Store("failed to check group password", err)
		}
		if hash != "" && PasswordKey(hash) == key {
			return Access{GroupID: groupID, Role: RoleGuest, Via: ViaPassword}, nil
		}
	}

	if !ac.HasSession() {
		return Access{}, apperr.Unauthorized("sign in or enter the group password")
	}
	return Access{}, apperr.Forbidden("not a member of this group")
}

// RequireMember is Authorize restricted to session memberships.
func RequireMember(ctx context.Context, groups GroupReader, groupID int64) (Access, error) {
	a, err := Authorize(ctx, groups, groupID)
	if err != nil {
		return Access{}, err
	}
	if a.Via != ViaSession {
		return Access{}, apperr.Forbidden("group members only")
	}
	return a, nil
}

// RequireOwner is Authorize restricted to the group owner.
func RequireOwner(ctx context.Context, groups GroupReader, groupID int64) (Access, error) {
	a, err := RequireMember(ctx, groups, groupID)
	if err != nil {
		return Access{}, err
	}
	if !a.IsOwner() {
		return Access{}, apperr.Forbidden("only the group owner can do that")
	}
	return a, nil
}

// InviteAccepter is the invite storage used by AcceptInvite.
type InviteAccepter interface {
	GetByID(id int64) (*model.Invite, error)
	Accept(inviteID, userID int64) (*model.Membership, error)
}

// AcceptInvite redeems an invite for the session user. The invite must be
// pending and addressed to the user's email.
func AcceptInvite(ctx context.Context, invites InviteAccepter, inviteID int64) (*model.Membership, error) {
	ac, _ := FromContext(ctx)
	if !ac.HasSession() {
		return nil, apperr.Unauthorized("sign in required")
	}

	inv, err := invites.GetByID(inviteID)
	if err != nil {
		return nil, apperr.Store("failed to load invite", err)
	}
	if inv == nil {
		return nil, apperr.NotFound("invite not found")
	}
	if inv.Accepted {
		return nil, apperr.Conflict("invite already accepted")
	}
	if !strings.EqualFold(strings.TrimSpace(inv.Email), strings.TrimSpace(ac.Email)) {
		return nil, apperr.Forbidden("invite was sent to a different email")
	}

	m, err := invites.Accept(inviteID, ac.UserID)
	if errors.Is(err, store.ErrInviteAccepted) {
		return nil, apperr.Conflict("invite already accepted")
	}
	if err != nil {
		return nil, apperr.Store("failed to accept invite", fmt.Errorf("accept invite %d: %w", inviteID, err))
	}
	return m, nil
}
