package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/giftlist/internal/model"
)

type inviteFixture struct {
	invites *InviteStore
	groups  *GroupStore
	users   *UserStore
	owner   *model.User
	group   *model.Group
}

func setupInviteTestDB(t *testing.T) inviteFixture {
	t.Helper()
	db := openTestDB(t)
	f := inviteFixture{
		invites: NewInviteStore(db),
		groups:  NewGroupStore(db),
		users:   NewUserStore(db),
	}
	f.owner, _ = f.users.Create("owner@example.com", "Owner")
	f.group, _ = f.groups.Create("Xmas", "", f.owner.ID)
	return f
}

func TestInviteCreate(t *testing.T) {
	f := setupInviteTestDB(t)

	inv, err := f.invites.Create(f.group.ID, "Bob@Example.com")
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if inv.Email != "bob@example.com" {
		t.Errorf("email = %q, want %q", inv.Email, "bob@example.com")
	}
	if inv.Token == "" {
		t.Error("expected token")
	}
	if inv.Accepted {
		t.Error("new invite should not be accepted")
	}

	other, _ := f.invites.Create(f.group.ID, "bob@example.com")
	if other.Token == inv.Token {
		t.Error("tokens should be unique")
	}

	byToken, err := f.invites.GetByToken(inv.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if byToken == nil || byToken.ID != inv.ID {
		t.Errorf("get by token = %+v, want id %d", byToken, inv.ID)
	}

	list, err := f.invites.ListByGroup(f.group.ID)
	if err != nil {
		t.Fatalf("list invites: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("invites = %d, want 2", len(list))
	}
}

func TestInviteAcceptExactlyOnce(t *testing.T) {
	f := setupInviteTestDB(t)

	bob, _ := f.users.Create("bob@example.com", "Bob")
	inv, _ := f.invites.Create(f.group.ID, bob.Email)

	m, err := f.invites.Accept(inv.ID, bob.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Role != model.RoleMember || m.GroupID != f.group.ID {
		t.Errorf("membership = %+v, want member of group %d", m, f.group.ID)
	}

	if _, err := f.invites.Accept(inv.ID, bob.ID); !errors.Is(err, ErrInviteAccepted) {
		t.Fatalf("second accept err = %v, want ErrInviteAccepted", err)
	}

	var n int
	f.invites.db.QueryRow(`SELECT COUNT(*) FROM user_groups WHERE user_id = ? AND group_id = ?`, bob.ID, f.group.ID).Scan(&n)
	if n != 1 {
		t.Errorf("membership rows = %d, want 1", n)
	}

	got, _ := f.invites.GetByID(inv.ID)
	if !got.Accepted {
		t.Error("expected invite marked accepted")
	}
}

func TestInviteAcceptKeepsOwnerRole(t *testing.T) {
	f := setupInviteTestDB(t)

	inv, _ := f.invites.Create(f.group.ID, f.owner.Email)

	m, err := f.invites.Accept(inv.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Role != model.RoleOwner {
		t.Errorf("role = %q, want owner to be preserved", m.Role)
	}
}

func TestInviteAcceptMissing(t *testing.T) {
	f := setupInviteTestDB(t)

	if _, err := f.invites.Accept(999, f.owner.ID); !errors.Is(err, ErrInviteAccepted) {
		t.Fatalf("err = %v, want ErrInviteAccepted for unknown invite", err)
	}
}
