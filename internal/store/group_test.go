package store

import (
	"testing"

	"github.com/dukerupert/giftlist/internal/model"
)

func setupGroupTestDB(t *testing.T) (*GroupStore, *UserStore) {
	t.Helper()
	db := openTestDB(t)
	return NewGroupStore(db), NewUserStore(db)
}

func TestGroupCreateMakesOwner(t *testing.T) {
	gs, us := setupGroupTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice")
	g, err := gs.Create("Xmas", "", u.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if g.Name != "Xmas" {
		t.Errorf("name = %q, want %q", g.Name, "Xmas")
	}
	if g.HasPassword {
		t.Error("expected no password")
	}

	m, err := gs.GetMember(g.ID, u.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != model.RoleOwner {
		t.Fatalf("membership = %+v, want owner", m)
	}
}

func TestGroupCreateUnknownOwnerRollsBack(t *testing.T) {
	gs, _ := setupGroupTestDB(t)

	if _, err := gs.Create("Orphan", "", 999); err == nil {
		t.Fatal("expected foreign key error for unknown owner")
	}

	var n int
	gs.db.QueryRow(`SELECT COUNT(*) FROM gift_groups`).Scan(&n)
	if n != 0 {
		t.Errorf("groups = %d, want 0 after rollback", n)
	}
}

func TestGroupPassword(t *testing.T) {
	gs, us := setupGroupTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice")
	g, _ := gs.Create("Xmas", "$2a$10$hash", u.ID)
	if !g.HasPassword || g.PasswordHash != "$2a$10$hash" {
		t.Fatalf("group = %+v, want password hash", g)
	}
	if hash, err := gs.PasswordHash(g.ID); err != nil || hash != "$2a$10$hash" {
		t.Errorf("PasswordHash = %q, %v", hash, err)
	}

	if err := gs.SetPasswordHash(g.ID, ""); err != nil {
		t.Fatalf("clear password: %v", err)
	}
	got, _ := gs.GetByID(g.ID)
	if got.HasPassword {
		t.Error("expected password cleared")
	}
	if hash, err := gs.PasswordHash(g.ID); err != nil || hash != "" {
		t.Errorf("PasswordHash after clear = %q, %v, want empty", hash, err)
	}
	if hash, err := gs.PasswordHash(999); err != nil || hash != "" {
		t.Errorf("PasswordHash(missing) = %q, %v, want empty", hash, err)
	}
}

func TestGroupGetByIDNotFound(t *testing.T) {
	gs, _ := setupGroupTestDB(t)

	g, err := gs.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if g != nil {
		t.Error("expected nil for nonexistent group")
	}
}

func TestGroupMembers(t *testing.T) {
	gs, us := setupGroupTestDB(t)

	alice, _ := us.Create("alice@example.com", "Alice")
	bob, _ := us.Create("bob@example.com", "Bob")
	g, _ := gs.Create("Xmas", "", alice.ID)

	if _, err := gs.db.Exec(
		`INSERT INTO user_groups (user_id, group_id, role) VALUES (?, ?, ?)`,
		bob.ID, g.ID, model.RoleMember,
	); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := gs.db.Exec(
		`INSERT INTO user_groups (user_id, group_id, role) VALUES (?, ?, ?)`,
		bob.ID, g.ID, model.RoleOwner,
	); err == nil {
		t.Fatal("expected error for duplicate membership")
	}

	members, err := gs.ListMembers(g.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	if members[0].Email != "alice@example.com" || members[0].Role != model.RoleOwner {
		t.Errorf("first member = %+v, want alice as owner", members[0])
	}

	m, err := gs.GetMember(g.ID, 12345)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m != nil {
		t.Error("expected nil for non-member")
	}
}

func TestGroupListForUser(t *testing.T) {
	gs, us := setupGroupTestDB(t)

	alice, _ := us.Create("alice@example.com", "Alice")
	bob, _ := us.Create("bob@example.com", "Bob")
	gs.Create("Xmas", "", alice.ID)
	gs.Create("Birthday", "", alice.ID)
	gs.Create("Bob's", "", bob.ID)

	groups, err := gs.ListForUser(alice.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Name != "Birthday" {
		t.Errorf("first group = %q, want Birthday", groups[0].Name)
	}
}

func TestGroupDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	gs, us := NewGroupStore(db), NewUserStore(db)
	ls, is, cs, invs := NewListStore(db), NewItemStore(db), NewCommentStore(db), NewInviteStore(db)

	u, _ := us.Create("alice@example.com", "Alice")
	g, _ := gs.Create("Xmas", "", u.ID)
	l, _ := ls.InsertAtTop(g.ID, "Gifts", "")
	item, _ := is.Create(l.ID, "Socks")
	cs.Create(item.ID, "wool please")
	invs.Create(g.ID, "bob@example.com")

	if err := gs.Delete(g.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}

	for _, table := range []string{"gift_groups", "user_groups", "group_invites", "lists", "items", "comments"} {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s rows = %d, want 0", table, n)
		}
	}
}
