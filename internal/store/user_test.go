package store

import "testing"

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(openTestDB(t))
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("Alice@Example.com ", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Name != "Alice" {
		t.Errorf("name = %q, want %q", u.Name, "Alice")
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "Alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("ALICE@example.com", "Alice2"); err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserGetByEmailCaseInsensitive(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("alice@example.com", "Alice")

	u, err := us.GetByEmail("ALICE@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %+v, want user %d", u, created.ID)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserGetOrCreate(t *testing.T) {
	us := setupUserTestDB(t)

	first, err := us.GetOrCreate("bob@example.com")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	second, err := us.GetOrCreate("Bob@example.com")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}
}

func TestUserUpdateName(t *testing.T) {
	us := setupUserTestDB(t)

	u, _ := us.Create("alice@example.com", "")
	updated, err := us.UpdateName(u.ID, "Alice")
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if updated.Name != "Alice" {
		t.Errorf("name = %q, want %q", updated.Name, "Alice")
	}
}
