package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/ordering"
	"github.com/google/go-cmp/cmp"
)

type listFixture struct {
	lists *ListStore
	items *ItemStore
	group *model.Group
	other *model.Group
}

func setupListTestDB(t *testing.T) listFixture {
	t.Helper()
	db := openTestDB(t)
	users, groups := NewUserStore(db), NewGroupStore(db)
	u, err := users.Create("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	g, err := groups.Create("Xmas", "", u.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	other, err := groups.Create("Birthday", "", u.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return listFixture{lists: NewListStore(db), items: NewItemStore(db), group: g, other: other}
}

func titles(lists []model.List) []string {
	out := make([]string, 0, len(lists))
	for _, l := range lists {
		out = append(out, l.Title)
	}
	return out
}

func TestListInsertAtTop(t *testing.T) {
	f := setupListTestDB(t)

	gifts, err := f.lists.InsertAtTop(f.group.ID, "Gifts", "")
	if err != nil {
		t.Fatalf("insert gifts: %v", err)
	}
	if gifts.Position == nil || *gifts.Position != 0 {
		t.Fatalf("gifts position = %v, want 0", gifts.Position)
	}

	food, err := f.lists.InsertAtTop(f.group.ID, "Food", "snow")
	if err != nil {
		t.Fatalf("insert food: %v", err)
	}
	if food.Position == nil || *food.Position != -1 {
		t.Fatalf("food position = %v, want -1", food.Position)
	}
	if food.Theme != "snow" {
		t.Errorf("theme = %q, want snow", food.Theme)
	}

	lists, err := f.lists.ListByGroup(f.group.ID)
	if err != nil {
		t.Fatalf("list by group: %v", err)
	}
	if diff := cmp.Diff([]string{"Food", "Gifts"}, titles(lists)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestListInsertAtTopUsesGroupMinimum(t *testing.T) {
	f := setupListTestDB(t)

	f.lists.db.Exec(`INSERT INTO lists (group_id, title, position) VALUES (?, 'a', 5), (?, 'b', 9)`, f.group.ID, f.group.ID)
	f.lists.db.Exec(`INSERT INTO lists (group_id, title, position) VALUES (?, 'elsewhere', -50)`, f.other.ID)

	l, err := f.lists.InsertAtTop(f.group.ID, "new", "")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if *l.Position != 4 {
		t.Errorf("position = %d, want 4", *l.Position)
	}
}

func TestListInsertAtTopOnlyLegacyLists(t *testing.T) {
	f := setupListTestDB(t)

	if _, err := f.lists.db.Exec(`INSERT INTO lists (group_id, title, position) VALUES (?, 'legacy', NULL)`, f.group.ID); err != nil {
		t.Fatalf("seed legacy list: %v", err)
	}

	l, err := f.lists.InsertAtTop(f.group.ID, "new", "")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if l.Position == nil || *l.Position != 0 {
		t.Errorf("position = %v, want 0", l.Position)
	}
}

func TestListByGroupLegacyOrdering(t *testing.T) {
	f := setupListTestDB(t)

	seed := []struct {
		title     string
		position  any
		createdAt string
	}{
		{"legacy old", nil, "2023-01-01 10:00:00"},
		{"second", 2, "2023-01-02 10:00:00"},
		{"legacy new", nil, "2023-06-01 10:00:00"},
		{"first", -3, "2023-01-03 10:00:00"},
	}
	for _, s := range seed {
		if _, err := f.lists.db.Exec(
			`INSERT INTO lists (group_id, title, position, created_at) VALUES (?, ?, ?, ?)`,
			f.group.ID, s.title, s.position, s.createdAt,
		); err != nil {
			t.Fatalf("seed %s: %v", s.title, err)
		}
	}

	lists, err := f.lists.ListByGroup(f.group.ID)
	if err != nil {
		t.Fatalf("list by group: %v", err)
	}
	want := []string{"first", "second", "legacy new", "legacy old"}
	if diff := cmp.Diff(want, titles(lists)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestListGetInGroup(t *testing.T) {
	f := setupListTestDB(t)

	l, _ := f.lists.InsertAtTop(f.group.ID, "Gifts", "")

	got, err := f.lists.GetInGroup(f.group.ID, l.ID)
	if err != nil {
		t.Fatalf("get in group: %v", err)
	}
	if got == nil {
		t.Fatal("expected list")
	}

	got, err = f.lists.GetInGroup(f.other.ID, l.ID)
	if err != nil {
		t.Fatalf("get in other group: %v", err)
	}
	if got != nil {
		t.Error("expected nil for list in a different group")
	}
}

func TestListUpdate(t *testing.T) {
	f := setupListTestDB(t)

	l, _ := f.lists.InsertAtTop(f.group.ID, "Gifts", "")
	updated, err := f.lists.Update(l.ID, "Presents", "snow")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Presents" || updated.Theme != "snow" {
		t.Errorf("updated = %+v", updated)
	}
	if *updated.Position != *l.Position {
		t.Error("update should not move the list")
	}
}

func TestListReorder(t *testing.T) {
	f := setupListTestDB(t)

	a, _ := f.lists.InsertAtTop(f.group.ID, "A", "")
	b, _ := f.lists.InsertAtTop(f.group.ID, "B", "")
	c, _ := f.lists.InsertAtTop(f.group.ID, "C", "")

	err := f.lists.Reorder(f.group.ID, []ordering.Move{
		{ID: a.ID, Position: 0},
		{ID: b.ID, Position: 1},
		{ID: c.ID, Position: 2},
	})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}

	lists, _ := f.lists.ListByGroup(f.group.ID)
	if diff := cmp.Diff([]string{"A", "B", "C"}, titles(lists)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestListReorderRejectsForeignList(t *testing.T) {
	f := setupListTestDB(t)

	a, _ := f.lists.InsertAtTop(f.group.ID, "A", "")
	f.lists.InsertAtTop(f.group.ID, "B", "")
	c, _ := f.lists.InsertAtTop(f.other.ID, "C", "")

	err := f.lists.Reorder(f.group.ID, []ordering.Move{
		{ID: a.ID, Position: 1},
		{ID: c.ID, Position: 2},
	})
	if !errors.Is(err, ErrListNotInGroup) {
		t.Fatalf("err = %v, want ErrListNotInGroup", err)
	}

	got, _ := f.lists.GetByID(a.ID)
	if *got.Position != *a.Position {
		t.Errorf("A position = %d, want unchanged %d", *got.Position, *a.Position)
	}
	gotC, _ := f.lists.GetByID(c.ID)
	if *gotC.Position != *c.Position {
		t.Errorf("C position = %d, want unchanged %d", *gotC.Position, *c.Position)
	}
}

func TestListReorderRejectsUnknownAndInvalid(t *testing.T) {
	f := setupListTestDB(t)

	a, _ := f.lists.InsertAtTop(f.group.ID, "A", "")

	if err := f.lists.Reorder(f.group.ID, []ordering.Move{{ID: a.ID}, {ID: 4242}}); !errors.Is(err, ErrListNotInGroup) {
		t.Errorf("unknown id err = %v, want ErrListNotInGroup", err)
	}
	if err := f.lists.Reorder(f.group.ID, nil); err == nil {
		t.Error("expected error for empty batch")
	}
	if err := f.lists.Reorder(f.group.ID, []ordering.Move{{ID: a.ID}, {ID: a.ID, Position: 3}}); err == nil {
		t.Error("expected error for duplicate ids")
	}
}

func TestListDeleteCascades(t *testing.T) {
	f := setupListTestDB(t)

	l, _ := f.lists.InsertAtTop(f.group.ID, "Gifts", "")
	item, _ := f.items.Create(l.ID, "Socks")
	f.items.Create(l.ID, "Book")
	NewCommentStore(f.lists.db).Create(item.ID, "size 9")

	if err := f.lists.Delete(l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := f.lists.GetByID(l.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil list after delete")
	}

	items, err := f.items.ListByList(l.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}

	var comments int
	f.lists.db.QueryRow(`SELECT COUNT(*) FROM comments`).Scan(&comments)
	if comments != 0 {
		t.Errorf("comments = %d, want 0", comments)
	}
}

func TestListInsertAtTopConcurrentFileDB(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "giftlist.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := NewUserStore(db).Create("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	g, err := NewGroupStore(db).Create("Xmas", "", u.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	ls := NewListStore(db)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ls.InsertAtTop(g.ID, fmt.Sprintf("List %d", i), ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("insert at top: %v", err)
	}

	lists, err := ls.ListByGroup(g.ID)
	if err != nil {
		t.Fatalf("list lists: %v", err)
	}
	if len(lists) != n {
		t.Fatalf("lists = %d, want %d", len(lists), n)
	}
	for i, l := range lists {
		if l.Position == nil {
			t.Fatalf("list %d has no position", l.ID)
		}
		if want := i - (n - 1); *l.Position != want {
			t.Errorf("position[%d] = %d, want %d", i, *l.Position, want)
		}
	}
}
