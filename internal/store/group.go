package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/giftlist/internal/model"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

func scanGroup(scanner interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	var hash sql.NullString
	err := scanner.Scan(&g.ID, &g.Name, &hash, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.PasswordHash = hash.String
	g.HasPassword = hash.Valid && hash.String != ""
	return &g, nil
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	err := scanner.Scan(&m.UserID, &m.GroupID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const groupCols = `id, name, password_hash, created_at`
const membershipCols = `user_id, group_id, role, created_at`

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a group and makes ownerID its owner in one transaction.
func (s *GroupStore) Create(name, passwordHash string, ownerID int64) (*model.Group, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO gift_groups (name, password_hash) VALUES (?, ?)`,
		name, nullIfEmpty(passwordHash),
	)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO user_groups (user_id, group_id, role) VALUES (?, ?, ?)`,
		ownerID, id, model.RoleOwner,
	); err != nil {
		return nil, fmt.Errorf("insert owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *GroupStore) GetByID(id int64) (*model.Group, error) {
	row := s.db.QueryRow(`SELECT `+groupCols+` FROM gift_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) ListForUser(userID int64) ([]model.Group, error) {
	rows, err := s.db.Query(
		`SELECT g.id, g.name, g.password_hash, g.created_at
		 FROM gift_groups g
		 JOIN user_groups ug ON g.id = ug.group_id
		 WHERE ug.user_id = ?
		 ORDER BY g.name ASC, g.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// SetPasswordHash replaces the group's shared password. An empty hash clears it.
func (s *GroupStore) SetPasswordHash(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE gift_groups SET password_hash = ? WHERE id = ?`, nullIfEmpty(hash), id)
	if err != nil {
		return fmt.Errorf("set group password: %w", err)
	}
	return nil
}

// PasswordHash returns the group's password hash, or "" when the group has
// no password or does not exist.
func (s *GroupStore) PasswordHash(id int64) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT password_hash FROM gift_groups WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get group password: %w", err)
	}
	return hash.String, nil
}

// Delete removes a group together with its lists, items, comments, invites
// and memberships.
func (s *GroupStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		what  string
		query string
	}{
		{"comments", `DELETE FROM comments WHERE item_id IN (
			SELECT i.id FROM items i JOIN lists l ON i.list_id = l.id WHERE l.group_id = ?)`},
		{"items", `DELETE FROM items WHERE list_id IN (SELECT id FROM lists WHERE group_id = ?)`},
		{"lists", `DELETE FROM lists WHERE group_id = ?`},
		{"invites", `DELETE FROM group_invites WHERE group_id = ?`},
		{"memberships", `DELETE FROM user_groups WHERE group_id = ?`},
		{"group", `DELETE FROM gift_groups WHERE id = ?`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(step.query, id); err != nil {
			return fmt.Errorf("delete %s: %w", step.what, err)
		}
	}

	return tx.Commit()
}

// GetMember returns the membership of userID in groupID, or nil if there is none.
func (s *GroupStore) GetMember(groupID, userID int64) (*model.Membership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM user_groups WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *GroupStore) ListMembers(groupID int64) ([]model.Membership, error) {
	rows, err := s.db.Query(
		`SELECT ug.user_id, ug.group_id, ug.role, ug.created_at, u.email
		 FROM user_groups ug
		 JOIN users u ON u.id = ug.user_id
		 WHERE ug.group_id = ?
		 ORDER BY ug.created_at ASC, ug.user_id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Membership
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.UserID, &m.GroupID, &m.Role, &m.CreatedAt, &m.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
