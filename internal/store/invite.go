package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/giftlist/internal/model"
	"github.com/google/uuid"
)

// ErrInviteAccepted is returned when accepting an invite that was already used.
var ErrInviteAccepted = errors.New("invite already accepted")

type InviteStore struct {
	db *sql.DB
}

func NewInviteStore(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.Invite, error) {
	var inv model.Invite
	var accepted int
	err := scanner.Scan(&inv.ID, &inv.GroupID, &inv.Email, &inv.Token, &accepted, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.Accepted = accepted != 0
	return &inv, nil
}

const inviteCols = `id, group_id, email, token, accepted, created_at`

// Create records a pending invite for email with a fresh random token.
func (s *InviteStore) Create(groupID int64, email string) (*model.Invite, error) {
	result, err := s.db.Exec(
		`INSERT INTO group_invites (group_id, email, token) VALUES (?, ?, ?)`,
		groupID, NormalizeEmail(email), uuid.NewString(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InviteStore) GetByID(id int64) (*model.Invite, error) {
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM group_invites WHERE id = ?`, id)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) GetByToken(token string) (*model.Invite, error) {
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM group_invites WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) ListByGroup(groupID int64) ([]model.Invite, error) {
	rows, err := s.db.Query(
		`SELECT `+inviteCols+` FROM group_invites WHERE group_id = ? ORDER BY created_at DESC, id DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var invites []model.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// Accept marks the invite accepted and adds userID to its group as a member,
// both in one transaction. Only the first call for an invite succeeds; later
// calls return ErrInviteAccepted. A user who already belongs to the group
// keeps their existing role.
func (s *InviteStore) Accept(inviteID, userID int64) (*model.Membership, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var groupID int64
	err = tx.QueryRow(
		`UPDATE group_invites SET accepted = 1 WHERE id = ? AND accepted = 0 RETURNING group_id`,
		inviteID,
	).Scan(&groupID)
	if err == sql.ErrNoRows {
		return nil, ErrInviteAccepted
	}
	if err != nil {
		return nil, fmt.Errorf("mark invite accepted: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO user_groups (user_id, group_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, group_id) DO NOTHING`,
		userID, groupID, model.RoleMember,
	); err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}

	m, err := scanMembership(tx.QueryRow(
		`SELECT `+membershipCols+` FROM user_groups WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	))
	if err != nil {
		return nil, fmt.Errorf("read membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}
