package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/ordering"
)

// ErrListNotInGroup is returned when a reorder batch names a list that does
// not belong to the target group.
var ErrListNotInGroup = errors.New("list does not belong to group")

// BatchError reports the list whose update aborted a reorder batch. The
// batch is rolled back, so no position from it was saved.
type BatchError struct {
	ListID int64
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("update position for list %d: %v", e.ListID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type ListStore struct {
	db *sql.DB
}

func NewListStore(db *sql.DB) *ListStore {
	return &ListStore{db: db}
}

func scanList(scanner interface{ Scan(...any) error }) (*model.List, error) {
	var l model.List
	var pos sql.NullInt64
	err := scanner.Scan(&l.ID, &l.GroupID, &l.Title, &pos, &l.Theme, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if pos.Valid {
		p := int(pos.Int64)
		l.Position = &p
	}
	return &l, nil
}

const listCols = `id, group_id, title, position, theme, created_at`

// InsertAtTop creates a list positioned ahead of every other list in the group.
func (s *ListStore) InsertAtTop(groupID int64, title, theme string) (*model.List, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var min sql.NullInt64
	if err := tx.QueryRow(
		`SELECT MIN(position) FROM lists WHERE group_id = ?`, groupID,
	).Scan(&min); err != nil {
		return nil, fmt.Errorf("read min position: %w", err)
	}

	var current *int
	if min.Valid {
		m := int(min.Int64)
		current = &m
	}
	pos := ordering.TopPosition(current)

	result, err := tx.Exec(
		`INSERT INTO lists (group_id, title, position, theme) VALUES (?, ?, ?, ?)`,
		groupID, title, pos, theme,
	)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *ListStore) GetByID(id int64) (*model.List, error) {
	row := s.db.QueryRow(`SELECT `+listCols+` FROM lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

// GetInGroup returns the list only if it belongs to groupID.
func (s *ListStore) GetInGroup(groupID, listID int64) (*model.List, error) {
	row := s.db.QueryRow(`SELECT `+listCols+` FROM lists WHERE id = ? AND group_id = ?`, listID, groupID)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list in group: %w", err)
	}
	return l, nil
}

// ListByGroup returns the group's lists in display order.
func (s *ListStore) ListByGroup(groupID int64) ([]model.List, error) {
	rows, err := s.db.Query(`SELECT `+listCols+` FROM lists WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordering.Sort(lists)
	return lists, nil
}

func (s *ListStore) Update(id int64, title, theme string) (*model.List, error) {
	_, err := s.db.Exec(`UPDATE lists SET title = ?, theme = ? WHERE id = ?`, title, theme, id)
	if err != nil {
		return nil, fmt.Errorf("update list: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a list along with its items and their comments.
func (s *ListStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM comments WHERE item_id IN (SELECT id FROM items WHERE list_id = ?)`, id,
	); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM items WHERE list_id = ?`, id); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM lists WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}

	return tx.Commit()
}

// Reorder applies a batch of position changes to lists of one group. Every
// list must belong to groupID or nothing is written (ErrListNotInGroup).
// The batch is atomic: on a failed update it is rolled back and a
// *BatchError is returned.
func (s *ListStore) Reorder(groupID int64, moves []ordering.Move) error {
	ids, err := ordering.ValidateMoves(moves)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	args := make([]any, 0, len(ids)+1)
	args = append(args, groupID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	var matched int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM lists WHERE group_id = ? AND id IN (`+placeholders+`)`,
		args...,
	).Scan(&matched); err != nil {
		return fmt.Errorf("verify lists: %w", err)
	}
	if matched != len(ids) {
		return ErrListNotInGroup
	}

	stmt, err := tx.Prepare(`UPDATE lists SET position = ? WHERE id = ? AND group_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, m := range moves {
		if _, err := stmt.Exec(m.Position, m.ID, groupID); err != nil {
			return &BatchError{ListID: m.ID, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}
