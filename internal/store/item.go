package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/giftlist/internal/model"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var bought int
	err := scanner.Scan(&item.ID, &item.ListID, &item.Content, &bought, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.Bought = bought != 0
	return &item, nil
}

const itemCols = `id, list_id, content, bought, created_at`

func (s *ItemStore) Create(listID int64, content string) (*model.Item, error) {
	result, err := s.db.Exec(`INSERT INTO items (list_id, content) VALUES (?, ?)`, listID, content)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ItemStore) GetByID(id int64) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetInList returns the item only if it belongs to listID.
func (s *ItemStore) GetInList(listID, itemID int64) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ? AND list_id = ?`, itemID, listID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item in list: %w", err)
	}
	return item, nil
}

func (s *ItemStore) ListByList(listID int64) ([]model.Item, error) {
	rows, err := s.db.Query(
		`SELECT `+itemCols+` FROM items WHERE list_id = ? ORDER BY bought ASC, created_at ASC, id ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ItemStore) Update(id int64, content string, bought bool) (*model.Item, error) {
	_, err := s.db.Exec(`UPDATE items SET content = ?, bought = ? WHERE id = ?`, content, bought, id)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.GetByID(id)
}

// SetBought overwrites the bought flag. Concurrent writers race; the last one wins.
func (s *ItemStore) SetBought(id int64, bought bool) (*model.Item, error) {
	_, err := s.db.Exec(`UPDATE items SET bought = ? WHERE id = ?`, bought, id)
	if err != nil {
		return nil, fmt.Errorf("set bought: %w", err)
	}
	return s.GetByID(id)
}

// ToggleBought flips the bought flag and returns the updated item, or nil if
// the item does not exist.
func (s *ItemStore) ToggleBought(id int64) (*model.Item, error) {
	result, err := s.db.Exec(`UPDATE items SET bought = 1 - bought WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle bought: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

// Delete removes an item and its comments.
func (s *ItemStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM comments WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return tx.Commit()
}

// Counts returns the number of items in a list and how many are bought.
func (s *ItemStore) Counts(listID int64) (total, bought int, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(bought), 0) FROM items WHERE list_id = ?`,
		listID,
	).Scan(&total, &bought)
	if err != nil {
		return 0, 0, fmt.Errorf("count items: %w", err)
	}
	return total, bought, nil
}
