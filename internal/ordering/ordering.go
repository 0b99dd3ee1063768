// Package ordering maintains the display order of a group's lists.
//
// Lists carry an integer position; lower positions sort first. Lists created
// before positions existed have none and sort after every positioned list,
// newest first. New lists are placed above the current minimum so existing
// rows never need renumbering.
package ordering

import (
	"fmt"
	"sort"

	"github.com/dukerupert/giftlist/internal/model"
)

// Move assigns a new position to one list.
type Move struct {
	ID       int64 `json:"id"`
	Position int   `json:"position"`
}

// TopPosition returns the position for a list inserted ahead of all others,
// given the smallest position currently in use (nil if no list has one).
func TopPosition(min *int) int {
	if min == nil {
		return 0
	}
	return *min - 1
}

// Less reports whether a sorts before b.
func Less(a, b model.List) bool {
	switch {
	case a.Position != nil && b.Position != nil:
		if *a.Position != *b.Position {
			return *a.Position < *b.Position
		}
		return a.ID < b.ID
	case a.Position != nil:
		return true
	case b.Position != nil:
		return false
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Sort orders lists in place for display.
func Sort(lists []model.List) {
	sort.SliceStable(lists, func(i, j int) bool {
		return Less(lists[i], lists[j])
	})
}

// ValidateMoves checks a reorder batch and returns its list ids in request order.
func ValidateMoves(moves []Move) ([]int64, error) {
	if len(moves) == 0 {
		return nil, fmt.Errorf("lists are required")
	}
	seen := make(map[int64]struct{}, len(moves))
	ids := make([]int64, 0, len(moves))
	for _, m := range moves {
		if m.ID <= 0 {
			return nil, fmt.Errorf("invalid list id %d", m.ID)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("list %d appears more than once", m.ID)
		}
		seen[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	return ids, nil
}
