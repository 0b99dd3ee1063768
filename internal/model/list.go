package model

import "time"

// List belongs to a group. A nil Position marks a legacy, unordered list.
type List struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	Title       string    `json:"title"`
	Position    *int      `json:"position"`
	Theme       string    `json:"theme"`
	CreatedAt   time.Time `json:"created_at"`
	TotalItems  int       `json:"total_items"`
	BoughtItems int       `json:"bought_items"`
}

type Item struct {
	ID        int64     `json:"id"`
	ListID    int64     `json:"list_id"`
	Content   string    `json:"content"`
	Bought    bool      `json:"bought"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
