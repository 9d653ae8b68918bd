package models

import (
	"time"
)

// Member represents a community member and their point balance
type Member struct {
	UserID    string    `json:"user_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}
