package model

import "time"

// Task records one completed chore. Tasks are never modified after append.
type Task struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	CategoryID int64     `json:"category_id"`
	Timestamp  time.Time `json:"timestamp"`
}
