package model

import "time"

// ChatLink binds a Telegram account to the chore user it acts as.
type ChatLink struct {
	ID          uint  `gorm:"primaryKey"`
	TelegramID  int64 `gorm:"uniqueIndex"`
	ChatID      int64
	UserID      int64 `gorm:"index"`
	HouseholdID int64 `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snapshot is the sqlite row holding the encrypted document envelope.
type Snapshot struct {
	ID        uint   `gorm:"primaryKey"`
	Envelope  string `gorm:"type:text"`
	UpdatedAt time.Time
}
