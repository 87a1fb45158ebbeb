package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ChatModel struct {
	ID         string    `gorm:"primaryKey"`
	UserID     string    `gorm:"not null;index"`
	Title      string    `gorm:"not null"`
	Visibility string    `gorm:"not null;default:private"`
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time
}

type MessageModel struct {
	ID        string         `gorm:"primaryKey"`
	ChatID    string         `gorm:"not null;index"`
	Role      string         `gorm:"not null"`
	Content   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null;index"`
}

// VoteModel keeps one row per (chat, message) pair; re-votes overwrite it.
type VoteModel struct {
	ChatID    string `gorm:"primaryKey"`
	MessageID string `gorm:"primaryKey"`
	IsUpvoted bool   `gorm:"not null"`
}

// DocumentModel rows form a version history: versions share ID and differ in
// CreatedAt.
type DocumentModel struct {
	ID        string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Title     string    `gorm:"not null"`
	Content   string    `gorm:"type:text"`
	Kind      string    `gorm:"not null;default:text"`
}

type SuggestionModel struct {
	ID            string `gorm:"primaryKey"`
	DocumentID    string `gorm:"not null;index"`
	OriginalText  string `gorm:"type:text;not null"`
	SuggestedText string `gorm:"type:text;not null"`
	Description   string
	CreatedAt     time.Time `gorm:"not null;index"`
}

type PasswordResetTokenModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Token     string    `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
