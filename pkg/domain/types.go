package domain

import "time"

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type DocumentKind string

const (
	KindText DocumentKind = "text"
	KindCode DocumentKind = "code"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Chat struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Title      string     `json:"title"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Message carries chat content. Content is heterogeneous on write (string,
// object, or sequence of parts) and holds the parsed canonical JSON value
// after a read.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      Role      `json:"role"`
	Content   any       `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Vote records the latest up/down vote for a message. The (ChatID, MessageID)
// pair is unique; re-voting overwrites the previous value.
type Vote struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	IsUpvoted bool   `json:"isUpvoted"`
}

// Document is one version of a user-owned document. Versions share an ID and
// are distinguished by CreatedAt.
type Document struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Kind      DocumentKind `json:"kind"`
	CreatedAt time.Time    `json:"createdAt"`
}

type Suggestion struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"documentId"`
	OriginalText  string    `json:"originalText"`
	SuggestedText string    `json:"suggestedText"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PasswordResetToken is single-use: it is deleted when consumed or found
// expired.
type PasswordResetToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
