package store

import (
	"errors"
	"time"

	"driftchat/pkg/domain"
)

// ErrChatNotFound reports a DeleteChat call for a chat that does not exist.
// The store is left untouched when it is returned.
var ErrChatNotFound = errors.New("chat not found")

// Store defines persistence operations for the chat application's entities.
// Lookups report absence with a false boolean instead of an error; constraint
// violations surface the underlying store error unmodified.
type Store interface {
	// users
	CreateUser(email, password string) (domain.User, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UpdateUserPassword(id, password string) error

	// chats
	SaveChat(chat domain.Chat) error
	GetChat(id string) (domain.Chat, bool, error)
	ListChatsByUser(userID string) ([]domain.Chat, error)
	UpdateChatVisibility(chatID string, visibility domain.Visibility) error
	DeleteChat(id string) error

	// messages
	SaveMessages(messages []domain.Message) error
	GetMessage(id string) (domain.Message, bool, error)
	ListMessagesByChat(chatID string) ([]domain.Message, error)
	DeleteMessagesAfter(chatID string, cutoff time.Time) error

	// votes
	VoteMessage(chatID, messageID string, upvoted bool) (domain.Vote, error)
	ListVotesByChat(chatID string) ([]domain.Vote, error)

	// documents
	SaveDocument(doc domain.Document) (domain.Document, bool, error)
	ListDocumentVersions(id string) ([]domain.Document, error)
	DeleteDocumentsAfter(id string, cutoff time.Time) error

	// suggestions
	ListSuggestionsByDocument(documentID string) ([]domain.Suggestion, error)

	// password reset tokens
	CreatePasswordResetToken(userID, token string, expiresAt time.Time) (domain.PasswordResetToken, error)
	GetPasswordResetToken(token string) (domain.PasswordResetToken, bool, error)
	DeletePasswordResetToken(token string) error
}
