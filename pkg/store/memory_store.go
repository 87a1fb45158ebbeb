package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"driftchat/internal/util"
	"driftchat/pkg/auth"
	"driftchat/pkg/domain"
)

// MemoryStore keeps everything in-process. It mirrors the database-backed
// store's contracts, uniqueness checks included, and backs tests and local
// development.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User // key: user ID
	email     map[string]string      // email -> user ID
	chats     map[string]domain.Chat
	messages  map[string][]domain.Message // key: chat ID
	votes     map[string]map[string]domain.Vote
	documents map[string][]domain.Document // key: document ID, versions in insert order
	suggest   map[string][]domain.Suggestion
	tokens    map[string]domain.PasswordResetToken // key: token value
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		chats:     make(map[string]domain.Chat),
		messages:  make(map[string][]domain.Message),
		votes:     make(map[string]map[string]domain.Vote),
		documents: make(map[string][]domain.Document),
		suggest:   make(map[string][]domain.Suggestion),
		tokens:    make(map[string]domain.PasswordResetToken),
	}
}

var _ Store = (*MemoryStore)(nil)

// CreateUser hashes the password and registers the user.
func (m *MemoryStore) CreateUser(email, password string) (domain.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.email[email]; exists {
		return domain.User{}, fmt.Errorf("duplicate key value violates unique constraint on email %q", email)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	m.email[email] = user.ID
	return user, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	user, ok := m.users[id]
	return user, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	return user, ok, nil
}

// UpdateUserPassword re-hashes and stores a new password.
func (m *MemoryStore) UpdateUserPassword(id, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	m.users[id] = user
	return nil
}

// SaveChat stores or replaces a chat.
func (m *MemoryStore) SaveChat(chat domain.Chat) error {
	if chat.Visibility == "" {
		chat.Visibility = domain.VisibilityPrivate
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	chat.UpdatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.chats[chat.ID]; ok {
		chat.CreatedAt = existing.CreatedAt
	}
	m.chats[chat.ID] = chat
	return nil
}

// GetChat retrieves a chat by ID.
func (m *MemoryStore) GetChat(id string) (domain.Chat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[id]
	return chat, ok, nil
}

// ListChatsByUser returns the user's chats, newest first.
func (m *MemoryStore) ListChatsByUser(userID string) ([]domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chats := make([]domain.Chat, 0)
	for _, chat := range m.chats {
		if chat.UserID == userID {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	return chats, nil
}

// UpdateChatVisibility sets a chat's visibility.
func (m *MemoryStore) UpdateChatVisibility(chatID string, visibility domain.Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return nil
	}
	chat.Visibility = visibility
	chat.UpdatedAt = time.Now().UTC()
	m.chats[chatID] = chat
	return nil
}

// DeleteChat removes the chat with its votes and messages, or leaves
// everything untouched when the chat does not exist.
func (m *MemoryStore) DeleteChat(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; !ok {
		return ErrChatNotFound
	}
	delete(m.votes, id)
	delete(m.messages, id)
	delete(m.chats, id)
	return nil
}

// SaveMessages normalizes and appends a batch of messages, dropping
// system-role ones. Re-saving an already stored ID is a no-op.
func (m *MemoryStore) SaveMessages(messages []domain.Message) error {
	prepared := make([]domain.Message, 0, len(messages))
	for _, msg := range messages {
		raw, keep, err := encodeContent(msg.Role, msg.Content)
		if err != nil {
			return err
		}
		if !keep {
			continue
		}
		// Round-trip through JSON so reads return the same value shapes as
		// the database-backed store.
		content, err := decodeContent(raw)
		if err != nil {
			return err
		}
		if msg.ID == "" {
			msg.ID = util.NewID()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		msg.Content = content
		prepared = append(prepared, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range prepared {
		if m.hasMessageLocked(msg.ChatID, msg.ID) {
			continue
		}
		m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	}
	return nil
}

func (m *MemoryStore) hasMessageLocked(chatID, messageID string) bool {
	for _, msg := range m.messages[chatID] {
		if msg.ID == messageID {
			return true
		}
	}
	return false
}

// GetMessage returns one message by ID.
func (m *MemoryStore) GetMessage(id string) (domain.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.ID == id {
				return msg, true, nil
			}
		}
	}
	return domain.Message{}, false, nil
}

// ListMessagesByChat returns a chat's messages in chronological order.
func (m *MemoryStore) ListMessagesByChat(chatID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := make([]domain.Message, len(m.messages[chatID]))
	copy(msgs, m.messages[chatID])
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// DeleteMessagesAfter removes messages created strictly after the cutoff.
func (m *MemoryStore) DeleteMessagesAfter(chatID string, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[chatID][:0]
	for _, msg := range m.messages[chatID] {
		if !msg.CreatedAt.After(cutoff) {
			kept = append(kept, msg)
		}
	}
	m.messages[chatID] = kept
	return nil
}

// VoteMessage records or overwrites the vote for a (chat, message) pair.
func (m *MemoryStore) VoteMessage(chatID, messageID string, upvoted bool) (domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vote := domain.Vote{ChatID: chatID, MessageID: messageID, IsUpvoted: upvoted}
	if m.votes[chatID] == nil {
		m.votes[chatID] = make(map[string]domain.Vote)
	}
	m.votes[chatID][messageID] = vote
	return vote, nil
}

// ListVotesByChat returns all votes for a chat.
func (m *MemoryStore) ListVotesByChat(chatID string) ([]domain.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	votes := make([]domain.Vote, 0, len(m.votes[chatID]))
	for _, vote := range m.votes[chatID] {
		votes = append(votes, vote)
	}
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].MessageID < votes[j].MessageID
	})
	return votes, nil
}

// SaveDocument inserts a new document or updates the versions matching both
// ID and owner.
func (m *MemoryStore) SaveDocument(doc domain.Document) (domain.Document, bool, error) {
	if doc.Kind == "" {
		doc.Kind = domain.KindText
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = util.NewID()
		doc.CreatedAt = time.Now().UTC()
		m.documents[doc.ID] = append(m.documents[doc.ID], doc)
		return doc, true, nil
	}
	versions := m.documents[doc.ID]
	updated := domain.Document{}
	found := false
	for i, version := range versions {
		if version.UserID != doc.UserID {
			continue
		}
		version.Title = doc.Title
		version.Content = doc.Content
		version.Kind = doc.Kind
		versions[i] = version
		updated = version
		found = true
	}
	if !found {
		return domain.Document{}, false, nil
	}
	return updated, true, nil
}

// ListDocumentVersions returns every version of a document, oldest first.
func (m *MemoryStore) ListDocumentVersions(id string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]domain.Document, len(m.documents[id]))
	copy(docs, m.documents[id])
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocumentsAfter removes versions created strictly after the cutoff.
func (m *MemoryStore) DeleteDocumentsAfter(id string, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.documents[id][:0]
	for _, doc := range m.documents[id] {
		if !doc.CreatedAt.After(cutoff) {
			kept = append(kept, doc)
		}
	}
	m.documents[id] = kept
	return nil
}

// AddSuggestion stores a suggestion for tests; there is no create path in
// the repository contract.
func (m *MemoryStore) AddSuggestion(s domain.Suggestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = util.NewID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.suggest[s.DocumentID] = append(m.suggest[s.DocumentID], s)
}

// ListSuggestionsByDocument returns a document's suggestions, newest first.
func (m *MemoryStore) ListSuggestionsByDocument(documentID string) ([]domain.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	suggestions := make([]domain.Suggestion, len(m.suggest[documentID]))
	copy(suggestions, m.suggest[documentID])
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].CreatedAt.After(suggestions[j].CreatedAt)
	})
	return suggestions, nil
}

// CreatePasswordResetToken stores a reset token.
func (m *MemoryStore) CreatePasswordResetToken(userID, token string, expiresAt time.Time) (domain.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := domain.PasswordResetToken{
		ID:        util.NewID(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	m.tokens[token] = record
	return record, nil
}

// GetPasswordResetToken looks up a reset token by its opaque value.
func (m *MemoryStore) GetPasswordResetToken(token string) (domain.PasswordResetToken, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.tokens[token]
	return record, ok, nil
}

// DeletePasswordResetToken removes a consumed token.
func (m *MemoryStore) DeletePasswordResetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

// Counts reports row counts for chats, messages, and votes; used by tests to
// assert cascade behavior.
func (m *MemoryStore) Counts() (chats, messages, votes int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chats = len(m.chats)
	for _, msgs := range m.messages {
		messages += len(msgs)
	}
	for _, byMessage := range m.votes {
		votes += len(byMessage)
	}
	return chats, messages, votes
}
