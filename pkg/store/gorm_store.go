package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"driftchat/internal/util"
	"driftchat/pkg/auth"
	"driftchat/pkg/domain"
)

const migrateLockID int64 = 52865286

// GormStore implements Store using GORM + Postgres. Transient failures on
// repeat-safe operations are absorbed by the retryer; inserts that lack a
// caller-supplied key run exactly once.
type GormStore struct {
	db    *gorm.DB
	retry Retryer
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ChatModel{},
			&MessageModel{},
			&VoteModel{},
			&DocumentModel{},
			&SuggestionModel{},
			&PasswordResetTokenModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, retry: NewRetryer()}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// run executes one repository operation, retrying it when repeatSafe is set,
// and logs the failure before handing the error back to the caller.
func (s *GormStore) run(op string, repeatSafe bool, fn func() error) error {
	var err error
	if repeatSafe {
		err = s.retry.Do(fn)
	} else {
		err = fn()
	}
	if err != nil {
		slog.Error("store operation failed", "op", op, "err", err)
	}
	return err
}

// CreateUser hashes the password and inserts the user. Not retried: the row
// has no caller-supplied key and the unique email constraint must surface
// unmodified.
func (s *GormStore) CreateUser(email, password string) (domain.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	model := UserModel{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.run("create_user", false, func() error {
		return s.db.Create(&model).Error
	}); err != nil {
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	found := false
	err := s.run("get_user_by_email", true, func() error {
		model = UserModel{}
		found = false
		if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	found := false
	err := s.run("get_user_by_id", true, func() error {
		model = UserModel{}
		found = false
		if err := s.db.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUserPassword re-hashes and stores a new password for the user.
func (s *GormStore) UpdateUserPassword(id, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.run("update_user_password", true, func() error {
		return s.db.Model(&UserModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"password_hash": hash,
				"updated_at":    time.Now().UTC(),
			}).Error
	})
}

// SaveChat stores or updates a chat. The caller-supplied ID doubles as the
// idempotency key, so the upsert is safe to retry.
func (s *GormStore) SaveChat(chat domain.Chat) error {
	if chat.Visibility == "" {
		chat.Visibility = domain.VisibilityPrivate
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	chat.UpdatedAt = time.Now().UTC()
	model := chatToModel(chat)
	return s.run("save_chat", true, func() error {
		return s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "visibility", "updated_at"}),
		}).Create(&model).Error
	})
}

// GetChat retrieves a chat.
func (s *GormStore) GetChat(id string) (domain.Chat, bool, error) {
	var model ChatModel
	found := false
	err := s.run("get_chat", true, func() error {
		model = ChatModel{}
		found = false
		if err := s.db.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return domain.Chat{}, false, err
	}
	return chatFromModel(model), true, nil
}

// ListChatsByUser returns the user's chats, newest first.
func (s *GormStore) ListChatsByUser(userID string) ([]domain.Chat, error) {
	var models []ChatModel
	err := s.run("list_chats_by_user", true, func() error {
		models = nil
		return s.db.Where("user_id = ?", userID).
			Order("created_at DESC").
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	chats := make([]domain.Chat, 0, len(models))
	for _, m := range models {
		chats = append(chats, chatFromModel(m))
	}
	return chats, nil
}

// UpdateChatVisibility sets the visibility of a chat.
func (s *GormStore) UpdateChatVisibility(chatID string, visibility domain.Visibility) error {
	return s.run("update_chat_visibility", true, func() error {
		return s.db.Model(&ChatModel{}).
			Where("id = ?", chatID).
			Updates(map[string]any{
				"visibility": string(visibility),
				"updated_at": time.Now().UTC(),
			}).Error
	})
}

// DeleteChat removes a chat with its votes and messages in one transaction.
// A missing chat returns ErrChatNotFound with the store untouched; any
// failure mid-sequence rolls the whole transaction back. Not retried: a
// second attempt after a commit would misreport the chat as missing.
func (s *GormStore) DeleteChat(id string) error {
	return s.run("delete_chat", false, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&ChatModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrChatNotFound
			}
			// FK dependency order: votes, then messages, then the chat row.
			if err := tx.Delete(&VoteModel{}, "chat_id = ?", id).Error; err != nil {
				return err
			}
			if err := tx.Delete(&MessageModel{}, "chat_id = ?", id).Error; err != nil {
				return err
			}
			return tx.Delete(&ChatModel{}, "id = ?", id).Error
		})
	})
}

// SaveMessages normalizes and stores a batch of messages. System-role
// messages are dropped. Caller-supplied IDs make re-runs conflict instead of
// duplicating rows, so the batch is safe to retry.
func (s *GormStore) SaveMessages(messages []domain.Message) error {
	models := make([]MessageModel, 0, len(messages))
	for _, msg := range messages {
		raw, keep, err := encodeContent(msg.Role, msg.Content)
		if err != nil {
			return err
		}
		if !keep {
			continue
		}
		if msg.ID == "" {
			msg.ID = util.NewID()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		models = append(models, MessageModel{
			ID:        msg.ID,
			ChatID:    msg.ChatID,
			Role:      string(msg.Role),
			Content:   raw,
			CreatedAt: msg.CreatedAt,
		})
	}
	if len(models) == 0 {
		return nil
	}
	return s.run("save_messages", true, func() error {
		return s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&models).Error
	})
}

// GetMessage returns one message with its content parsed.
func (s *GormStore) GetMessage(id string) (domain.Message, bool, error) {
	var model MessageModel
	found := false
	err := s.run("get_message", true, func() error {
		model = MessageModel{}
		found = false
		if err := s.db.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return domain.Message{}, false, err
	}
	msg, err := messageFromModel(model)
	if err != nil {
		return domain.Message{}, false, err
	}
	return msg, true, nil
}

// ListMessagesByChat returns a chat's messages in chronological order with
// content parsed from the canonical stored JSON.
func (s *GormStore) ListMessagesByChat(chatID string) ([]domain.Message, error) {
	var models []MessageModel
	err := s.run("list_messages_by_chat", true, func() error {
		models = nil
		return s.db.Where("chat_id = ?", chatID).
			Order("created_at ASC").
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, m := range models {
		msg, err := messageFromModel(m)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// DeleteMessagesAfter removes the chat's messages created strictly after the
// cutoff, used to roll a conversation back to a known point.
func (s *GormStore) DeleteMessagesAfter(chatID string, cutoff time.Time) error {
	return s.run("delete_messages_after", true, func() error {
		return s.db.Delete(&MessageModel{}, "chat_id = ? AND created_at > ?", chatID, cutoff).Error
	})
}

// VoteMessage upserts the vote for a (chat, message) pair. The conflict
// clause makes re-votes overwrite rather than accumulate, and the operation
// safe to retry.
func (s *GormStore) VoteMessage(chatID, messageID string, upvoted bool) (domain.Vote, error) {
	model := VoteModel{ChatID: chatID, MessageID: messageID, IsUpvoted: upvoted}
	err := s.run("vote_message", true, func() error {
		return s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_upvoted"}),
		}).Create(&model).Error
	})
	if err != nil {
		return domain.Vote{}, err
	}
	return voteFromModel(model), nil
}

// ListVotesByChat returns all votes recorded for a chat.
func (s *GormStore) ListVotesByChat(chatID string) ([]domain.Vote, error) {
	var models []VoteModel
	err := s.run("list_votes_by_chat", true, func() error {
		models = nil
		return s.db.Where("chat_id = ?", chatID).Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	votes := make([]domain.Vote, 0, len(models))
	for _, m := range models {
		votes = append(votes, voteFromModel(m))
	}
	return votes, nil
}

// SaveDocument inserts a new document when no ID is supplied; otherwise it
// updates the versions matching both ID and owner. The boolean is false when
// the scoped update matched nothing, ownership mismatches included.
func (s *GormStore) SaveDocument(doc domain.Document) (domain.Document, bool, error) {
	if doc.Kind == "" {
		doc.Kind = domain.KindText
	}
	if doc.ID == "" {
		doc.ID = util.NewID()
		doc.CreatedAt = time.Now().UTC()
		model := documentToModel(doc)
		if err := s.run("save_document", false, func() error {
			return s.db.Create(&model).Error
		}); err != nil {
			return domain.Document{}, false, err
		}
		return documentFromModel(model), true, nil
	}
	var updated DocumentModel
	found := false
	err := s.run("save_document", true, func() error {
		found = false
		res := s.db.Model(&DocumentModel{}).
			Where("id = ? AND user_id = ?", doc.ID, doc.UserID).
			Updates(map[string]any{
				"title":   doc.Title,
				"content": doc.Content,
				"kind":    string(doc.Kind),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := s.db.Where("id = ? AND user_id = ?", doc.ID, doc.UserID).
			Order("created_at DESC").
			First(&updated).Error; err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return domain.Document{}, false, err
	}
	return documentFromModel(updated), true, nil
}

// ListDocumentVersions returns every stored version of a document, oldest
// first.
func (s *GormStore) ListDocumentVersions(id string) ([]domain.Document, error) {
	var models []DocumentModel
	err := s.run("list_document_versions", true, func() error {
		models = nil
		return s.db.Where("id = ?", id).
			Order("created_at ASC").
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(models))
	for _, m := range models {
		docs = append(docs, documentFromModel(m))
	}
	return docs, nil
}

// DeleteDocumentsAfter removes document versions created strictly after the
// cutoff.
func (s *GormStore) DeleteDocumentsAfter(id string, cutoff time.Time) error {
	return s.run("delete_documents_after", true, func() error {
		return s.db.Delete(&DocumentModel{}, "id = ? AND created_at > ?", id, cutoff).Error
	})
}

// ListSuggestionsByDocument returns a document's suggestions, newest first.
// Suggestions are read-only in this layer.
func (s *GormStore) ListSuggestionsByDocument(documentID string) ([]domain.Suggestion, error) {
	var models []SuggestionModel
	err := s.run("list_suggestions_by_document", true, func() error {
		models = nil
		return s.db.Where("document_id = ?", documentID).
			Order("created_at DESC").
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	suggestions := make([]domain.Suggestion, 0, len(models))
	for _, m := range models {
		suggestions = append(suggestions, suggestionFromModel(m))
	}
	return suggestions, nil
}

// CreatePasswordResetToken stores a fresh reset token for the user. Not
// retried: the row has no caller-supplied key.
func (s *GormStore) CreatePasswordResetToken(userID, token string, expiresAt time.Time) (domain.PasswordResetToken, error) {
	model := PasswordResetTokenModel{
		ID:        util.NewID(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.run("create_password_reset_token", false, func() error {
		return s.db.Create(&model).Error
	}); err != nil {
		return domain.PasswordResetToken{}, err
	}
	return resetTokenFromModel(model), nil
}

// GetPasswordResetToken looks up a reset token by its opaque value.
func (s *GormStore) GetPasswordResetToken(token string) (domain.PasswordResetToken, bool, error) {
	var model PasswordResetTokenModel
	found := false
	err := s.run("get_password_reset_token", true, func() error {
		model = PasswordResetTokenModel{}
		found = false
		if err := s.db.Where("token = ?", token).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return domain.PasswordResetToken{}, false, err
	}
	return resetTokenFromModel(model), true, nil
}

// DeletePasswordResetToken removes a reset token after consumption.
func (s *GormStore) DeletePasswordResetToken(token string) error {
	return s.run("delete_password_reset_token", true, func() error {
		return s.db.Delete(&PasswordResetTokenModel{}, "token = ?", token).Error
	})
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func chatToModel(c domain.Chat) ChatModel {
	return ChatModel{
		ID:         c.ID,
		UserID:     c.UserID,
		Title:      c.Title,
		Visibility: string(c.Visibility),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func chatFromModel(m ChatModel) domain.Chat {
	visibility := domain.Visibility(m.Visibility)
	if visibility == "" {
		visibility = domain.VisibilityPrivate
	}
	return domain.Chat{
		ID:         m.ID,
		UserID:     m.UserID,
		Title:      m.Title,
		Visibility: visibility,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func messageFromModel(m MessageModel) (domain.Message, error) {
	content, err := decodeContent(m.Content)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Role:      domain.Role(m.Role),
		Content:   content,
		CreatedAt: m.CreatedAt,
	}, nil
}

func voteFromModel(m VoteModel) domain.Vote {
	return domain.Vote{
		ChatID:    m.ChatID,
		MessageID: m.MessageID,
		IsUpvoted: m.IsUpvoted,
	}
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		UserID:    d.UserID,
		Title:     d.Title,
		Content:   d.Content,
		Kind:      string(d.Kind),
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	kind := domain.DocumentKind(m.Kind)
	if kind == "" {
		kind = domain.KindText
	}
	return domain.Document{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Content:   m.Content,
		Kind:      kind,
		CreatedAt: m.CreatedAt,
	}
}

func suggestionFromModel(m SuggestionModel) domain.Suggestion {
	return domain.Suggestion{
		ID:            m.ID,
		DocumentID:    m.DocumentID,
		OriginalText:  m.OriginalText,
		SuggestedText: m.SuggestedText,
		Description:   m.Description,
		CreatedAt:     m.CreatedAt,
	}
}

func resetTokenFromModel(m PasswordResetTokenModel) domain.PasswordResetToken {
	return domain.PasswordResetToken{
		ID:        m.ID,
		UserID:    m.UserID,
		Token:     m.Token,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}
}
