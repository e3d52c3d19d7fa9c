package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/sunyadvisor/internal/database"
	"github.com/BaSui01/sunyadvisor/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMessageStore keeps conversation history in the relational database.
type GormMessageStore struct {
	db *gorm.DB
}

// NewGormMessageStore wraps db. Tables are created by migrations.
func NewGormMessageStore(db *gorm.DB) *GormMessageStore {
	return &GormMessageStore{db: db}
}

// Close is a no-op; the pool owns the connection.
func (s *GormMessageStore) Close() error { return nil }

// Ping checks the database connection.
func (s *GormMessageStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Append inserts msgs in one transaction so auto-increment ids follow
// append order.
func (s *GormMessageStore) Append(ctx context.Context, msgs ...types.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := validateMessages(msgs); err != nil {
		return err
	}
	recs := make([]ConversationRecord, len(msgs))
	for i, m := range msgs {
		rec, err := RecordFromMessage(m)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		recs[i] = rec
	}
	return database.Transact(ctx, s.db, database.DefaultTxAttempts, func(tx *gorm.DB) error {
		for i := range recs {
			if err := tx.Create(&recs[i]).Error; err != nil {
				return fmt.Errorf("insert conversation_history: %w", err)
			}
		}
		return nil
	})
}

// History returns one chat ordered by timestamp then id.
func (s *GormMessageStore) History(ctx context.Context, sessionID string, chatID int64) ([]types.Message, error) {
	var recs []ConversationRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND chat_id = ?", sessionID, chatID).
		Order("timestamp ASC").Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query conversation_history: %w", err)
	}
	out := make([]types.Message, 0, len(recs))
	for _, r := range recs {
		m, err := r.ToMessage()
		if err != nil {
			return nil, fmt.Errorf("decode message %d: %w", r.ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Chats lists distinct chat ids of a session.
func (s *GormMessageStore) Chats(ctx context.Context, sessionID string) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&ConversationRecord{}).
		Where("session_id = ?", sessionID).
		Distinct("chat_id").Order("chat_id ASC").
		Pluck("chat_id", &ids).Error
	return ids, err
}

// SaveSummary upserts the chat_summary row.
func (s *GormMessageStore) SaveSummary(ctx context.Context, sessionID string, chatID int64, summary string) error {
	row := ChatSummary{SessionID: sessionID, ChatID: chatID, Summary: summary}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "updated_at"}),
	}).Create(&row).Error
}

// Summary returns the stored summary.
func (s *GormMessageStore) Summary(ctx context.Context, sessionID string, chatID int64) (string, error) {
	var row ChatSummary
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND chat_id = ?", sessionID, chatID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return row.Summary, nil
}
