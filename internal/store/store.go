package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/code-100-precent/LingRelay/internal/models"
	"github.com/code-100-precent/LingRelay/pkg/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrEmptyContent is returned when a message has no content after trimming.
var ErrEmptyContent = errors.New("store: message content is empty")

// DefaultHistoryLimit caps how many messages Recent returns when no limit is given.
const DefaultHistoryLimit = 100

// ChangePublisher receives a change after every successful write.
type ChangePublisher interface {
	Publish(ctx context.Context, change realtime.Change) error
}

// GormMessageStore persists room messages with gorm and doubles as the history loader.
type GormMessageStore struct {
	db        *gorm.DB
	publisher ChangePublisher
	logger    *zap.Logger
}

func NewGormMessageStore(db *gorm.DB, publisher ChangePublisher, logger *zap.Logger) *GormMessageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormMessageStore{db: db, publisher: publisher, logger: logger}
}

// Insert persists msg and returns the stored row.
func (s *GormMessageStore) Insert(ctx context.Context, msg *models.UserMessage) (*models.UserMessage, error) {
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyContent
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.publish(ctx, realtime.Change{
		Table:      models.UserMessageTable,
		Event:      realtime.EventInsert,
		Record:     messageRecord(msg),
		CommitTime: msg.CreatedAt,
	})
	return msg, nil
}

// Recent returns up to limit of the room's latest messages, oldest first.
func (s *GormMessageStore) Recent(ctx context.Context, room string, limit int) ([]models.UserMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var rows []models.UserMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ?", room).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	slices.Reverse(rows)
	return rows, nil
}

// MarkAdminRead marks the room's unread admin-authored messages as read at the given time
// and returns how many rows changed.
func (s *GormMessageStore) MarkAdminRead(ctx context.Context, room string, at time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.UserMessage{}).
		Where("user_id = ? AND sender_type = ? AND is_read = ?", room, models.SenderAdmin, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	if result.Error != nil {
		return 0, fmt.Errorf("mark read: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.publish(ctx, realtime.Change{
			Table: models.UserMessageTable,
			Event: realtime.EventUpdate,
			Record: map[string]any{
				"user_id":     room,
				"sender_type": string(models.SenderAdmin),
				"is_read":     true,
				"read_at":     at,
				"affected":    result.RowsAffected,
			},
			CommitTime: at,
		})
	}
	return result.RowsAffected, nil
}

// UnreadCount counts the room's admin-authored messages the user has not read.
func (s *GormMessageStore) UnreadCount(ctx context.Context, room string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.UserMessage{}).
		Where("user_id = ? AND sender_type = ? AND is_read = ?", room, models.SenderAdmin, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *GormMessageStore) publish(ctx context.Context, change realtime.Change) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Warn("publish change failed",
			zap.String("table", change.Table),
			zap.String("event", string(change.Event)),
			zap.Error(err))
	}
}

func messageRecord(m *models.UserMessage) map[string]any {
	record := map[string]any{
		"id":          m.ID,
		"user_id":     m.UserID,
		"content":     m.Content,
		"sender_type": string(m.SenderType),
		"is_read":     m.IsRead,
		"created_at":  m.CreatedAt,
	}
	if m.AdminID != nil {
		record["admin_id"] = *m.AdminID
	}
	if m.ReadAt != nil {
		record["read_at"] = *m.ReadAt
	}
	return record
}
