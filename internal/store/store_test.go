package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/code-100-precent/LingRelay/internal/models"
	"github.com/code-100-precent/LingRelay/pkg/realtime"
	"github.com/code-100-precent/LingRelay/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := utils.InitDatabase(io.Discard, "sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, utils.MakeMigrates(db, []any{&models.UserMessage{}}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type capturePublisher struct {
	mu      sync.Mutex
	changes []realtime.Change
	err     error
}

func (p *capturePublisher) Publish(_ context.Context, c realtime.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func seed(t *testing.T, db *gorm.DB, room string, admin bool, content string, at time.Time) *models.UserMessage {
	t.Helper()
	msg := models.NewUserMessage(room, "admin-1", admin, content)
	msg.CreatedAt = at
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestInsert(t *testing.T) {
	db := setupTestDB(t)
	pub := &capturePublisher{}
	s := NewGormMessageStore(db, pub, nil)

	stored, err := s.Insert(context.Background(), models.NewUserMessage("u1", "u1", false, " hi "))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, "hi", stored.Content)
	assert.Nil(t, stored.AdminID)
	assert.Equal(t, models.SenderUser, stored.SenderType)
	assert.False(t, stored.CreatedAt.IsZero())

	var count int64
	require.NoError(t, db.Model(&models.UserMessage{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.Len(t, pub.changes, 1)
	assert.Equal(t, "user_messages", pub.changes[0].Table)
	assert.Equal(t, realtime.EventInsert, pub.changes[0].Event)
	assert.Equal(t, stored.ID, pub.changes[0].Record["id"])
	assert.NotContains(t, pub.changes[0].Record, "admin_id")
}

func TestInsert_Admin(t *testing.T) {
	s := NewGormMessageStore(setupTestDB(t), nil, nil)

	stored, err := s.Insert(context.Background(), models.NewUserMessage("u1", "a1", true, "hello"))
	require.NoError(t, err)
	require.NotNil(t, stored.AdminID)
	assert.Equal(t, "a1", *stored.AdminID)
	assert.Equal(t, models.SenderAdmin, stored.SenderType)
}

func TestInsert_EmptyContent(t *testing.T) {
	db := setupTestDB(t)
	s := NewGormMessageStore(db, nil, nil)

	_, err := s.Insert(context.Background(), models.NewUserMessage("u1", "u1", false, "   "))
	assert.ErrorIs(t, err, ErrEmptyContent)
	_, err = s.Insert(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyContent)

	var count int64
	require.NoError(t, db.Model(&models.UserMessage{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInsert_PublishFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewGormMessageStore(setupTestDB(t), &capturePublisher{err: errors.New("feed down")}, zap.New(core))

	_, err := s.Insert(context.Background(), models.NewUserMessage("u1", "u1", false, "hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("publish change failed").Len())
}

func TestInsert_DatabaseError(t *testing.T) {
	db := setupTestDB(t)
	s := NewGormMessageStore(db, nil, nil)
	require.NoError(t, db.Migrator().DropTable(&models.UserMessage{}))

	_, err := s.Insert(context.Background(), models.NewUserMessage("u1", "u1", false, "hi"))
	assert.Error(t, err)
}

func TestRecent_OldestFirstAndLimited(t *testing.T) {
	db := setupTestDB(t)
	s := NewGormMessageStore(db, nil, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		seed(t, db, "u1", i%2 == 0, fmt.Sprintf("m%03d", i), base.Add(time.Duration(i)*time.Second))
	}
	seed(t, db, "u2", false, "other room", base.Add(time.Hour))

	rows, err := s.Recent(context.Background(), "u1", 100)
	require.NoError(t, err)
	require.Len(t, rows, 100)
	assert.Equal(t, "m020", rows[0].Content)
	assert.Equal(t, "m119", rows[99].Content)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].CreatedAt.Before(rows[i-1].CreatedAt))
		assert.Equal(t, "u1", rows[i].UserID)
	}

	rows, err = s.Recent(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, DefaultHistoryLimit)

	rows, err = s.Recent(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarkAdminRead(t *testing.T) {
	db := setupTestDB(t)
	pub := &capturePublisher{}
	s := NewGormMessageStore(db, pub, nil)
	now := time.Now()

	a1 := seed(t, db, "u1", true, "admin one", now)
	a2 := seed(t, db, "u1", true, "admin two", now)
	u1 := seed(t, db, "u1", false, "user one", now)
	other := seed(t, db, "u2", true, "other room", now)

	n, err := s.MarkAdminRead(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	reload := func(id string) models.UserMessage {
		var m models.UserMessage
		require.NoError(t, db.First(&m, "id = ?", id).Error)
		return m
	}
	for _, id := range []string{a1.ID, a2.ID} {
		m := reload(id)
		assert.True(t, m.IsRead)
		assert.NotNil(t, m.ReadAt)
	}
	for _, id := range []string{u1.ID, other.ID} {
		m := reload(id)
		assert.False(t, m.IsRead)
		assert.Nil(t, m.ReadAt)
	}

	require.Len(t, pub.changes, 1)
	assert.Equal(t, realtime.EventUpdate, pub.changes[0].Event)
	assert.Equal(t, int64(2), pub.changes[0].Record["affected"])

	n, err = s.MarkAdminRead(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, pub.changes, 1)
}

func TestUnreadCount(t *testing.T) {
	db := setupTestDB(t)
	s := NewGormMessageStore(db, nil, nil)
	now := time.Now()
	seed(t, db, "u1", true, "a", now)
	seed(t, db, "u1", true, "b", now)
	seed(t, db, "u1", false, "c", now)

	n, err := s.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.MarkAdminRead(context.Background(), "u1", now)
	require.NoError(t, err)
	n, err = s.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
