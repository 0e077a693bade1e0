package relay

import (
	"context"
	"sync"
	"time"

	"github.com/code-100-precent/LingRelay/internal/models"
	"github.com/google/uuid"
)

// memoryStore is an in-memory HistoryLoader and MessageStore.
type memoryStore struct {
	mu         sync.Mutex
	rows       []models.UserMessage
	historyErr error
	insertErr  error
	readErr    error
	inserts    int
	reads      int
}

func (m *memoryStore) Recent(_ context.Context, room string, limit int) ([]models.UserMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	var out []models.UserMessage
	for _, r := range m.rows {
		if r.UserID == room {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryStore) Insert(_ context.Context, msg *models.UserMessage) (*models.UserMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	m.rows = append(m.rows, *msg)
	return msg, nil
}

func (m *memoryStore) MarkAdminRead(_ context.Context, room string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return 0, m.readErr
	}
	var n int64
	for i := range m.rows {
		r := &m.rows[i]
		if r.UserID == room && r.SenderType == models.SenderAdmin && !r.IsRead {
			r.IsRead = true
			t := at
			r.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) add(room string, admin bool, content string) {
	msg := models.NewUserMessage(room, "admin-1", admin, content)
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	m.mu.Lock()
	m.rows = append(m.rows, *msg)
	m.mu.Unlock()
}

func (m *memoryStore) snapshot() []models.UserMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.UserMessage(nil), m.rows...)
}
