package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SenderType records who authored a message.
type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAdmin SenderType = "admin"
)

// UserMessageTable is the table the relay persists conversation messages to.
const UserMessageTable = "user_messages"

// UserMessage is one message in a room. UserID is the room key (the non-admin participant);
// AdminID is only set when an administrator authored the message.
type UserMessage struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	UserID     string     `json:"user_id" gorm:"size:64;index:idx_user_messages_room,priority:1;not null"`
	AdminID    *string    `json:"admin_id" gorm:"size:64"`
	Content    string     `json:"content" gorm:"type:text;not null"`
	SenderType SenderType `json:"sender_type" gorm:"size:16;index;not null"`
	IsRead     bool       `json:"is_read" gorm:"default:false;index"`
	ReadAt     *time.Time `json:"read_at"`
	CreatedAt  time.Time  `json:"created_at" gorm:"index:idx_user_messages_room,priority:2;autoCreateTime"`
}

func (UserMessage) TableName() string {
	return UserMessageTable
}

// BeforeCreate assigns an id and normalises content.
func (m *UserMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Content = strings.TrimSpace(m.Content)
	if m.SenderType == "" {
		m.SenderType = SenderUser
	}
	return nil
}

// NewUserMessage builds an unsaved message for room authored by senderID.
// Admin-authored messages carry the sender in AdminID; user messages leave it nil.
func NewUserMessage(room, senderID string, isAdmin bool, content string) *UserMessage {
	msg := &UserMessage{
		UserID:     room,
		Content:    strings.TrimSpace(content),
		SenderType: SenderUser,
	}
	if isAdmin {
		id := senderID
		msg.AdminID = &id
		msg.SenderType = SenderAdmin
	}
	return msg
}
