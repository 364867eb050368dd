package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxMessageLength is the maximum body length in runes after trimming.
const MaxMessageLength = 2000

// Message is a single immutable text message inside a conversation. Only the
// read state changes after creation.
type Message struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderID       uuid.UUID  `gorm:"type:uuid;not null" json:"sender_id"`
	SenderRole     Role       `gorm:"size:16;not null" json:"sender_role"`
	RecipientID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_messages_recipient_read,priority:1" json:"recipient_id"`
	RecipientRole  Role       `gorm:"size:16;not null" json:"recipient_role"`
	Body           string     `gorm:"type:text;not null" json:"body"`
	IsRead         bool       `gorm:"not null;default:false;index:idx_messages_recipient_read,priority:2" json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"index:idx_messages_conversation_created,priority:2" json:"created_at"`

	Conversation *Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

// BeforeCreate assigns a time-ordered id.
func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = newID()
	}
	return nil
}
