package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PreviewLength is the maximum number of runes kept as a conversation's last message preview.
const PreviewLength = 100

// Conversation is the unique channel between one guard and one resident.
type Conversation struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GuardID               uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_pair,priority:1" json:"guard_id"`
	ResidentID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_pair,priority:2;index" json:"resident_id"`
	LastMessageText       string    `gorm:"size:400;not null" json:"last_message_text"`
	LastMessageAt         time.Time `gorm:"index" json:"last_message_at"`
	LastMessageSenderRole Role      `gorm:"size:16" json:"last_message_sender_role,omitempty"`
	UnreadCountGuard      int       `gorm:"not null;default:0" json:"unread_count_guard"`
	UnreadCountResident   int       `gorm:"not null;default:0" json:"unread_count_resident"`
	IsActive              bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`

	Guard    *Guard    `gorm:"foreignKey:GuardID" json:"guard,omitempty"`
	Resident *Resident `gorm:"foreignKey:ResidentID" json:"resident,omitempty"`
}

// BeforeCreate assigns a time-ordered id.
func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = newID()
	}
	return nil
}

// SideOf returns the role participantID plays in the conversation.
func (c *Conversation) SideOf(participantID uuid.UUID) (Role, bool) {
	switch participantID {
	case c.GuardID:
		return RoleGuard, true
	case c.ResidentID:
		return RoleResident, true
	default:
		return "", false
	}
}

// ParticipantFor returns the id on the given side.
func (c *Conversation) ParticipantFor(role Role) uuid.UUID {
	if role == RoleGuard {
		return c.GuardID
	}
	return c.ResidentID
}

// UnreadFor returns the unread counter of the given side.
func (c *Conversation) UnreadFor(role Role) int {
	if role == RoleGuard {
		return c.UnreadCountGuard
	}
	return c.UnreadCountResident
}

// UnreadColumn names the counter column for a side.
func UnreadColumn(role Role) string {
	if role == RoleGuard {
		return "unread_count_guard"
	}
	return "unread_count_resident"
}

// Preview truncates text to PreviewLength runes.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength])
}
