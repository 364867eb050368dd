package service

import (
	"time"

	"gatehouse/internal/identity"
	"gatehouse/internal/models"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ParticipantView is the public profile of a conversation counterpart.
type ParticipantView struct {
	ID           uuid.UUID   `json:"id"`
	Role         models.Role `json:"role"`
	Name         string      `json:"name"`
	ProfilePic   string      `json:"profile_pic,omitempty"`
	MobileNumber string      `json:"mobile_number,omitempty"`
	Block        string      `json:"block,omitempty"`
	Floor        int         `json:"floor,omitempty"`
	RoomNumber   string      `json:"room_number,omitempty"`
}

// ConversationView is a conversation as seen by one of its participants: the
// other side's profile and the caller's own unread counter. UnreadCounts
// carries both sides' counters and is only set when a conversation is opened.
type ConversationView struct {
	ID                    uuid.UUID       `json:"id"`
	OtherParticipant      ParticipantView `json:"other_participant"`
	LastMessageText       string          `json:"last_message_text"`
	LastMessageAt         time.Time       `json:"last_message_at"`
	LastMessageSenderRole models.Role     `json:"last_message_sender_role,omitempty"`
	UnreadCount           int             `json:"unread_count"`
	UnreadCounts          *UnreadCounts   `json:"unread_counts,omitempty"`
	IsActive              bool            `json:"is_active"`
	CreatedAt             time.Time       `json:"created_at"`
}

// UnreadCounts is the raw per-role unread aggregate of a conversation.
type UnreadCounts struct {
	Guard    int `json:"guard"`
	Resident int `json:"resident"`
}

// ConversationList is the caller's role plus their conversations, most recent first.
type ConversationList struct {
	Role          models.Role        `json:"role"`
	Conversations []ConversationView `json:"conversations"`
}

// Pagination describes a page of messages.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// MessagePage is one chronologically ordered page of a conversation.
type MessagePage struct {
	Messages   []*models.Message `json:"messages"`
	Pagination Pagination        `json:"pagination"`
}

// ReadReceipt reports a bulk read by one side of a conversation.
type ReadReceipt struct {
	ConversationID     uuid.UUID   `json:"conversation_id"`
	ReaderID           uuid.UUID   `json:"read_by"`
	ReaderRole         models.Role `json:"read_by_role"`
	OtherParticipantID uuid.UUID   `json:"-"`
	MessagesRead       int64       `json:"messages_read"`
}

// SendResult is a persisted message together with its refreshed conversation.
type SendResult struct {
	Message      *models.Message      `json:"message"`
	Conversation *models.Conversation `json:"conversation"`
	Sender       identity.Participant `json:"-"`
}

func viewFromParticipant(p identity.Participant) ParticipantView {
	switch v := p.(type) {
	case *models.Guard:
		return guardView(v)
	case *models.Resident:
		return residentView(v)
	default:
		return ParticipantView{ID: p.ParticipantID(), Role: p.ParticipantRole(), Name: p.DisplayName()}
	}
}

func guardView(g *models.Guard) ParticipantView {
	return ParticipantView{
		ID:           g.ID,
		Role:         models.RoleGuard,
		Name:         g.DisplayName(),
		ProfilePic:   g.ProfilePic,
		MobileNumber: g.MobileNumber,
	}
}

func residentView(r *models.Resident) ParticipantView {
	return ParticipantView{
		ID:           r.ID,
		Role:         models.RoleResident,
		Name:         r.DisplayName(),
		ProfilePic:   r.ProfilePic,
		MobileNumber: r.MobileNumber,
		Block:        r.Block,
		Floor:        r.Floor,
		RoomNumber:   r.RoomNumber,
	}
}

// counterpartView builds the other side's profile from preloaded associations,
// falling back to the role's default name when the record is missing.
func counterpartView(conv *models.Conversation, callerRole models.Role) ParticipantView {
	other := callerRole.Counterpart()
	switch {
	case other == models.RoleGuard && conv.Guard != nil:
		return guardView(conv.Guard)
	case other == models.RoleResident && conv.Resident != nil:
		return residentView(conv.Resident)
	default:
		return ParticipantView{
			ID:   conv.ParticipantFor(other),
			Role: other,
			Name: other.DefaultDisplayName(),
		}
	}
}

func newConversationView(conv *models.Conversation, callerRole models.Role, other ParticipantView) ConversationView {
	return ConversationView{
		ID:                    conv.ID,
		OtherParticipant:      other,
		LastMessageText:       conv.LastMessageText,
		LastMessageAt:         conv.LastMessageAt,
		LastMessageSenderRole: conv.LastMessageSenderRole,
		UnreadCount:           conv.UnreadFor(callerRole),
		IsActive:              conv.IsActive,
		CreatedAt:             conv.CreatedAt,
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
