// Package realtime implements the websocket protocol of the messaging system:
// authentication of live connections, inbound event handling, and the
// outbound events emitted when messages are created or read.
package realtime

import (
	"encoding/json"
	"time"

	"gatehouse/internal/models"
	"gatehouse/internal/service"

	"github.com/google/uuid"
)

// Client to server events.
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventMarkAsRead        = "mark_as_read"
	EventTyping            = "typing"
	EventCheckOnline       = "check_online"
)

// Server to client events.
const (
	EventConnected              = "connected"
	EventJoinedConversation     = "joined_conversation"
	EventNewMessage             = "new_message"
	EventNewMessageNotification = "new_message_notification"
	EventMessageSent            = "message_sent"
	EventMessagesRead           = "messages_read"
	EventMarkedAsRead           = "marked_as_read"
	EventUserTyping             = "user_typing"
	EventOnlineStatus           = "online_status"
	EventUserOnline             = "user_online"
	EventUserOffline            = "user_offline"
	EventError                  = "error"
)

// Frame is the JSON envelope of every websocket text frame.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame for event with data as its payload.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

type conversationRef struct {
	ConversationID string `json:"conversation_id"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	RecipientID    string `json:"recipient_id"`
	Body           string `json:"body"`
	Message        string `json:"message"`
}

type typingRequest struct {
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

type checkOnlineRequest struct {
	ParticipantID string `json:"participant_id"`
}

// ConnectedData greets a newly authenticated session.
type ConnectedData struct {
	ParticipantID uuid.UUID   `json:"participant_id"`
	Role          models.Role `json:"role"`
	Name          string      `json:"name"`
	SessionID     string      `json:"session_id"`
}

// ConversationData names a conversation.
type ConversationData struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// MessageData is a message as pushed to the conversation room and echoed to its sender.
type MessageData struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	SenderRole     models.Role `json:"sender_role"`
	SenderName     string      `json:"sender_name"`
	RecipientID    uuid.UUID   `json:"recipient_id"`
	RecipientRole  models.Role `json:"recipient_role"`
	Body           string      `json:"body"`
	IsRead         bool        `json:"is_read"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NotificationData tells a recipient about a new message outside the conversation view.
type NotificationData struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	MessageID      uuid.UUID   `json:"message_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	SenderRole     models.Role `json:"sender_role"`
	SenderName     string      `json:"sender_name"`
	Body           string      `json:"body"`
	UnreadCount    int         `json:"unread_count"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ReadData reports that one side read a conversation.
type ReadData struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	ReadBy         uuid.UUID   `json:"read_by"`
	ReadByRole     models.Role `json:"read_by_role"`
	MessagesRead   int64       `json:"messages_read"`
}

// TypingData is an ephemeral typing indicator.
type TypingData struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	ParticipantID  uuid.UUID   `json:"participant_id"`
	Role           models.Role `json:"role"`
	Name           string      `json:"name"`
	IsTyping       bool        `json:"is_typing"`
}

// OnlineStatusData answers check_online.
type OnlineStatusData struct {
	ParticipantID uuid.UUID  `json:"participant_id"`
	IsOnline      bool       `json:"is_online"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
}

// PresenceData announces a participant going online or offline.
type PresenceData struct {
	ParticipantID uuid.UUID   `json:"participant_id"`
	Role          models.Role `json:"role"`
}

// ErrorData is sent to the offending session only.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newMessageData(r *service.SendResult) MessageData {
	m := r.Message
	return MessageData{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		SenderName:     r.Sender.DisplayName(),
		RecipientID:    m.RecipientID,
		RecipientRole:  m.RecipientRole,
		Body:           m.Body,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}
