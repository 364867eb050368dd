package realtime

import (
	"context"

	"gatehouse/internal/notifications"
	"gatehouse/internal/service"
)

// Publisher turns committed messaging changes into room events.
type Publisher struct {
	fanout *notifications.Fanout
}

// NewPublisher creates a Publisher delivering through fanout.
func NewPublisher(fanout *notifications.Fanout) *Publisher {
	return &Publisher{fanout: fanout}
}

var _ service.EventPublisher = (*Publisher)(nil)

// MessageCreated pushes new_message to the conversation room and
// new_message_notification to the recipient's personal room.
func (p *Publisher) MessageCreated(ctx context.Context, r *service.SendResult) error {
	msg := r.Message
	frame, err := Encode(EventNewMessage, newMessageData(r))
	if err != nil {
		return err
	}
	p.fanout.ToRoom(ctx, notifications.ConversationRoom(msg.ConversationID), frame, "")

	notice, err := Encode(EventNewMessageNotification, NotificationData{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		SenderRole:     msg.SenderRole,
		SenderName:     r.Sender.DisplayName(),
		Body:           msg.Body,
		UnreadCount:    r.Conversation.UnreadFor(msg.RecipientRole),
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		return err
	}
	p.fanout.ToRoom(ctx, notifications.ParticipantRoom(msg.RecipientID), notice, "")
	return nil
}

// ConversationRead pushes messages_read to the other participant's personal room.
func (p *Publisher) ConversationRead(ctx context.Context, rc *service.ReadReceipt) error {
	frame, err := Encode(EventMessagesRead, ReadData{
		ConversationID: rc.ConversationID,
		ReadBy:         rc.ReaderID,
		ReadByRole:     rc.ReaderRole,
		MessagesRead:   rc.MessagesRead,
	})
	if err != nil {
		return err
	}
	p.fanout.ToRoom(ctx, notifications.ParticipantRoom(rc.OtherParticipantID), frame, "")
	return nil
}
