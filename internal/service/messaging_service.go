// Package service provides the guard/resident messaging business logic.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gatehouse/internal/identity"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/observability"
	"gatehouse/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ChannelREST and ChannelSocket label where a message was sent from.
const (
	ChannelREST   = "rest"
	ChannelSocket = "socket"
)

// ParticipantResolver finds a participant in any directory.
type ParticipantResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (identity.Participant, error)
}

// MessagingService owns every state transition of conversations and messages.
type MessagingService struct {
	resolver      ParticipantResolver
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	tx            repository.Transactor
	events        EventPublisher
	now           func() time.Time
}

// SendInput is the input for sending a message. Either ConversationID or
// RecipientID must be set.
type SendInput struct {
	SenderID       uuid.UUID
	RecipientID    uuid.UUID
	ConversationID uuid.UUID
	Body           string
	Channel        string
}

// NewMessagingService returns a new MessagingService. events may be nil.
func NewMessagingService(
	resolver ParticipantResolver,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	tx repository.Transactor,
	events EventPublisher,
) *MessagingService {
	return &MessagingService{
		resolver:      resolver,
		conversations: conversations,
		messages:      messages,
		tx:            tx,
		events:        events,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Send persists a message and updates the conversation aggregate in one
// transaction, then notifies live clients.
func (s *MessagingService) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	span, ctx := observability.NewSpan(ctx, "MessagingService.Send",
		attribute.String("sender.id", in.SenderID.String()))
	defer span.End()

	result, err := s.send(ctx, in)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.AddAttributes(
		attribute.String("conversation.id", result.Conversation.ID.String()),
		attribute.String("message.id", result.Message.ID.String()),
	)
	return result, nil
}

func (s *MessagingService) send(ctx context.Context, in SendInput) (*SendResult, error) {
	sender, err := s.resolve(ctx, in.SenderID, models.NewSenderNotFoundError)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewEmptyMessageError()
	}
	if utf8.RuneCountInString(body) > models.MaxMessageLength {
		return nil, models.NewValidationError("Message cannot exceed 2000 characters")
	}

	conv, err := s.conversationForSend(ctx, sender, in)
	if err != nil {
		return nil, err
	}

	senderRole := sender.ParticipantRole()
	recipientRole := senderRole.Counterpart()
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ParticipantID(),
		SenderRole:     senderRole,
		RecipientID:    conv.ParticipantFor(recipientRole),
		RecipientRole:  recipientRole,
		Body:           body,
		CreatedAt:      s.now(),
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.conversations.Lock(ctx, conv.ID); err != nil {
			return err
		}
		if err := s.messages.Append(ctx, msg); err != nil {
			return err
		}
		return s.conversations.AppendMessagePreview(ctx, conv.ID, models.Preview(body), senderRole, msg.CreatedAt)
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	updated, err := s.conversations.GetByID(ctx, conv.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	channel := in.Channel
	if channel == "" {
		channel = ChannelREST
	}
	observability.MessagesSent.WithLabelValues(channel, string(senderRole)).Inc()

	result := &SendResult{Message: msg, Conversation: updated, Sender: sender}
	if s.events != nil {
		if err := s.events.MessageCreated(ctx, result); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to publish new message",
				"conversation_id", updated.ID, "message_id", msg.ID, "error", err)
		}
	}
	return result, nil
}

// conversationForSend loads the addressed conversation, or finds-or-creates
// the pair when only a recipient is given.
func (s *MessagingService) conversationForSend(ctx context.Context, sender identity.Participant, in SendInput) (*models.Conversation, error) {
	if in.ConversationID != uuid.Nil {
		conv, side, err := s.authorize(ctx, in.ConversationID, sender.ParticipantID())
		if err != nil {
			return nil, err
		}
		if side != sender.ParticipantRole() {
			return nil, models.NewForbiddenError("You are not a participant in this conversation")
		}
		if in.RecipientID != uuid.Nil && in.RecipientID != conv.ParticipantFor(side.Counterpart()) {
			return nil, models.NewValidationError("Recipient does not belong to this conversation")
		}
		return conv, nil
	}

	if in.RecipientID == uuid.Nil {
		return nil, models.NewValidationError("Either conversation_id or recipient_id is required")
	}
	recipient, err := s.resolve(ctx, in.RecipientID, models.NewRecipientNotFoundError)
	if err != nil {
		return nil, err
	}
	return s.pair(ctx, sender, recipient)
}

// pair returns the single conversation between a guard and a resident.
func (s *MessagingService) pair(ctx context.Context, a, b identity.Participant) (*models.Conversation, error) {
	if a.ParticipantRole() == b.ParticipantRole() {
		return nil, models.NewValidationError("Messages can only be exchanged between a guard and a resident")
	}
	guardID, residentID := a.ParticipantID(), b.ParticipantID()
	if a.ParticipantRole() == models.RoleResident {
		guardID, residentID = residentID, guardID
	}

	conv, err := s.conversations.FindOrCreate(ctx, guardID, residentID)
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, models.NewRecipientNotFoundError()
		}
		return nil, models.NewInternalError(err)
	}
	return conv, nil
}

// StartConversation finds or creates the conversation between the caller and
// a participant of the complementary role.
func (s *MessagingService) StartConversation(ctx context.Context, callerID, recipientID uuid.UUID) (*ConversationView, error) {
	caller, err := s.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if recipientID == uuid.Nil {
		return nil, models.NewValidationError("recipient_id is required")
	}
	recipient, err := s.resolve(ctx, recipientID, models.NewRecipientNotFoundError)
	if err != nil {
		return nil, err
	}

	conv, err := s.pair(ctx, caller, recipient)
	if err != nil {
		return nil, err
	}
	view := newConversationView(conv, caller.ParticipantRole(), viewFromParticipant(recipient))
	view.UnreadCounts = &UnreadCounts{Guard: conv.UnreadCountGuard, Resident: conv.UnreadCountResident}
	return &view, nil
}

// ListConversations returns the caller's conversations, most recent activity first.
func (s *MessagingService) ListConversations(ctx context.Context, participantID uuid.UUID) (*ConversationList, error) {
	caller, err := s.caller(ctx, participantID)
	if err != nil {
		return nil, err
	}
	role := caller.ParticipantRole()

	convs, err := s.conversations.ListForParticipant(ctx, participantID, role)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	views := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		views = append(views, newConversationView(conv, role, counterpartView(conv, role)))
	}
	return &ConversationList{Role: role, Conversations: views}, nil
}

// GetMessages returns one page of a conversation in chronological order.
func (s *MessagingService) GetMessages(ctx context.Context, conversationID, participantID uuid.UUID, page, limit int) (*MessagePage, error) {
	if _, _, err := s.authorize(ctx, conversationID, participantID); err != nil {
		return nil, err
	}

	page, limit = normalizePage(page, limit)
	msgs, total, err := s.messages.ListByConversation(ctx, conversationID, page, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}

	return &MessagePage{
		Messages: msgs,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages(total, limit),
		},
	}, nil
}

// MarkConversationRead marks every message addressed to the caller as read
// and zeroes the caller's counter. Calling it again is a no-op.
func (s *MessagingService) MarkConversationRead(ctx context.Context, conversationID, participantID uuid.UUID) (*ReadReceipt, error) {
	span, ctx := observability.NewSpan(ctx, "MessagingService.MarkConversationRead",
		attribute.String("conversation.id", conversationID.String()))
	defer span.End()

	conv, side, err := s.authorize(ctx, conversationID, participantID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	var read int64
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.conversations.Lock(ctx, conv.ID); err != nil {
			return err
		}
		n, err := s.messages.MarkConversationReadFor(ctx, conv.ID, participantID, s.now())
		if err != nil {
			return err
		}
		read = n
		return s.conversations.MarkRead(ctx, conv.ID, side)
	})
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}

	receipt := &ReadReceipt{
		ConversationID:     conv.ID,
		ReaderID:           participantID,
		ReaderRole:         side,
		OtherParticipantID: conv.ParticipantFor(side.Counterpart()),
		MessagesRead:       read,
	}
	if s.events != nil {
		if err := s.events.ConversationRead(ctx, receipt); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to publish read receipt",
				"conversation_id", conv.ID, "error", err)
		}
	}
	return receipt, nil
}

// MarkMessageRead marks a single message read. Only its recipient may do so.
func (s *MessagingService) MarkMessageRead(ctx context.Context, messageID, participantID uuid.UUID) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Message", messageID)
		}
		return nil, models.NewInternalError(err)
	}

	conv, side, err := s.authorize(ctx, msg.ConversationID, participantID)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID != participantID {
		return nil, models.NewForbiddenError("Only the recipient can mark a message as read")
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.conversations.Lock(ctx, conv.ID); err != nil {
			return err
		}
		n, err := s.messages.MarkRead(ctx, msg.ID, s.now())
		if err != nil || n == 0 {
			return err
		}
		return s.conversations.DecrementUnread(ctx, conv.ID, side)
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	updated, err := s.messages.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return updated, nil
}

// UnreadCount returns the number of unread messages addressed to the participant.
func (s *MessagingService) UnreadCount(ctx context.Context, participantID uuid.UUID) (int64, error) {
	n, err := s.messages.CountUnreadFor(ctx, participantID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// AuthorizeConversation returns the conversation and the caller's side of it,
// or ConversationNotFound / Forbidden.
func (s *MessagingService) AuthorizeConversation(ctx context.Context, conversationID, participantID uuid.UUID) (*models.Conversation, models.Role, error) {
	return s.authorize(ctx, conversationID, participantID)
}

func (s *MessagingService) authorize(ctx context.Context, conversationID, participantID uuid.UUID) (*models.Conversation, models.Role, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, "", models.NewConversationNotFoundError()
		}
		return nil, "", models.NewInternalError(err)
	}
	side, ok := conv.SideOf(participantID)
	if !ok {
		return nil, "", models.NewForbiddenError("You are not a participant in this conversation")
	}
	return conv, side, nil
}

// caller resolves an authenticated participant; a subject that is in no
// directory is treated as unauthenticated.
func (s *MessagingService) caller(ctx context.Context, id uuid.UUID) (identity.Participant, error) {
	return s.resolve(ctx, id, func() *models.AppError {
		return models.NewUnauthorizedError("Participant not recognized")
	})
}

func (s *MessagingService) resolve(ctx context.Context, id uuid.UUID, notFound func() *models.AppError) (identity.Participant, error) {
	p, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, notFound()
		}
		return nil, models.NewInternalError(err)
	}
	return p, nil
}
