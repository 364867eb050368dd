package server

import (
	"gatehouse/internal/models"
	"gatehouse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SendMessageRequest is the body of POST /send. Exactly one of RecipientID
// or ConversationID is needed; Message is accepted as an alias of Body.
type SendMessageRequest struct {
	RecipientID    string `json:"recipient_id"`
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body"`
	Message        string `json:"message"`
}

// StartConversationRequest is the body of POST /conversation.
type StartConversationRequest struct {
	RecipientID string `json:"recipient_id"`
}

// UnreadCountResponse is the body of GET /unread-count.
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// ListConversations handles GET /api/guard-messages/conversations
func (s *Server) ListConversations(c *fiber.Ctx) error {
	ctx := c.UserContext()
	participantID, err := currentParticipant(c)
	if err != nil {
		return nil
	}

	list, err := s.messaging.ListConversations(ctx, participantID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(list)
}

// GetMessages handles GET /api/guard-messages/conversations/:id?page=&limit=
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	participantID, err := currentParticipant(c)
	if err != nil {
		return nil
	}
	conversationID, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", service.DefaultPageSize)

	result, err := s.messaging.GetMessages(ctx, conversationID, participantID, page, limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// MarkConversationRead handles PUT /api/guard-messages/conversations/:id/read
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	participantID, err := currentParticipant(c)
	if err != nil {
		return nil
	}
	conversationID, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}

	receipt, err := s.messaging.MarkConversationRead(ctx, conversationID, participantID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(receipt)
}

// StartConversation handles POST /api/guard-messages/conversation
func (s *Server) StartConversation(c *fiber.Ctx) error {
	ctx := c.UserContext()
	participantID, err := currentParticipant(c)
	if err != nil {
		return nil
	}

	var req StartConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}
	recipientID, err := parseBodyID(req.RecipientID, "recipient_id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	view, err := s.messaging.StartConversation(ctx, participantID, recipientID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(view)
}

// SendMessage handles POST /api/guard-messages/send
func (s *Server) SendMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	participantID, err := currentParticipant(c)
	if err != nil {
		return nil
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}
	recipientID, err := parseBodyID(req.RecipientID, "recipient_id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	conversationID, err := parseBodyID(req.ConversationID, "conversation_id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	body := req.Body
	if body == "" {
		body = req.Message
	}

	result, err := s.messaging.Send(ctx, service.SendInput{
		SenderID:       participantID,
		RecipientID:    recipientID,
		ConversationID: conversationID,
		Body:           body,
		Channel:        service.ChannelREST,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// MarkMessageRead handles PUT /api/guard-messages/:messageId/read
func (s *Server) MarkMessageRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	participantID, err := currentParticipant(c)
	if err != nil {
		return nil
	}
	messageID, err := parseUUID(c, "messageId")
	if err != nil {
		return nil
	}

	msg, err := s.messaging.MarkMessageRead(ctx, messageID, participantID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(msg)
}

// UnreadCount handles GET /api/guard-messages/unread-count
func (s *Server) UnreadCount(c *fiber.Ctx) error {
	ctx := c.UserContext()
	participantID, err := currentParticipant(c)
	if err != nil {
		return nil
	}

	count, err := s.messaging.UnreadCount(ctx, participantID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UnreadCountResponse{UnreadCount: count})
}
