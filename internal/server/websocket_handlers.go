package server

import (
	"context"
	"log/slog"
	"strings"

	"gatehouse/internal/identity"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/notifications"
	"gatehouse/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localParticipant = "wsParticipant"

// WSTicketResponse is the body of POST /api/ws/ticket.
type WSTicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers on a
// WebSocket handshake, so they trade their bearer token for a one-use ticket.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	participantID, err := currentParticipant(c)
	if err != nil {
		return nil
	}

	ticket, err := middleware.IssueTicket(c.UserContext(), s.redis, participantID)
	if err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}
	return c.JSON(WSTicketResponse{Ticket: ticket, ExpiresIn: 30})
}

// WebSocketUpgrade authenticates the handshake before upgrading. Credentials
// are tried in order: ticket query, bearer header, token query.
func (s *Server) WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		participant, err := s.authenticateHandshake(c)
		if err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "websocket handshake rejected",
				slog.String("ip", c.IP()), slog.String("reason", models.PublicMessage(err)))
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		c.Locals(localParticipant, participant)
		c.Locals(middleware.LocalParticipantID, participant.ParticipantID())
		return c.Next()
	}
}

func (s *Server) authenticateHandshake(c *fiber.Ctx) (identity.Participant, error) {
	ctx := c.UserContext()

	if ticket := strings.TrimSpace(c.Query("ticket")); ticket != "" {
		participantID, err := middleware.RedeemTicket(ctx, s.redis, ticket)
		if err != nil {
			return nil, err
		}
		return s.gateway.AuthenticateParticipant(ctx, participantID)
	}

	token := middleware.BearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	return s.gateway.Authenticate(ctx, token)
}

// WebSocketHandler runs an authenticated guard messaging session.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		participant, ok := conn.Locals(localParticipant).(identity.Participant)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, unauthorizedFrame())
			_ = conn.Close()
			return
		}

		ctx := middleware.WithParticipant(context.Background(), participant.ParticipantID())
		client := notifications.NewClient(conn, participant.ParticipantID(), participant.ParticipantRole(), participant.DisplayName())

		if err := s.gateway.Connect(ctx, client); err != nil {
			middleware.Logger.WarnContext(ctx, "websocket session refused", slog.String("error", err.Error()))
			if frame, ferr := realtime.Encode(realtime.EventError, realtime.ErrorData{
				Code:    models.CodeInternal,
				Message: err.Error(),
			}); ferr == nil {
				_ = conn.WriteMessage(websocket.TextMessage, frame)
			}
			_ = conn.Close()
			return
		}
		defer client.Close()

		go client.WritePump()
		client.ReadPump()
	})
}

func unauthorizedFrame() []byte {
	frame, _ := realtime.Encode(realtime.EventError, realtime.ErrorData{
		Code:    models.CodeUnauthorized,
		Message: "Authorization required",
	})
	return frame
}
