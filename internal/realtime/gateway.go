package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gatehouse/internal/identity"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/notifications"
	"gatehouse/internal/observability"
	"gatehouse/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
)

// Limits for inbound events, per participant.
const (
	SendLimit    = 15
	SendWindow   = time.Minute
	TypingLimit  = 10
	TypingWindow = 10 * time.Second
)

// Rate limit buckets. SendResource is shared with the REST send route.
const (
	SendResource   = "send_message"
	TypingResource = "typing"
)

// Messaging is the part of the messaging service the gateway drives.
type Messaging interface {
	Send(ctx context.Context, in service.SendInput) (*service.SendResult, error)
	MarkConversationRead(ctx context.Context, conversationID, participantID uuid.UUID) (*service.ReadReceipt, error)
	AuthorizeConversation(ctx context.Context, conversationID, participantID uuid.UUID) (*models.Conversation, models.Role, error)
}

// CredentialVerifier turns a bearer credential into a participant id.
type CredentialVerifier interface {
	Verify(ctx context.Context, raw string) (uuid.UUID, error)
}

// RateLimiter reports whether id may perform resource again within window.
type RateLimiter interface {
	Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error)
}

// RedisRateLimiter applies the shared Redis fixed-window limiter.
type RedisRateLimiter struct {
	rdb *redis.Client
}

// NewRedisRateLimiter creates a limiter backed by rdb.
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb}
}

// Allow fails open when Redis is unavailable.
func (l *RedisRateLimiter) Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	allowed, err := middleware.CheckRateLimit(ctx, l.rdb, resource, id, limit, window)
	if err != nil {
		return true, err
	}
	return allowed, nil
}

// Gateway authenticates websocket sessions and dispatches their events.
type Gateway struct {
	verifier  CredentialVerifier
	resolver  service.ParticipantResolver
	messaging Messaging
	fanout    *notifications.Fanout
	online    *notifications.OnlineRegistry
	limiter   RateLimiter
	log       *observability.WSLogger
}

// NewGateway wires a gateway. limiter may be nil to disable event limits.
func NewGateway(
	verifier CredentialVerifier,
	resolver service.ParticipantResolver,
	messaging Messaging,
	fanout *notifications.Fanout,
	online *notifications.OnlineRegistry,
	limiter RateLimiter,
) *Gateway {
	return &Gateway{
		verifier:  verifier,
		resolver:  resolver,
		messaging: messaging,
		fanout:    fanout,
		online:    online,
		limiter:   limiter,
		log:       observability.NewWSLogger("guard messaging"),
	}
}

// Authenticate verifies a bearer credential and resolves its participant.
func (g *Gateway) Authenticate(ctx context.Context, credential string) (identity.Participant, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, models.NewUnauthorizedError("Missing credential")
	}
	id, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}
	return g.AuthenticateParticipant(ctx, id)
}

// AuthenticateParticipant resolves an already verified participant id.
func (g *Gateway) AuthenticateParticipant(ctx context.Context, id uuid.UUID) (identity.Participant, error) {
	p, err := g.resolver.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, models.NewUnauthorizedError("Participant not found")
		}
		return nil, models.NewInternalError(err)
	}
	return p, nil
}

// Connect registers an authenticated session: presence, hub membership, the
// personal room, and the event handlers. It announces the participant online
// and greets the session.
func (g *Gateway) Connect(ctx context.Context, c *notifications.Client) error {
	hub := g.fanout.Hub()
	if err := hub.Register(c); err != nil {
		return err
	}

	g.online.Register(ctx, notifications.Presence{
		ParticipantID: c.ParticipantID,
		Role:          c.Role,
		SessionID:     c.SessionID,
	})
	hub.Join(notifications.ParticipantRoom(c.ParticipantID), c)

	c.IncomingHandler = func(c *notifications.Client, raw []byte) {
		g.Handle(context.Background(), c, raw)
	}
	c.OnClose = func(c *notifications.Client) {
		g.Disconnect(context.Background(), c)
	}

	observability.WebSocketConnections.Inc()
	g.log.LogConnect(ctx, c.ParticipantID, string(c.Role), c.SessionID)

	if frame, err := Encode(EventUserOnline, PresenceData{ParticipantID: c.ParticipantID, Role: c.Role}); err == nil {
		g.fanout.ToAll(ctx, frame, "")
	}
	g.reply(c, EventConnected, ConnectedData{
		ParticipantID: c.ParticipantID,
		Role:          c.Role,
		Name:          c.Name,
		SessionID:     c.SessionID,
	})
	return nil
}

// Disconnect removes a session. user_offline is announced only when the
// registry entry belonged to this session.
func (g *Gateway) Disconnect(ctx context.Context, c *notifications.Client) {
	if !g.fanout.Hub().Unregister(c) {
		return
	}
	observability.WebSocketConnections.Dec()

	wentOffline := g.online.Unregister(ctx, c.ParticipantID, c.SessionID)
	if wentOffline {
		if frame, err := Encode(EventUserOffline, PresenceData{ParticipantID: c.ParticipantID, Role: c.Role}); err == nil {
			g.fanout.ToAll(ctx, frame, c.SessionID)
		}
	}
	g.log.LogDisconnect(ctx, c.ParticipantID, c.SessionID, wentOffline)
}

// Handle dispatches one inbound frame. Failures are answered with an error
// event to this session only.
func (g *Gateway) Handle(ctx context.Context, c *notifications.Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		g.fail(ctx, c, "unknown", models.NewValidationError("Malformed event"))
		return
	}

	ctx = middleware.WithParticipant(ctx, c.ParticipantID)
	ctx, span := observability.TraceWebSocket(ctx, frame.Event)
	defer span.End()

	g.online.Touch(ctx, c.ParticipantID)

	var err error
	switch frame.Event {
	case EventJoinConversation:
		err = g.join(ctx, c, frame.Data)
	case EventLeaveConversation:
		err = g.leave(c, frame.Data)
	case EventSendMessage:
		err = g.send(ctx, c, frame.Data)
	case EventMarkAsRead:
		err = g.markRead(ctx, c, frame.Data)
	case EventTyping:
		err = g.typing(ctx, c, frame.Data)
	case EventCheckOnline:
		err = g.checkOnline(ctx, c, frame.Data)
	default:
		err = models.NewValidationError("Unknown event")
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, models.ErrorCode(err))
		g.fail(ctx, c, frame.Event, err)
		return
	}
	observability.WebSocketEvents.WithLabelValues(frame.Event, "ok").Inc()
}

func (g *Gateway) join(ctx context.Context, c *notifications.Client, data json.RawMessage) error {
	convID, err := conversationIDFrom(data)
	if err != nil {
		return err
	}
	if _, _, err := g.messaging.AuthorizeConversation(ctx, convID, c.ParticipantID); err != nil {
		return err
	}
	room := notifications.ConversationRoom(convID)
	g.fanout.Hub().Join(room, c)
	middleware.Logger.DebugContext(ctx, "joined conversation room",
		"conversation_id", convID.String(), "local_members", g.fanout.Hub().Members(room))
	g.reply(c, EventJoinedConversation, ConversationData{ConversationID: convID})
	return nil
}

func (g *Gateway) leave(c *notifications.Client, data json.RawMessage) error {
	convID, err := conversationIDFrom(data)
	if err != nil {
		return err
	}
	g.fanout.Hub().Leave(notifications.ConversationRoom(convID), c)
	return nil
}

func (g *Gateway) send(ctx context.Context, c *notifications.Client, data json.RawMessage) error {
	var req sendMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	in := service.SendInput{SenderID: c.ParticipantID, Body: req.Body, Channel: service.ChannelSocket}
	if in.Body == "" {
		in.Body = req.Message
	}
	var err error
	if in.ConversationID, err = optionalID(req.ConversationID, "conversation_id"); err != nil {
		return err
	}
	if in.RecipientID, err = optionalID(req.RecipientID, "recipient_id"); err != nil {
		return err
	}
	if strings.TrimSpace(in.Body) == "" {
		return models.NewEmptyMessageError()
	}

	// Only well-formed sends are charged.
	if !g.allow(ctx, SendResource, c, SendLimit, SendWindow) {
		return models.NewRateLimitedError()
	}

	result, err := g.messaging.Send(ctx, in)
	if err != nil {
		return err
	}
	g.reply(c, EventMessageSent, newMessageData(result))
	return nil
}

func (g *Gateway) markRead(ctx context.Context, c *notifications.Client, data json.RawMessage) error {
	convID, err := conversationIDFrom(data)
	if err != nil {
		return err
	}
	receipt, err := g.messaging.MarkConversationRead(ctx, convID, c.ParticipantID)
	if err != nil {
		return err
	}
	g.reply(c, EventMarkedAsRead, ReadData{
		ConversationID: receipt.ConversationID,
		ReadBy:         receipt.ReaderID,
		ReadByRole:     receipt.ReaderRole,
		MessagesRead:   receipt.MessagesRead,
	})
	return nil
}

// typing indicators over the limit are dropped without an error.
func (g *Gateway) typing(ctx context.Context, c *notifications.Client, data json.RawMessage) error {
	var req typingRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	convID, err := optionalID(req.ConversationID, "conversation_id")
	if err != nil {
		return err
	}
	if convID == uuid.Nil {
		return models.NewValidationError("conversation_id is required")
	}
	// Room members were authorized when they joined.
	if !g.fanout.Hub().InRoom(notifications.ConversationRoom(convID), c) {
		if _, _, err := g.messaging.AuthorizeConversation(ctx, convID, c.ParticipantID); err != nil {
			return err
		}
	}
	if !g.allow(ctx, TypingResource, c, TypingLimit, TypingWindow) {
		return nil
	}

	frame, err := Encode(EventUserTyping, TypingData{
		ConversationID: convID,
		ParticipantID:  c.ParticipantID,
		Role:           c.Role,
		Name:           c.Name,
		IsTyping:       req.IsTyping,
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	g.fanout.ToRoom(ctx, notifications.ConversationRoom(convID), frame, c.SessionID)
	return nil
}

func (g *Gateway) checkOnline(ctx context.Context, c *notifications.Client, data json.RawMessage) error {
	var req checkOnlineRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	id, err := uuid.Parse(strings.TrimSpace(req.ParticipantID))
	if err != nil {
		return models.NewValidationError("participant_id must be a valid id")
	}

	status := OnlineStatusData{ParticipantID: id, IsOnline: g.online.IsOnline(ctx, id)}
	if !status.IsOnline {
		if seen, ok := g.online.LastSeen(ctx, id); ok {
			status.LastSeen = &seen
		}
	}
	g.reply(c, EventOnlineStatus, status)
	return nil
}

func (g *Gateway) allow(ctx context.Context, resource string, c *notifications.Client, limit int, window time.Duration) bool {
	if g.limiter == nil {
		return true
	}
	allowed, err := g.limiter.Allow(ctx, resource, "participant:"+c.ParticipantID.String(), limit, window)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "event rate limit check failed", "resource", resource, "error", err)
	}
	return allowed
}

func (g *Gateway) reply(c *notifications.Client, event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		middleware.Logger.Error("failed to encode websocket frame", "event", event, "error", err)
		return
	}
	c.TrySend(frame)
}

func (g *Gateway) fail(ctx context.Context, c *notifications.Client, event string, err error) {
	outcome := "rejected"
	if models.ErrorCode(err) == models.CodeInternal {
		outcome = "error"
	}
	observability.WebSocketEvents.WithLabelValues(event, outcome).Inc()
	g.log.LogEventError(ctx, c.ParticipantID, event, err)
	g.reply(c, EventError, ErrorData{Code: models.ErrorCode(err), Message: models.PublicMessage(err)})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return models.NewValidationError("Event data is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return models.NewValidationError("Malformed event data")
	}
	return nil
}

func conversationIDFrom(data json.RawMessage) (uuid.UUID, error) {
	var ref conversationRef
	if err := decode(data, &ref); err != nil {
		return uuid.Nil, err
	}
	id, err := optionalID(ref.ConversationID, "conversation_id")
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, models.NewValidationError("conversation_id is required")
	}
	return id, nil
}

// optionalID parses a possibly empty id field.
func optionalID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, models.NewValidationError(field + " must be a valid id")
	}
	return id, nil
}
