// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger is the logger used by WSLogger. It is replaced by the application's
// context-aware logger at startup.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// WSLogger provides structured logging for WebSocket lifecycle events.
type WSLogger struct {
	hubName string
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, participantID uuid.UUID, role, sessionID string) {
	Logger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.String("participant_id", participantID.String()),
		slog.String("role", role),
		slog.String("session_id", sessionID),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, participantID uuid.UUID, sessionID string, wentOffline bool) {
	Logger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.String("participant_id", participantID.String()),
		slog.String("session_id", sessionID),
		slog.Bool("went_offline", wentOffline),
	)
}

// LogEventError logs a rejected or failed inbound event.
func (l *WSLogger) LogEventError(ctx context.Context, participantID uuid.UUID, event string, err error) {
	Logger.WarnContext(ctx, "websocket event failed",
		slog.String("hub", l.hubName),
		slog.String("participant_id", participantID.String()),
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}
