package service

import (
	"context"
)

// EventPublisher delivers committed messaging changes to live clients. Delivery
// is best effort: a publish failure never fails the operation that caused it.
type EventPublisher interface {
	MessageCreated(ctx context.Context, result *SendResult) error
	ConversationRead(ctx context.Context, receipt *ReadReceipt) error
}
