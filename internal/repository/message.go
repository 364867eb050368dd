package repository

import (
	"context"
	"slices"
	"time"

	"gatehouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepository persists messages and their read state.
type MessageRepository interface {
	Append(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]*models.Message, int64, error)
	MarkConversationReadFor(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) (int64, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	CountUnreadFor(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, msg *models.Message) error {
	return conn(ctx, r.db).Create(msg).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := conn(ctx, r.db).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByConversation returns one page counted back from the newest message,
// ordered oldest first, together with the conversation's total message count.
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]*models.Message, int64, error) {
	db := conn(ctx, r.db)

	var total int64
	if err := db.Model(&models.Message{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []*models.Message
	err := db.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	slices.Reverse(messages)
	return messages, total, nil
}

// MarkConversationReadFor flips every unread message addressed to recipientID
// and returns how many changed.
func (r *messageRepository) MarkConversationReadFor(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := conn(ctx, r.db).
		Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// MarkRead flips a single message if it is still unread.
func (r *messageRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res := conn(ctx, r.db).
		Model(&models.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *messageRepository) CountUnreadFor(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}
