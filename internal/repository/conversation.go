package repository

import (
	"context"
	"time"

	"gatehouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository persists conversations and their aggregate fields.
// Counter and preview changes are single conditional UPDATE statements so
// concurrent writers never lose increments.
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, guardID, residentID uuid.UUID) (*models.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListForParticipant(ctx context.Context, participantID uuid.UUID, role models.Role) ([]*models.Conversation, error)
	AppendMessagePreview(ctx context.Context, id uuid.UUID, preview string, senderRole models.Role, at time.Time) error
	MarkRead(ctx context.Context, id uuid.UUID, role models.Role) error
	DecrementUnread(ctx context.Context, id uuid.UUID, role models.Role) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindOrCreate inserts the pair if absent and returns the stored row. Racing
// callers all observe the same conversation.
func (r *conversationRepository) FindOrCreate(ctx context.Context, guardID, residentID uuid.UUID) (*models.Conversation, error) {
	db := conn(ctx, r.db)

	candidate := models.Conversation{
		GuardID:       guardID,
		ResidentID:    residentID,
		LastMessageAt: time.Now().UTC(),
		IsActive:      true,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guard_id"}, {Name: "resident_id"}},
		DoNothing: true,
	}).Create(&candidate).Error
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	if err := db.Where("guard_id = ? AND resident_id = ?", guardID, residentID).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := conn(ctx, r.db).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// Lock reads the conversation with a row lock held until the surrounding
// transaction ends. Dialects without SELECT ... FOR UPDATE read without locking.
func (r *conversationRepository) Lock(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	db := conn(ctx, r.db)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var conv models.Conversation
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListForParticipant(ctx context.Context, participantID uuid.UUID, role models.Role) ([]*models.Conversation, error) {
	column := "resident_id"
	if role == models.RoleGuard {
		column = "guard_id"
	}

	var conversations []*models.Conversation
	err := conn(ctx, r.db).
		Preload("Guard").
		Preload("Resident").
		Where(column+" = ?", participantID).
		Order("last_message_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// AppendMessagePreview records the latest message and bumps the unread counter
// of the side opposite senderRole.
func (r *conversationRepository) AppendMessagePreview(ctx context.Context, id uuid.UUID, preview string, senderRole models.Role, at time.Time) error {
	counter := models.UnreadColumn(senderRole.Counterpart())

	res := conn(ctx, r.db).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_message_text":        preview,
			"last_message_at":          at,
			"last_message_sender_role": senderRole,
			counter:                    gorm.Expr(counter+" + ?", 1),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkRead zeroes the unread counter of one side only.
func (r *conversationRepository) MarkRead(ctx context.Context, id uuid.UUID, role models.Role) error {
	return conn(ctx, r.db).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update(models.UnreadColumn(role), 0).Error
}

// DecrementUnread lowers one side's counter by one, never below zero.
func (r *conversationRepository) DecrementUnread(ctx context.Context, id uuid.UUID, role models.Role) error {
	counter := models.UnreadColumn(role)
	return conn(ctx, r.db).
		Model(&models.Conversation{}).
		Where("id = ? AND "+counter+" > 0", id).
		Update(counter, gorm.Expr(counter+" - ?", 1)).Error
}
