package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gatehouse/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendMessages(t *testing.T, repo MessageRepository, conv *models.Conversation, n int) []*models.Message {
	t.Helper()
	out := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := &models.Message{
			ConversationID: conv.ID,
			SenderID:       conv.ResidentID,
			SenderRole:     models.RoleResident,
			RecipientID:    conv.GuardID,
			RecipientRole:  models.RoleGuard,
			Body:           fmt.Sprintf("message %d", i),
		}
		require.NoError(t, repo.Append(context.Background(), msg))
		out = append(out, msg)
	}
	return out
}

func TestMessageRepository_ListByConversation_Chronological(t *testing.T) {
	db := newTestDB(t)
	guard, resident := seedPair(t, db)
	conv, err := NewConversationRepository(db).FindOrCreate(context.Background(), guard.ID, resident.ID)
	require.NoError(t, err)

	repo := NewMessageRepository(db)
	sent := appendMessages(t, repo, conv, 5)

	page, total, err := repo.ListByConversation(context.Background(), conv.ID, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 5)
	for i := range sent {
		assert.Equal(t, sent[i].ID, page[i].ID)
	}

	// Page 1 holds the newest messages; page 2 the ones before them.
	newest, _, err := repo.ListByConversation(context.Background(), conv.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "message 3", newest[0].Body)
	assert.Equal(t, "message 4", newest[1].Body)

	older, _, err := repo.ListByConversation(context.Background(), conv.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "message 1", older[0].Body)
	assert.Equal(t, "message 2", older[1].Body)

	empty, total, err := repo.ListByConversation(context.Background(), conv.ID, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, int64(5), total)
}

func TestMessageRepository_ReadState(t *testing.T) {
	db := newTestDB(t)
	guard, resident := seedPair(t, db)
	ctx := context.Background()
	conv, err := NewConversationRepository(db).FindOrCreate(ctx, guard.ID, resident.ID)
	require.NoError(t, err)

	repo := NewMessageRepository(db)
	sent := appendMessages(t, repo, conv, 3)

	reply := &models.Message{
		ConversationID: conv.ID,
		SenderID:       guard.ID,
		SenderRole:     models.RoleGuard,
		RecipientID:    resident.ID,
		RecipientRole:  models.RoleResident,
		Body:           "on my way",
	}
	require.NoError(t, repo.Append(ctx, reply))

	count, err := repo.CountUnreadFor(ctx, guard.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	changed, err := repo.MarkRead(ctx, sent[0].ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	changed, err = repo.MarkRead(ctx, sent[0].ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)

	changed, err = repo.MarkConversationReadFor(ctx, conv.ID, guard.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = repo.MarkConversationReadFor(ctx, conv.ID, guard.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)

	count, err = repo.CountUnreadFor(ctx, guard.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The guard's reads leave the resident's message untouched.
	got, err := repo.GetByID(ctx, reply.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead)
	assert.Nil(t, got.ReadAt)

	got, err = repo.GetByID(ctx, sent[1].ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.NotNil(t, got.ReadAt)
}

func TestMessageRepository_GetByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := NewMessageRepository(db).GetByID(context.Background(), uuid.New())
	assert.True(t, IsNotFound(err))
}
