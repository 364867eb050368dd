package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatehouse/internal/identity"
	"gatehouse/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverStub struct {
	resolveFn func(context.Context, uuid.UUID) (identity.Participant, error)
}

func (s *resolverStub) Resolve(ctx context.Context, id uuid.UUID) (identity.Participant, error) {
	return s.resolveFn(ctx, id)
}

type conversationRepoStub struct {
	findOrCreateFn func(context.Context, uuid.UUID, uuid.UUID) (*models.Conversation, error)
	getByIDFn      func(context.Context, uuid.UUID) (*models.Conversation, error)
}

func (s *conversationRepoStub) FindOrCreate(ctx context.Context, guardID, residentID uuid.UUID) (*models.Conversation, error) {
	return s.findOrCreateFn(ctx, guardID, residentID)
}
func (s *conversationRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.getByIDFn(ctx, id)
}
func (s *conversationRepoStub) Lock(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.getByIDFn(ctx, id)
}
func (s *conversationRepoStub) ListForParticipant(context.Context, uuid.UUID, models.Role) ([]*models.Conversation, error) {
	return nil, nil
}
func (s *conversationRepoStub) AppendMessagePreview(context.Context, uuid.UUID, string, models.Role, time.Time) error {
	return nil
}
func (s *conversationRepoStub) MarkRead(context.Context, uuid.UUID, models.Role) error {
	return nil
}
func (s *conversationRepoStub) DecrementUnread(context.Context, uuid.UUID, models.Role) error {
	return nil
}

type messageRepoStub struct {
	appendFn      func(context.Context, *models.Message) error
	countUnreadFn func(context.Context, uuid.UUID) (int64, error)
}

func (s *messageRepoStub) Append(ctx context.Context, msg *models.Message) error {
	return s.appendFn(ctx, msg)
}
func (s *messageRepoStub) GetByID(context.Context, uuid.UUID) (*models.Message, error) {
	return nil, errors.New("not stubbed")
}
func (s *messageRepoStub) ListByConversation(context.Context, uuid.UUID, int, int) ([]*models.Message, int64, error) {
	return nil, 0, nil
}
func (s *messageRepoStub) MarkConversationReadFor(context.Context, uuid.UUID, uuid.UUID, time.Time) (int64, error) {
	return 0, nil
}
func (s *messageRepoStub) MarkRead(context.Context, uuid.UUID, time.Time) (int64, error) {
	return 0, nil
}
func (s *messageRepoStub) CountUnreadFor(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.countUnreadFn(ctx, id)
}

// inlineTransactor runs fn without a database.
type inlineTransactor struct{}

func (inlineTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func participants(ps ...identity.Participant) *resolverStub {
	byID := make(map[uuid.UUID]identity.Participant, len(ps))
	for _, p := range ps {
		byID[p.ParticipantID()] = p
	}
	return &resolverStub{resolveFn: func(_ context.Context, id uuid.UUID) (identity.Participant, error) {
		if p, ok := byID[id]; ok {
			return p, nil
		}
		return nil, identity.ErrNotFound
	}}
}

func TestSend_ResolverFailureIsInternal(t *testing.T) {
	resolver := &resolverStub{resolveFn: func(context.Context, uuid.UUID) (identity.Participant, error) {
		return nil, errors.New("connection refused")
	}}
	svc := NewMessagingService(resolver, &conversationRepoStub{}, &messageRepoStub{}, inlineTransactor{}, nil)

	_, err := svc.Send(context.Background(), SendInput{SenderID: uuid.New(), RecipientID: uuid.New(), Body: "hi"})
	requireCode(t, err, models.CodeInternal)
	assert.Equal(t, "Internal server error", models.PublicMessage(err))
}

func TestSend_ForeignKeyViolationIsRecipientNotFound(t *testing.T) {
	g := &models.Guard{ID: uuid.New(), Name: "Ravi"}
	r := &models.Resident{ID: uuid.New(), Name: "Meera"}
	convs := &conversationRepoStub{
		findOrCreateFn: func(context.Context, uuid.UUID, uuid.UUID) (*models.Conversation, error) {
			return nil, &pgconn.PgError{Code: "23503"}
		},
	}
	svc := NewMessagingService(participants(g, r), convs, &messageRepoStub{}, inlineTransactor{}, nil)

	_, err := svc.Send(context.Background(), SendInput{SenderID: r.ID, RecipientID: g.ID, Body: "hi"})
	requireCode(t, err, models.CodeRecipientNotFound)
}

func TestSend_PairOrientation(t *testing.T) {
	g := &models.Guard{ID: uuid.New(), Name: "Ravi"}
	r := &models.Resident{ID: uuid.New(), Name: "Meera"}
	conv := &models.Conversation{ID: uuid.New(), GuardID: g.ID, ResidentID: r.ID}

	var gotGuard, gotResident uuid.UUID
	convs := &conversationRepoStub{
		findOrCreateFn: func(_ context.Context, guardID, residentID uuid.UUID) (*models.Conversation, error) {
			gotGuard, gotResident = guardID, residentID
			return conv, nil
		},
		getByIDFn: func(context.Context, uuid.UUID) (*models.Conversation, error) { return conv, nil },
	}
	var appended *models.Message
	msgs := &messageRepoStub{appendFn: func(_ context.Context, m *models.Message) error {
		appended = m
		return nil
	}}
	svc := NewMessagingService(participants(g, r), convs, msgs, inlineTransactor{}, nil)

	res, err := svc.Send(context.Background(), SendInput{SenderID: r.ID, RecipientID: g.ID, Body: "hi", Channel: ChannelSocket})
	require.NoError(t, err)
	assert.Equal(t, g.ID, gotGuard)
	assert.Equal(t, r.ID, gotResident)
	require.NotNil(t, appended)
	assert.Equal(t, models.RoleGuard, appended.RecipientRole)
	assert.Equal(t, g.ID, appended.RecipientID)
	assert.Same(t, appended, res.Message)
}

func TestSend_AppendFailureIsInternal(t *testing.T) {
	g := &models.Guard{ID: uuid.New()}
	r := &models.Resident{ID: uuid.New()}
	conv := &models.Conversation{ID: uuid.New(), GuardID: g.ID, ResidentID: r.ID}
	convs := &conversationRepoStub{
		findOrCreateFn: func(context.Context, uuid.UUID, uuid.UUID) (*models.Conversation, error) { return conv, nil },
		getByIDFn:      func(context.Context, uuid.UUID) (*models.Conversation, error) { return conv, nil },
	}
	msgs := &messageRepoStub{appendFn: func(context.Context, *models.Message) error {
		return errors.New("disk full")
	}}
	events := &recordingPublisher{}
	svc := NewMessagingService(participants(g, r), convs, msgs, inlineTransactor{}, events)

	_, err := svc.Send(context.Background(), SendInput{SenderID: g.ID, RecipientID: r.ID, Body: "hi"})
	requireCode(t, err, models.CodeInternal)
	assert.Empty(t, events.created)
}

func TestUnreadCount_RepositoryError(t *testing.T) {
	msgs := &messageRepoStub{countUnreadFn: func(context.Context, uuid.UUID) (int64, error) {
		return 0, errors.New("timeout")
	}}
	svc := NewMessagingService(participants(), &conversationRepoStub{}, msgs, inlineTransactor{}, nil)

	_, err := svc.UnreadCount(context.Background(), uuid.New())
	requireCode(t, err, models.CodeInternal)
}
