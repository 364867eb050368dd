package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"gatehouse/internal/database"
	"gatehouse/internal/identity"
	"gatehouse/internal/models"
	"gatehouse/internal/notifications"
	"gatehouse/internal/repository"
	"gatehouse/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type verifierStub struct {
	verifyFn func(context.Context, string) (uuid.UUID, error)
}

func (s *verifierStub) Verify(ctx context.Context, raw string) (uuid.UUID, error) {
	return s.verifyFn(ctx, raw)
}

// tokenIsID accepts any participant id as its own credential.
func tokenIsID() *verifierStub {
	return &verifierStub{verifyFn: func(_ context.Context, raw string) (uuid.UUID, error) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, models.NewUnauthorizedError("Invalid token")
		}
		return id, nil
	}}
}

type limiterStub struct {
	allowFn func(resource string) bool
}

func (l *limiterStub) Allow(_ context.Context, resource, _ string, _ int, _ time.Duration) (bool, error) {
	return l.allowFn(resource), nil
}

type env struct {
	db        *gorm.DB
	svc       *service.MessagingService
	gateway   *Gateway
	hub       *notifications.RoomHub
	online    *notifications.OnlineRegistry
	residents repository.ResidentRepository
	guards    repository.GuardRepository
}

func newEnv(t *testing.T, limiter RateLimiter) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	residents := repository.NewResidentRepository(db)
	guards := repository.NewGuardRepository(db)
	resolver := identity.NewResolver(nil, identity.NewResidentDirectory(residents), identity.NewGuardDirectory(guards))

	hub := notifications.NewRoomHub()
	fanout := notifications.NewFanout(hub, notifications.NewNotifier(nil))
	online := notifications.NewOnlineRegistry(nil)

	svc := service.NewMessagingService(
		resolver,
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		repository.NewTransactor(db),
		NewPublisher(fanout),
	)
	gw := NewGateway(tokenIsID(), resolver, svc, fanout, online, limiter)
	return &env{db: db, svc: svc, gateway: gw, hub: hub, online: online, residents: residents, guards: guards}
}

func (e *env) guard(t *testing.T, name string) *models.Guard {
	t.Helper()
	g := &models.Guard{Name: name, Email: uuid.NewString() + "@gate.test", Status: models.StatusApproved, IsActive: true}
	require.NoError(t, e.guards.Create(context.Background(), g))
	return g
}

func (e *env) resident(t *testing.T, name string) *models.Resident {
	t.Helper()
	r := &models.Resident{Name: name, Email: uuid.NewString() + "@gate.test", Block: "A", Floor: 3, RoomNumber: "302", Status: models.StatusApproved, IsActive: true}
	require.NoError(t, e.residents.Create(context.Background(), r))
	return r
}

// connect authenticates p with its id as credential and registers a session.
func (e *env) connect(t *testing.T, p identity.Participant) *notifications.Client {
	t.Helper()
	ctx := context.Background()
	who, err := e.gateway.Authenticate(ctx, p.ParticipantID().String())
	require.NoError(t, err)
	c := notifications.NewClient(nil, who.ParticipantID(), who.ParticipantRole(), who.DisplayName())
	require.NoError(t, e.gateway.Connect(ctx, c))
	return c
}

func (e *env) emit(t *testing.T, c *notifications.Client, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(Frame{Event: event, Data: raw})
	require.NoError(t, err)
	e.gateway.Handle(context.Background(), c, frame)
}

// received drains c and returns its frames.
func received(t *testing.T, c *notifications.Client) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return frames
			}
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func find(frames []Frame, event string) (Frame, bool) {
	for _, f := range frames {
		if f.Event == event {
			return f, true
		}
	}
	return Frame{}, false
}

func events(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}
