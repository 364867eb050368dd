package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"gatehouse/internal/database"
	"gatehouse/internal/identity"
	"gatehouse/internal/models"
	"gatehouse/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu       sync.Mutex
	created  []*SendResult
	receipts []*ReadReceipt
	err      error
}

func (p *recordingPublisher) MessageCreated(_ context.Context, result *SendResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, result)
	return p.err
}

func (p *recordingPublisher) ConversationRead(_ context.Context, receipt *ReadReceipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts = append(p.receipts, receipt)
	return p.err
}

type fixture struct {
	db        *gorm.DB
	svc       *MessagingService
	events    *recordingPublisher
	residents repository.ResidentRepository
	guards    repository.GuardRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	residents := repository.NewResidentRepository(db)
	guards := repository.NewGuardRepository(db)
	resolver := identity.NewResolver(nil,
		identity.NewResidentDirectory(residents),
		identity.NewGuardDirectory(guards),
	)
	events := &recordingPublisher{}
	svc := NewMessagingService(
		resolver,
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		repository.NewTransactor(db),
		events,
	)
	return &fixture{db: db, svc: svc, events: events, residents: residents, guards: guards}
}

func (f *fixture) guard(t *testing.T, name string) *models.Guard {
	t.Helper()
	g := &models.Guard{Name: name, Email: uuid.NewString() + "@gate.test", Status: models.StatusApproved, IsActive: true}
	require.NoError(t, f.guards.Create(context.Background(), g))
	return g
}

func (f *fixture) resident(t *testing.T, name, block string, floor int, room string) *models.Resident {
	t.Helper()
	r := &models.Resident{
		Name:       name,
		Email:      uuid.NewString() + "@gate.test",
		Block:      block,
		Floor:      floor,
		RoomNumber: room,
		Status:     models.StatusApproved,
		IsActive:   true,
	}
	require.NoError(t, f.residents.Create(context.Background(), r))
	return r
}

func (f *fixture) conversation(t *testing.T, id uuid.UUID) *models.Conversation {
	t.Helper()
	var conv models.Conversation
	require.NoError(t, f.db.First(&conv, "id = ?", id).Error)
	return &conv
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), err.Error())
}
