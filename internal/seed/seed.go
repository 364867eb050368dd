package seed

import (
	"context"
	"fmt"
	"log/slog"

	"gatehouse/internal/identity"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/repository"
	"gatehouse/internal/service"

	"gorm.io/gorm"
)

// Directory is the set of participants a seeding run created.
type Directory struct {
	Guards    []*models.Guard
	Residents []*models.Resident
}

// Seeder writes seed data. Conversations go through the messaging service so
// previews and unread counters match what real traffic would produce.
type Seeder struct {
	db        *gorm.DB
	factory   *Factory
	residents repository.ResidentRepository
	guards    repository.GuardRepository
	messaging *service.MessagingService
}

// NewSeeder binds a seeder to db.
func NewSeeder(db *gorm.DB, factory *Factory) *Seeder {
	residents := repository.NewResidentRepository(db)
	guards := repository.NewGuardRepository(db)
	resolver := identity.NewResolver(nil,
		identity.NewResidentDirectory(residents),
		identity.NewGuardDirectory(guards),
	)
	return &Seeder{
		db:        db,
		factory:   factory,
		residents: residents,
		guards:    guards,
		messaging: service.NewMessagingService(
			resolver,
			repository.NewConversationRepository(db),
			repository.NewMessageRepository(db),
			repository.NewTransactor(db),
			nil,
		),
	}
}

// ClearAll deletes every message, conversation and directory record.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Message{}, &models.Conversation{}, &models.Resident{}, &models.Guard{}} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "cleared seed tables")
	return nil
}

// ApplyFixtures creates every record described by f.
func (s *Seeder) ApplyFixtures(ctx context.Context, f *Fixtures) (*Directory, error) {
	dir := &Directory{}
	for _, gf := range f.Guards {
		g := gf.model()
		if err := s.guards.Create(ctx, g); err != nil {
			return nil, fmt.Errorf("create guard %s: %w", g.Email, err)
		}
		dir.Guards = append(dir.Guards, g)
	}
	for _, rf := range f.Residents {
		r := rf.model()
		if err := s.residents.Create(ctx, r); err != nil {
			return nil, fmt.Errorf("create resident %s: %w", r.Email, err)
		}
		dir.Residents = append(dir.Residents, r)
	}
	return dir, nil
}

// SeedDirectory creates numGuards guards and numResidents residents from the factory.
func (s *Seeder) SeedDirectory(ctx context.Context, numGuards, numResidents int) (*Directory, error) {
	dir := &Directory{}
	for i := 0; i < numGuards; i++ {
		g := s.factory.Guard()
		if err := s.guards.Create(ctx, g); err != nil {
			return nil, fmt.Errorf("create guard: %w", err)
		}
		dir.Guards = append(dir.Guards, g)
	}
	for i := 0; i < numResidents; i++ {
		r := s.factory.Resident()
		if err := s.residents.Create(ctx, r); err != nil {
			return nil, fmt.Errorf("create resident: %w", err)
		}
		dir.Residents = append(dir.Residents, r)
	}

	middleware.Logger.InfoContext(ctx, "seeded directory",
		slog.Int("guards", len(dir.Guards)), slog.Int("residents", len(dir.Residents)))
	return dir, nil
}

// SeedConversations opens up to n resident/guard threads. Each gets a resident
// question and a guard reply, which leaves one unread message on each side.
// It returns the number of messages sent.
func (s *Seeder) SeedConversations(ctx context.Context, dir *Directory, n int) (int, error) {
	if len(dir.Guards) == 0 || len(dir.Residents) == 0 {
		return 0, nil
	}
	if n > len(dir.Residents) {
		n = len(dir.Residents)
	}

	sent := 0
	for i := 0; i < n; i++ {
		r := dir.Residents[i]
		g := dir.Guards[i%len(dir.Guards)]

		first, err := s.messaging.Send(ctx, service.SendInput{
			SenderID:    r.ID,
			RecipientID: g.ID,
			Body:        s.factory.ResidentMessage(),
			Channel:     "seed",
		})
		if err != nil {
			return sent, fmt.Errorf("seed message from %s: %w", r.Email, err)
		}
		sent++

		if _, err := s.messaging.Send(ctx, service.SendInput{
			SenderID:       g.ID,
			ConversationID: first.Conversation.ID,
			Body:           s.factory.GuardMessage(),
			Channel:        "seed",
		}); err != nil {
			return sent, fmt.Errorf("seed reply from %s: %w", g.Email, err)
		}
		sent++
	}

	middleware.Logger.InfoContext(ctx, "seeded conversations",
		slog.Int("conversations", n), slog.Int("messages", sent))
	return sent, nil
}
