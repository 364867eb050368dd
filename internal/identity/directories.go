package identity

import (
	"context"

	"gatehouse/internal/models"
	"gatehouse/internal/repository"

	"github.com/google/uuid"
)

// ResidentDirectory adapts the resident repository to Directory.
type ResidentDirectory struct {
	repo repository.ResidentRepository
}

func NewResidentDirectory(repo repository.ResidentRepository) *ResidentDirectory {
	return &ResidentDirectory{repo: repo}
}

func (d *ResidentDirectory) Role() models.Role { return models.RoleResident }

func (d *ResidentDirectory) Lookup(ctx context.Context, id uuid.UUID) (Participant, error) {
	resident, err := d.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return resident, nil
}

// GuardDirectory adapts the guard repository to Directory.
type GuardDirectory struct {
	repo repository.GuardRepository
}

func NewGuardDirectory(repo repository.GuardRepository) *GuardDirectory {
	return &GuardDirectory{repo: repo}
}

func (d *GuardDirectory) Role() models.Role { return models.RoleGuard }

func (d *GuardDirectory) Lookup(ctx context.Context, id uuid.UUID) (Participant, error) {
	guard, err := d.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return guard, nil
}
