package repository

import (
	"context"
	"strings"

	"gatehouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResidentRepository reads and writes the resident directory.
type ResidentRepository interface {
	Create(ctx context.Context, resident *models.Resident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Resident, error)
	ListApproved(ctx context.Context, search string) ([]*models.Resident, error)
}

type residentRepository struct {
	db *gorm.DB
}

// NewResidentRepository creates a new resident repository
func NewResidentRepository(db *gorm.DB) ResidentRepository {
	return &residentRepository{db: db}
}

func (r *residentRepository) Create(ctx context.Context, resident *models.Resident) error {
	return conn(ctx, r.db).Create(resident).Error
}

func (r *residentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Resident, error) {
	var resident models.Resident
	if err := conn(ctx, r.db).Where("id = ?", id).First(&resident).Error; err != nil {
		return nil, err
	}
	return &resident, nil
}

// ListApproved returns active, approved residents ordered by location. A
// non-empty search matches name, block or room number case-insensitively.
func (r *residentRepository) ListApproved(ctx context.Context, search string) ([]*models.Resident, error) {
	query := conn(ctx, r.db).
		Where("is_active = ? AND status = ?", true, models.StatusApproved)

	if term := strings.TrimSpace(search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		query = query.Where(
			`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(block) LIKE ? ESCAPE '\' OR LOWER(room_number) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern,
		)
	}

	var residents []*models.Resident
	err := query.Order("block ASC, floor ASC, room_number ASC").Find(&residents).Error
	return residents, err
}

// GuardRepository reads and writes the security guard directory.
type GuardRepository interface {
	Create(ctx context.Context, guard *models.Guard) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Guard, error)
	ListApproved(ctx context.Context) ([]*models.Guard, error)
}

type guardRepository struct {
	db *gorm.DB
}

// NewGuardRepository creates a new guard repository
func NewGuardRepository(db *gorm.DB) GuardRepository {
	return &guardRepository{db: db}
}

func (r *guardRepository) Create(ctx context.Context, guard *models.Guard) error {
	return conn(ctx, r.db).Create(guard).Error
}

func (r *guardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Guard, error) {
	var guard models.Guard
	if err := conn(ctx, r.db).Where("id = ?", id).First(&guard).Error; err != nil {
		return nil, err
	}
	return &guard, nil
}

func (r *guardRepository) ListApproved(ctx context.Context) ([]*models.Guard, error) {
	var guards []*models.Guard
	err := conn(ctx, r.db).
		Where("is_active = ? AND status = ?", true, models.StatusApproved).
		Order("name ASC").
		Find(&guards).Error
	return guards, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
