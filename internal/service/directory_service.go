package service

import (
	"context"

	"gatehouse/internal/models"
	"gatehouse/internal/repository"

	"github.com/google/uuid"
)

// GuardListing is an approved guard as shown to residents.
type GuardListing struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ProfilePic   string    `json:"profile_pic"`
	MobileNumber string    `json:"mobile_number"`
}

// ResidentListing is an approved resident as shown to guards.
type ResidentListing struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Block        string    `json:"block"`
	Floor        int       `json:"floor"`
	RoomNumber   string    `json:"room_number"`
	ProfilePic   string    `json:"profile_pic"`
	MobileNumber string    `json:"mobile_number"`
}

// DirectoryService lists the people a participant can start a conversation with.
type DirectoryService struct {
	residents repository.ResidentRepository
	guards    repository.GuardRepository
}

// NewDirectoryService returns a new DirectoryService.
func NewDirectoryService(residents repository.ResidentRepository, guards repository.GuardRepository) *DirectoryService {
	return &DirectoryService{residents: residents, guards: guards}
}

// ListGuards returns active, approved guards ordered by name.
func (s *DirectoryService) ListGuards(ctx context.Context) ([]GuardListing, error) {
	guards, err := s.guards.ListApproved(ctx)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make([]GuardListing, 0, len(guards))
	for _, g := range guards {
		out = append(out, GuardListing{
			ID:           g.ID,
			Name:         g.DisplayName(),
			ProfilePic:   g.ProfilePic,
			MobileNumber: g.MobileNumber,
		})
	}
	return out, nil
}

// ListResidents returns active, approved residents ordered by location,
// optionally filtered by name, block or room number.
func (s *DirectoryService) ListResidents(ctx context.Context, search string) ([]ResidentListing, error) {
	residents, err := s.residents.ListApproved(ctx, search)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make([]ResidentListing, 0, len(residents))
	for _, r := range residents {
		out = append(out, ResidentListing{
			ID:           r.ID,
			Name:         r.DisplayName(),
			Block:        r.Block,
			Floor:        r.Floor,
			RoomNumber:   r.RoomNumber,
			ProfilePic:   r.ProfilePic,
			MobileNumber: r.MobileNumber,
		})
	}
	return out, nil
}
