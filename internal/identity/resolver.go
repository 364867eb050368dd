// Package identity resolves a bare participant id to a resident or guard.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gatehouse/internal/cache"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no directory knows the id.
var ErrNotFound = errors.New("participant not found")

// Participant is the role-agnostic view of a resident or guard.
type Participant interface {
	ParticipantID() uuid.UUID
	ParticipantRole() models.Role
	DisplayName() string
}

// Directory looks participants up in one role's store. Lookup returns
// ErrNotFound when the id is not in this directory.
type Directory interface {
	Role() models.Role
	Lookup(ctx context.Context, id uuid.UUID) (Participant, error)
}

// Resolver consults directories in a fixed priority order and returns the
// first match. It never guesses a role for an unknown id.
type Resolver struct {
	directories []Directory
	rdb         *redis.Client
}

// NewResolver creates a resolver over directories in priority order. rdb may be
// nil to disable caching.
func NewResolver(rdb *redis.Client, directories ...Directory) *Resolver {
	return &Resolver{directories: directories, rdb: rdb}
}

// Resolve returns the resident or guard record with the given id. Only the
// id's role is cached, so a hit costs one lookup in the matching directory
// instead of a walk down the priority list.
func (r *Resolver) Resolve(ctx context.Context, id uuid.UUID) (Participant, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	key := cache.ParticipantKey(id)

	var (
		hint  roleHint
		fresh Participant
	)
	err := cache.Aside(ctx, r.rdb, key, &hint, cache.ParticipantTTL, func() error {
		p, err := r.lookup(ctx, id)
		if err != nil {
			return err
		}
		fresh, hint = p, roleHint{ID: id, Role: p.ParticipantRole()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		return fresh, nil
	}

	if dir := r.directoryFor(hint.Role); dir != nil && hint.ID == id {
		p, err := r.lookupIn(ctx, dir, id)
		if !errors.Is(err, ErrNotFound) {
			return p, err
		}
	}
	middleware.Logger.WarnContext(ctx, "discarding stale cached participant role", slog.String("participant_id", id.String()))
	cache.Invalidate(ctx, r.rdb, key)

	p, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = cache.SetJSON(ctx, r.rdb, key, roleHint{ID: id, Role: p.ParticipantRole()}, cache.ParticipantTTL)
	return p, nil
}

func (r *Resolver) lookup(ctx context.Context, id uuid.UUID) (Participant, error) {
	for _, dir := range r.directories {
		p, err := r.lookupIn(ctx, dir, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (r *Resolver) lookupIn(ctx context.Context, dir Directory, id uuid.UUID) (Participant, error) {
	p, err := dir.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ParticipantRole() != dir.Role() {
		return nil, fmt.Errorf("%s directory returned a %s for %s", dir.Role(), p.ParticipantRole(), id)
	}
	return p, nil
}

func (r *Resolver) directoryFor(role models.Role) Directory {
	for _, dir := range r.directories {
		if dir.Role() == role {
			return dir
		}
	}
	return nil
}

// roleHint is the cached routing entry for a participant id.
type roleHint struct {
	ID   uuid.UUID   `json:"id"`
	Role models.Role `json:"role"`
}
