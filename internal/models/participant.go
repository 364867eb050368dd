// Package models defines the persisted entities and application errors.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies which directory a participant belongs to.
type Role string

const (
	RoleResident Role = "resident"
	RoleGuard    Role = "guard"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleResident || r == RoleGuard
}

// Counterpart returns the role on the other side of a conversation.
func (r Role) Counterpart() Role {
	if r == RoleGuard {
		return RoleResident
	}
	return RoleGuard
}

// DefaultDisplayName is used when a participant record has no name.
func (r Role) DefaultDisplayName() string {
	if r == RoleGuard {
		return "Security Guard"
	}
	return "Tenant"
}

// ApprovalStatus is the onboarding state of a directory record.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

func newID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// Resident is a tenant of the building.
type Resident struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"size:120" json:"name"`
	Email        string         `gorm:"size:255;uniqueIndex" json:"email"`
	MobileNumber string         `gorm:"size:32" json:"mobile_number"`
	ProfilePic   string         `json:"profile_pic,omitempty"`
	Block        string         `gorm:"size:16;index:idx_resident_location,priority:1" json:"block"`
	Floor        int            `gorm:"index:idx_resident_location,priority:2" json:"floor"`
	RoomNumber   string         `gorm:"size:16;index:idx_resident_location,priority:3" json:"room_number"`
	Status       ApprovalStatus `gorm:"size:16;not null;default:pending" json:"status"`
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// BeforeCreate assigns a time-ordered id.
func (r *Resident) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = newID()
	}
	return nil
}

func (r *Resident) ParticipantID() uuid.UUID { return r.ID }
func (r *Resident) ParticipantRole() Role { return RoleResident }

func (r *Resident) DisplayName() string {
	if r.Name == "" {
		return RoleResident.DefaultDisplayName()
	}
	return r.Name
}

// Guard is a member of building security staff.
type Guard struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"size:120" json:"name"`
	Email        string         `gorm:"size:255;uniqueIndex" json:"email"`
	MobileNumber string         `gorm:"size:32" json:"mobile_number"`
	ProfilePic   string         `json:"profile_pic,omitempty"`
	Status       ApprovalStatus `gorm:"size:16;not null;default:pending" json:"status"`
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// BeforeCreate assigns a time-ordered id.
func (g *Guard) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = newID()
	}
	return nil
}

func (g *Guard) ParticipantID() uuid.UUID { return g.ID }
func (g *Guard) ParticipantRole() Role { return RoleGuard }

func (g *Guard) DisplayName() string {
	if g.Name == "" {
		return RoleGuard.DefaultDisplayName()
	}
	return g.Name
}
