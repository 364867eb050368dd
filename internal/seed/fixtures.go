package seed

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gatehouse/internal/models"

	"gopkg.in/yaml.v3"
)

// Fixtures is a hand-written directory, usually loaded from a YAML file:
//
//	guards:
//	  - name: Gopal
//	    email: gopal@gatehouse.test
//	residents:
//	  - name: Riya
//	    email: riya@gatehouse.test
//	    block: A
//	    floor: 3
//	    room_number: "302"
type Fixtures struct {
	Guards    []GuardFixture    `yaml:"guards"`
	Residents []ResidentFixture `yaml:"residents"`
}

type GuardFixture struct {
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	MobileNumber string `yaml:"mobile_number"`
	Pending      bool   `yaml:"pending"`
}

type ResidentFixture struct {
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	MobileNumber string `yaml:"mobile_number"`
	Block        string `yaml:"block"`
	Floor        int    `yaml:"floor"`
	RoomNumber   string `yaml:"room_number"`
	Pending      bool   `yaml:"pending"`
}

// LoadFixtures reads and validates a fixtures file.
func LoadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

// ParseFixtures decodes YAML fixtures. Unknown keys are rejected so typos
// surface instead of silently seeding empty fields.
func ParseFixtures(raw []byte) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixtures) validate() error {
	seen := make(map[string]bool)
	check := func(kind string, i int, email string) error {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			return fmt.Errorf("%s #%d: email is required", kind, i+1)
		}
		if seen[email] {
			return fmt.Errorf("%s #%d: duplicate email %s", kind, i+1, email)
		}
		seen[email] = true
		return nil
	}
	for i, g := range f.Guards {
		if err := check("guard", i, g.Email); err != nil {
			return err
		}
	}
	for i, r := range f.Residents {
		if err := check("resident", i, r.Email); err != nil {
			return err
		}
		if r.Block == "" || r.RoomNumber == "" {
			return fmt.Errorf("resident #%d: block and room_number are required", i+1)
		}
	}
	return nil
}

func status(pending bool) models.ApprovalStatus {
	if pending {
		return models.StatusPending
	}
	return models.StatusApproved
}

func (g GuardFixture) model() *models.Guard {
	return &models.Guard{
		Name:         g.Name,
		Email:        strings.ToLower(strings.TrimSpace(g.Email)),
		MobileNumber: g.MobileNumber,
		Status:       status(g.Pending),
		IsActive:     true,
	}
}

func (r ResidentFixture) model() *models.Resident {
	return &models.Resident{
		Name:         r.Name,
		Email:        strings.ToLower(strings.TrimSpace(r.Email)),
		MobileNumber: r.MobileNumber,
		Block:        r.Block,
		Floor:        r.Floor,
		RoomNumber:   r.RoomNumber,
		Status:       status(r.Pending),
		IsActive:     true,
	}
}
