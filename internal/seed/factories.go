// Package seed creates directory and conversation data for development and
// testing. It is not used by the server at runtime.
package seed

import (
	"fmt"
	"strings"

	"gatehouse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	blocks = []string{"A", "B", "C", "D"}

	residentOpeners = []string{
		"Is there a parcel for me at the gate?",
		"A visitor is coming at 6pm, please let them in.",
		"The corridor light on my floor is out.",
		"Can someone check the parking slot next to mine?",
		"I hear loud noise from the terrace.",
		"Water is leaking near the lift.",
	}

	guardReplies = []string{
		"On my way",
		"Noted, I will inform the front desk.",
		"Checked, everything is fine now.",
		"Your parcel is at the security cabin.",
		"Visitor entry logged.",
		"Maintenance has been called.",
	}
)

// Factory builds directory records with realistic fake data. A fixed seed
// makes its output reproducible.
type Factory struct {
	faker *gofakeit.Faker
	seq   int
}

// NewFactory returns a factory. seed 0 picks a random seed.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Guard builds an approved, active guard. Overrides run before it is returned.
func (f *Factory) Guard(overrides ...func(*models.Guard)) *models.Guard {
	f.seq++
	g := &models.Guard{
		Name:         f.faker.Name(),
		Email:        f.email("guard"),
		MobileNumber: f.faker.Phone(),
		ProfilePic:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Status:       models.StatusApproved,
		IsActive:     true,
	}
	for _, override := range overrides {
		override(g)
	}
	return g
}

// Resident builds an approved, active resident with a unit address.
func (f *Factory) Resident(overrides ...func(*models.Resident)) *models.Resident {
	f.seq++
	floor := f.faker.Number(1, 12)
	r := &models.Resident{
		Name:         f.faker.Name(),
		Email:        f.email("resident"),
		MobileNumber: f.faker.Phone(),
		Block:        blocks[f.faker.Number(0, len(blocks)-1)],
		Floor:        floor,
		RoomNumber:   fmt.Sprintf("%d%02d", floor, f.faker.Number(1, 8)),
		Status:       models.StatusApproved,
		IsActive:     true,
	}
	for _, override := range overrides {
		override(r)
	}
	return r
}

// ResidentMessage returns a plausible resident-to-guard message.
func (f *Factory) ResidentMessage() string {
	return residentOpeners[f.faker.Number(0, len(residentOpeners)-1)]
}

// GuardMessage returns a plausible guard-to-resident reply.
func (f *Factory) GuardMessage() string {
	return guardReplies[f.faker.Number(0, len(guardReplies)-1)]
}

// email keeps addresses unique within one factory even if the faker repeats.
func (f *Factory) email(kind string) string {
	local := strings.ToLower(f.faker.Username())
	return fmt.Sprintf("%s.%s%d@gatehouse.test", kind, local, f.seq)
}
