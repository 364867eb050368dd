package server

import (
	"net/http"
	"testing"

	"gatehouse/internal/models"
	"gatehouse/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryLists(t *testing.T) {
	ts := newTestServer(t)
	r := ts.resident(t, "Riya", "A", "302")
	ts.resident(t, "Omar", "B", "101")
	g := ts.guard(t, "Gopal")

	pending := &models.Guard{Name: "Pending", Email: "pending@gate.test", Status: models.StatusPending, IsActive: true}
	require.NoError(t, ts.db.Create(pending).Error)

	var guards []service.GuardListing
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/guard-messages/security-list", ts.token(t, r.ID), nil, &guards))
	require.Len(t, guards, 1)
	assert.Equal(t, g.ID, guards[0].ID)
	assert.Equal(t, "555-0100", guards[0].MobileNumber)

	var residents []service.ResidentListing
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/guard-messages/tenant-list", ts.token(t, g.ID), nil, &residents))
	assert.Len(t, residents, 2)

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/guard-messages/tenant-list?search=Riya", ts.token(t, g.ID), nil, &residents))
	require.Len(t, residents, 1)
	assert.Equal(t, "302", residents[0].RoomNumber)
	assert.Equal(t, 3, residents[0].Floor)
}
