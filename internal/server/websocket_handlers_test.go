package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gatehouse/internal/identity"
	"gatehouse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handshakeApp mounts the pre-upgrade authentication in front of a plain
// handler so credentials can be checked without hijacking the connection.
func handshakeApp(ts *testServer) *fiber.App {
	app := fiber.New()
	app.Get("/api/ws", ts.WebSocketUpgrade(), func(c *fiber.Ctx) error {
		p := c.Locals(localParticipant).(identity.Participant)
		return c.SendString(string(p.ParticipantRole()) + ":" + p.ParticipantID().String())
	})
	return app
}

func upgradeRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestWebSocketUpgrade_Credentials(t *testing.T) {
	ts := newTestServer(t)
	g := ts.guard(t, "Gopal")
	app := handshakeApp(ts)

	var ticket WSTicketResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/api/ws/ticket", ts.token(t, g.ID), nil, &ticket))
	require.NotEmpty(t, ticket.Ticket)
	assert.Equal(t, 30, ticket.ExpiresIn)

	t.Run("ticket is single use", func(t *testing.T) {
		resp, err := app.Test(upgradeRequest("/api/ws?ticket="+ticket.Ticket), -1)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "guard:"+g.ID.String(), string(body))

		resp, err = app.Test(upgradeRequest("/api/ws?ticket="+ticket.Ticket), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := upgradeRequest("/api/ws")
		req.Header.Set("Authorization", "Bearer "+ts.token(t, g.ID))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("token query", func(t *testing.T) {
		resp, err := app.Test(upgradeRequest("/api/ws?token="+ts.token(t, g.ID)), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejections", func(t *testing.T) {
		r := ts.resident(t, "Riya", "A", "302")
		require.NoError(t, ts.db.Delete(&models.Resident{}, "id = ?", r.ID).Error)

		for name, target := range map[string]string{
			"missing":        "/api/ws",
			"garbage token":  "/api/ws?token=abc",
			"unknown ticket": "/api/ws?ticket=abc",
			"deleted":        "/api/ws?token=" + ts.token(t, r.ID),
		} {
			resp, err := app.Test(upgradeRequest(target), -1)
			require.NoError(t, err, name)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
		}
	})
}

func TestWebSocketUpgrade_RequiresUpgrade(t *testing.T) {
	ts := newTestServer(t)
	g := ts.guard(t, "Gopal")

	req := httptest.NewRequest(http.MethodGet, "/api/ws?token="+ts.token(t, g.ID), nil)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
