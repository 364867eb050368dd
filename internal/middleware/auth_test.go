package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatehouse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-123456"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenVerifier_Verify(t *testing.T) {
	v := NewTokenVerifier(testSecret, "gatehouse-api", "gatehouse-client", nil)
	participantID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		token, err := v.Issue(participantID, time.Hour)
		require.NoError(t, err)

		got, err := v.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, participantID, got)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := v.Issue(participantID, -time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), token)
		require.Error(t, err)
		assert.Equal(t, models.CodeUnauthorized, err.(*models.AppError).Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenVerifier(testSecret, "someone-else", "gatehouse-client", nil)
		token, err := other.Issue(participantID, time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenVerifier("another-secret-that-is-long-enough-xx", "gatehouse-api", "gatehouse-client", nil)
		token, err := other.Issue(participantID, time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("non uuid subject", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "gatehouse-api",
			Audience:  jwt.ClaimStrings{"gatehouse-client"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestTokenVerifier_Revoked(t *testing.T) {
	mr, rdb := newRedis(t)
	v := NewTokenVerifier(testSecret, "gatehouse-api", "gatehouse-client", rdb)

	token, err := v.Issue(uuid.New(), time.Hour)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	require.NoError(t, err)
	jti := parsed.Claims.(*jwt.RegisteredClaims).ID
	require.NoError(t, mr.Set("blacklist:"+jti, "1"))

	_, err = v.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestAuthRequired(t *testing.T) {
	v := NewTokenVerifier(testSecret, "gatehouse-api", "gatehouse-client", nil)
	participantID := uuid.New()

	app := fiber.New()
	app.Get("/me", AuthRequired(v), func(c *fiber.Ctx) error {
		id, ok := ParticipantID(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(id.String())
	})

	t.Run("missing header", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid bearer", func(t *testing.T) {
		token, err := v.Issue(participantID, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestTickets_SingleUse(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	participantID := uuid.New()

	ticket, err := IssueTicket(ctx, rdb, participantID)
	require.NoError(t, err)

	got, err := RedeemTicket(ctx, rdb, ticket)
	require.NoError(t, err)
	assert.Equal(t, participantID, got)

	_, err = RedeemTicket(ctx, rdb, ticket)
	assert.Error(t, err)
}
