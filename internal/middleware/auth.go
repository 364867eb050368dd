package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"gatehouse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LocalParticipantID is the Fiber locals key holding the authenticated participant id.
const LocalParticipantID = "participantID"

const (
	wsTicketPrefix = "ws_ticket:"
	wsTicketTTL    = 30 * time.Second
	revokedPrefix  = "blacklist:"
)

// TokenVerifier validates HMAC-signed bearer tokens whose subject is a participant UUID.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
	rdb      *redis.Client
}

// NewTokenVerifier creates a verifier. rdb may be nil, in which case revocation is not checked.
func NewTokenVerifier(secret, issuer, audience string, rdb *redis.Client) *TokenVerifier {
	return &TokenVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		rdb:      rdb,
	}
}

// Issue signs a token for the participant. Used by tooling and tests; login is handled elsewhere.
func (v *TokenVerifier) Issue(participantID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   participantID.String(),
		Issuer:    v.issuer,
		Audience:  jwt.ClaimStrings{v.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses the raw token and returns the participant id from its subject claim.
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, models.NewUnauthorizedError("Authorization required")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	participantID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, models.NewUnauthorizedError("Invalid subject claim")
	}

	if claims.ID != "" && v.rdb != nil {
		revoked, err := v.rdb.Exists(ctx, revokedPrefix+claims.ID).Result()
		if err == nil && revoked > 0 {
			return uuid.Nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}

	return participantID, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// AuthRequired rejects requests without a valid bearer token and stores the
// participant id in locals and in the request context.
func AuthRequired(v *TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		participantID, err := v.Verify(c.UserContext(), BearerToken(c))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		c.Locals(LocalParticipantID, participantID)
		c.SetUserContext(WithParticipant(c.UserContext(), participantID))
		return c.Next()
	}
}

// ParticipantID returns the authenticated participant id stored by AuthRequired.
func ParticipantID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(LocalParticipantID).(uuid.UUID)
	return id, ok
}

// IssueTicket stores a short-lived single-use WebSocket ticket for the participant.
func IssueTicket(ctx context.Context, rdb *redis.Client, participantID uuid.UUID) (string, error) {
	if rdb == nil {
		return "", errors.New("redis client is nil")
	}
	ticket := uuid.NewString()
	if err := rdb.Set(ctx, wsTicketPrefix+ticket, participantID.String(), wsTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// RedeemTicket consumes a ticket and returns the participant it was issued for.
func RedeemTicket(ctx context.Context, rdb *redis.Client, ticket string) (uuid.UUID, error) {
	if rdb == nil || ticket == "" {
		return uuid.Nil, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	value, err := rdb.GetDel(ctx, wsTicketPrefix+ticket).Result()
	if err != nil {
		return uuid.Nil, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	participantID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	return participantID, nil
}
