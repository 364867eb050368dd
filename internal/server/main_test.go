package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	*Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWTSecret:   "test-secret-that-is-long-enough-for-hs256",
		JWTIssuer:   "gatehouse-api",
		JWTAudience: "gatehouse-client",
		Env:         "test",
	}
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testServer{Server: s, app: s.App(), db: db, mr: mr}
}

func (ts *testServer) guard(t *testing.T, name string) *models.Guard {
	t.Helper()
	g := &models.Guard{Name: name, Email: uuid.NewString() + "@gate.test", MobileNumber: "555-0100", Status: models.StatusApproved, IsActive: true}
	require.NoError(t, ts.db.Create(g).Error)
	return g
}

func (ts *testServer) resident(t *testing.T, name, block, room string) *models.Resident {
	t.Helper()
	r := &models.Resident{Name: name, Email: uuid.NewString() + "@gate.test", Block: block, Floor: 3, RoomNumber: room, Status: models.StatusApproved, IsActive: true}
	require.NoError(t, ts.db.Create(r).Error)
	return r
}

func (ts *testServer) token(t *testing.T, id uuid.UUID) string {
	t.Helper()
	tok, err := ts.verifier.Issue(id, time.Hour)
	require.NoError(t, err)
	return tok
}

// call performs a request and decodes the JSON response into out when out is non-nil.
func (ts *testServer) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func errorCode(t *testing.T, ts *testServer, method, path, token string, body any) (int, string) {
	t.Helper()
	var er models.ErrorResponse
	status := ts.call(t, method, path, token, body, &er)
	return status, er.Code
}
