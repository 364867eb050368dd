package repository

import (
	"context"
	"fmt"
	"testing"

	"gatehouse/internal/database"
	"gatehouse/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory SQLite database with the full schema.
// A single connection keeps every goroutine on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func seedPair(t *testing.T, db *gorm.DB) (*models.Guard, *models.Resident) {
	t.Helper()
	ctx := context.Background()

	guard := &models.Guard{Name: "Ravi", Email: uuid.NewString() + "@gate.test", Status: models.StatusApproved, IsActive: true}
	require.NoError(t, NewGuardRepository(db).Create(ctx, guard))

	resident := &models.Resident{Name: "Meera", Email: uuid.NewString() + "@gate.test", Block: "A", Floor: 3, RoomNumber: "302", Status: models.StatusApproved, IsActive: true}
	require.NoError(t, NewResidentRepository(db).Create(ctx, resident))

	return guard, resident
}
