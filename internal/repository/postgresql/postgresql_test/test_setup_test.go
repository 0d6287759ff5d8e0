package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup wraps the integration database. Tests using it are
// skipped unless TEST_DATABASE_URL is set.
type TestDatabaseSetup struct {
	DB *database.DB
}

var tables = []string{
	"attendance_correction_logs",
	"attendances",
	"qr_codes",
	"user_devices",
	"shift_assignments",
	"shifts",
	"attendance_settings",
}

// NewTestDatabase connects, applies the schema and empties every table.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration test")
	}

	db, err := database.NewPostgreSQLDB(dsn)
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(db.Close)

	setup := &TestDatabaseSetup{DB: db}
	require.NoError(t, setup.migrate(context.Background()))
	require.NoError(t, setup.TruncateAllTables(context.Background()))
	return setup
}

func (s *TestDatabaseSetup) migrate(ctx context.Context) error {
	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "..", "migrations", "0001_attendance_engine.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := s.DB.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// TruncateAllTables removes all rows from the engine's tables.
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// InsertDailyQRCode issues an active daily code and returns its id.
func (s *TestDatabaseSetup) InsertDailyQRCode(t *testing.T, code, location, validOn string) string {
	t.Helper()
	var id string
	err := s.DB.QueryRow(context.Background(), `
		INSERT INTO qr_codes (unique_code, type, related_location_name, valid_on_date, is_active)
		VALUES ($1, 'daily', $2, $3::date, TRUE)
		RETURNING id
	`, code, location, validOn).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertDevice registers a device for personID and returns its id.
func (s *TestDatabaseSetup) InsertDevice(t *testing.T, personID, identifier, status string) string {
	t.Helper()
	var id string
	err := s.DB.QueryRow(context.Background(), `
		INSERT INTO user_devices (person_id, device_identifier, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, personID, identifier, status).Scan(&id)
	require.NoError(t, err)
	return id
}
