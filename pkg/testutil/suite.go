package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/attendtrack/attendance-backend/pkg/database"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

var (
	globalContainer *PostgresContainer
	globalDB        *database.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite shares one migrated PostgreSQL container across a package's tests.
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        panic(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (once) the shared container and applies the schema migrations.
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		raw, err := globalContainer.Connect(ctx)
		if err != nil {
			containerErr = err
			return
		}
		globalDB = database.Wrap(raw, logger.Nop())
		containerErr = globalDB.Migrate(ctx)
	})
	if containerErr != nil {
		return nil, containerErr
	}

	return &IntegrationSuite{
		Container: globalContainer,
		DB:        globalDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    logger.Nop(),
	}, nil
}

// Reset empties every table so each test starts from a clean database.
func (s *IntegrationSuite) Reset(t *testing.T, ctx context.Context) {
	t.Helper()
	if _, err := s.DB.ExecContext(ctx, `TRUNCATE attendance_records, users CASCADE`); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
}

// TerminateContainer terminates the shared container. Call it from TestMain after m.Run.
func TerminateContainer(ctx context.Context) {
	if globalDB != nil {
		globalDB.Close()
	}
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
