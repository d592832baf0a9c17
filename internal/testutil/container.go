package testutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// BackendDB is a disposable PostgreSQL instance standing in for the backend
// database.
type BackendDB struct {
	*postgres.PostgresContainer
	ConnectionString string
}

// NewBackendDB starts the container and applies the schema migrations found
// at migrationsURL, e.g. "file://testdata/migrations".
func NewBackendDB(ctx context.Context, migrationsURL string) (*BackendDB, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("garden"),
		postgres.WithUsername("garden"),
		postgres.WithPassword("garden"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	db := &BackendDB{PostgresContainer: container}
	db.ConnectionString, err = container.ConnectionString(ctx, "sslmode=disable")
	if err == nil {
		err = db.migrate(migrationsURL)
	}
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return db, nil
}

func (db *BackendDB) migrate(sourceURL string) error {
	m, err := migrate.New(sourceURL, db.ConnectionString)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
