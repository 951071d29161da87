package inventory

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

//MigrateUp applies all pending schema migrations for the store's driver.
//Returns nil when the schema is already current.
func (s *Store) MigrateUp() error {
	m, release, err := s.newMigrate()
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

//MigrateVersion returns the applied schema version, 0 when none was applied.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, release, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	defer release()

	version, dirty, err = m.Version()
	if err != nil && errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

//migrationDB returns the handle migrations run on and whether the caller owns it.
//postgres.WithInstance pins a connection until the driver is closed, and closing
//the driver closes its *sql.DB, so postgres migrations get their own handle.
//sqlite shares the store's handle: a second ":memory:" handle would be another database.
func (s *Store) migrationDB() (*sql.DB, bool, error) {
	if s.driver != DriverPostgres {
		return s.DB, false, nil
	}
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, false, err
	}
	db.SetMaxOpenConns(1)
	return db, true, nil
}

//newMigrate builds a migrate instance; release must be called once it is no longer used.
func (s *Store) newMigrate() (m *migrate.Migrate, release func(), err error) {
	src, err := iofs.New(migrationsFS, "migrations/"+s.driver)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	db, owned, err := s.migrationDB()
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("failed to open %s migration database: %w", s.driver, err)
	}

	var driver database.Driver
	switch s.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", s.driver)
	}
	if err != nil {
		src.Close()
		if owned {
			db.Close()
		}
		return nil, nil, fmt.Errorf("failed to create %s migration driver: %w", s.driver, err)
	}

	m, err = migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		src.Close()
		if owned {
			driver.Close()
		}
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	release = func() { src.Close() }
	if owned {
		//closes the source, the pinned conn and the migration handle
		release = func() {
			if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
				log.Printf("[migrate] close: source %v, database %v", srcErr, dbErr)
			}
		}
	}
	return m, release, nil
}

//migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
