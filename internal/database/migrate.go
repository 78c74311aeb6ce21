package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies all up migrations for driver on a dedicated connection
// (closing the migrator closes its connection). An empty migrationsPath uses the
// migrations embedded in the binary; otherwise the directory must hold files for driver.
func RunMigrations(driver, dataSource, migrationsPath string) error {
	db, err := Open(driver, dataSource)
	if err != nil {
		return err
	}

	var m *migrate.Migrate
	switch driver {
	case DriverSQLite:
		instance, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
		if err != nil {
			_ = db.Close()
			return err
		}
		m, err = newMigrator(driver, migrationsPath, instance)
		if err != nil {
			_ = db.Close()
			return err
		}
	case DriverMySQL:
		instance, err := migratemysql.WithInstance(db, &migratemysql.Config{})
		if err != nil {
			_ = db.Close()
			return err
		}
		m, err = newMigrator(driver, migrationsPath, instance)
		if err != nil {
			_ = db.Close()
			return err
		}
	default:
		_ = db.Close()
		return fmt.Errorf("database: unsupported driver %q", driver)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func newMigrator(driver, migrationsPath string, instance migratedb.Driver) (*migrate.Migrate, error) {
	if migrationsPath != "" {
		return migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsPath), driver, instance)
	}
	src, err := embeddedSource(driver)
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, driver, instance)
}

func embeddedSource(driver string) (source.Driver, error) {
	return iofs.New(migrationsFS, "migrations/"+driver)
}
