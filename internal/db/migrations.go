package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goran-ethernal/TzIndexor/internal/logger"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	UpSeparator       = "-- +migrate Up"
	DownSeparator     = "-- +migrate Down"
	NoLimitMigrations = 0 // indicate that there is no limit on the number of migrations to run
)

// Migration is an embedded SQL file holding a Down section followed by an Up section.
type Migration struct {
	ID  string
	SQL string
}

// RunMigrations opens the database at dbPath and applies every pending migration.
func RunMigrations(dbPath string, migrations []Migration) error {
	db, err := NewSQLiteDB(dbPath)
	if err != nil {
		return fmt.Errorf("error creating DB %w", err)
	}
	defer db.Close()

	return RunMigrationsDB(logger.GetDefaultLogger(), db, migrations)
}

// RunMigrationsDB applies every pending migration on an open database.
func RunMigrationsDB(log *logger.Logger, db *sql.DB, migrations []Migration) error {
	return RunMigrationsDBExtended(log, db, migrations, migrate.Up, NoLimitMigrations)
}

// RunMigrationsDBExtended applies at most maxMigrations in direction dir.
// Pass NoLimitMigrations to run all of them.
func RunMigrationsDBExtended(log *logger.Logger,
	db *sql.DB,
	migrations []Migration,
	dir migrate.MigrationDirection,
	maxMigrations int) error {
	source := &migrate.MemoryMigrationSource{Migrations: make([]*migrate.Migration, 0, len(migrations))}

	ids := make([]string, 0, len(migrations))
	for _, m := range migrations {
		up, down, err := splitMigration(m)
		if err != nil {
			return err
		}

		source.Migrations = append(source.Migrations, &migrate.Migration{
			Id:   m.ID,
			Up:   []string{up},
			Down: []string{down},
		})
		ids = append(ids, m.ID)
	}

	list := strings.Join(ids, ", ")
	log.Debugf("running migrations (max %d/%d): %s", maxMigrations, len(ids), list)

	n, err := migrate.ExecMax(db, "sqlite3", source, dir, maxMigrations)
	if err != nil {
		return fmt.Errorf("error executing migrations (max %d/%d) %s: %w", maxMigrations, len(ids), list, err)
	}

	log.Infof("successfully ran %d migrations from: %s", n, list)
	return nil
}

func splitMigration(m Migration) (up, down string, err error) {
	parts := strings.Split(m.SQL, UpSeparator)
	if len(parts) != 2 { //nolint:mnd
		return "", "", fmt.Errorf("migration %s must contain exactly one '%s' separator", m.ID, UpSeparator)
	}

	down = parts[0]
	if idx := strings.Index(down, DownSeparator); idx != -1 {
		down = down[idx+len(DownSeparator):]
	}

	return strings.TrimSpace(parts[1]), strings.TrimSpace(down), nil
}
