package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/goran-ethernal/TzIndexor/internal/db"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
)

//go:embed 001_state_protocols.sql
var mig001 string

//go:embed 002_blocks_accounts.sql
var mig002 string

//go:embed 003_operations.sql
var mig003 string

// All returns the ledger schema migrations in order.
func All() []db.Migration {
	return []db.Migration{
		{ID: "001_state_protocols.sql", SQL: mig001},
		{ID: "002_blocks_accounts.sql", SQL: mig002},
		{ID: "003_operations.sql", SQL: mig003},
	}
}

// RunMigrations brings the ledger schema at dbPath up to date.
func RunMigrations(dbPath string) error {
	return db.RunMigrations(dbPath, All())
}

// RunMigrationsDB brings the ledger schema of an open database up to date.
func RunMigrationsDB(log *logger.Logger, sqlDB *sql.DB) error {
	return db.RunMigrationsDB(log, sqlDB, All())
}
