package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/goran-ethernal/TzIndexor/pkg/config"
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates a new SQLite DB with the default pragmas.
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	cfg := config.DatabaseConfig{Path: dbPath}
	cfg.ApplyDefaults()

	return NewSQLiteDBFromConfig(cfg)
}

// NewSQLiteDBFromConfig creates a new SQLite DB with the given configuration.
// Transactions take the write lock on BEGIN, so a block pass never upgrades a read lock mid-way.
func NewSQLiteDBFromConfig(cfg config.DatabaseConfig) (*sql.DB, error) {
	foreignKeys := "off"
	if cfg.EnableForeignKeys {
		foreignKeys = "on"
	}

	connStr := fmt.Sprintf(
		"file:%s?_txlock=immediate&_foreign_keys=%s&_journal_mode=%s&_busy_timeout=%d",
		cfg.Path,
		foreignKeys,
		cfg.JournalMode,
		cfg.BusyTimeout,
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)

	pragmas := []string{
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.Synchronous),
		fmt.Sprintf("PRAGMA cache_size = %d", cfg.CacheSize),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return db, nil
}

// DBTotalSize returns the combined size of the database file and its -wal and -shm companions.
// Missing files count as zero.
func DBTotalSize(dbPath string) (int64, error) {
	var total int64

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		total += info.Size()
	}

	return total, nil
}

// Vacuum rebuilds the database file, reclaiming free pages.
func Vacuum(db *sql.DB) error {
	if _, err := db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}

	VacuumRunsInc()

	return nil
}
