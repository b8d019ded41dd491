package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/russross/meddler"
)

type txOperation func(tx *sql.Tx) error

// TxWriter stages inserts, updates and deletes and runs them in one SQLite transaction.
// Nothing touches the database until Execute.
type TxWriter struct {
	db         *sql.DB
	log        *logger.Logger
	operations []txOperation
}

// Insert stages an insert of row, primary key included.
func (tw *TxWriter) Insert(table string, row any) *TxWriter {
	tw.operations = append(tw.operations, func(tx *sql.Tx) error {
		return insert(tx, "INSERT", table, row)
	})
	return tw
}

// Upsert stages an insert that replaces any row with the same key.
func (tw *TxWriter) Upsert(table string, row any) *TxWriter {
	tw.operations = append(tw.operations, func(tx *sql.Tx) error {
		return insert(tx, "INSERT OR REPLACE", table, row)
	})
	return tw
}

// Update stages an update of every column of row, matched by primary key.
func (tw *TxWriter) Update(table string, row any) *TxWriter {
	tw.operations = append(tw.operations, func(tx *sql.Tx) error {
		pkName, pk, err := meddler.PrimaryKey(row)
		if err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}

		columns, err := meddler.Columns(row, false)
		if err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}
		values, err := meddler.Values(row, false)
		if err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}

		sets := make([]string, len(columns))
		for i, c := range columns {
			sets[i] = quote(c) + " = ?"
		}

		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(table), strings.Join(sets, ", "), quote(pkName))
		res, err := tx.Exec(query, append(values, pk)...)
		if err != nil {
			return fmt.Errorf("update %s %d: %w", table, pk, err)
		}

		return expectOneRow(res, "update", table, pk)
	})
	return tw
}

// Delete stages a delete of row by primary key.
func (tw *TxWriter) Delete(table string, row any) *TxWriter {
	tw.operations = append(tw.operations, func(tx *sql.Tx) error {
		pkName, pk, err := meddler.PrimaryKey(row)
		if err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}

		res, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(table), quote(pkName)), pk)
		if err != nil {
			return fmt.Errorf("delete %s %d: %w", table, pk, err)
		}

		return expectOneRow(res, "delete", table, pk)
	})
	return tw
}

// Len returns the number of staged operations.
func (tw *TxWriter) Len() int {
	return len(tw.operations)
}

// Execute runs every staged operation in one transaction. Either all of them
// become visible or none does. The staged operations are dropped either way.
func (tw *TxWriter) Execute(ctx context.Context) (err error) {
	defer func() {
		tw.operations = nil
	}()

	start := time.Now()
	defer func() { TxExecuted(len(tw.operations), time.Since(start), err) }()

	tx, err := tw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			tw.log.Errorf("failed to rollback transaction: %v", rbErr)
		}
	}()

	for _, op := range tw.operations {
		if err = op(tx); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func insert(tx *sql.Tx, verb, table string, row any) error {
	columns, err := meddler.ColumnsQuoted(row, true)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	placeholders, err := meddler.PlaceholdersString(row, true)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	values, err := meddler.Values(row, true)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}

	query := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, quote(table), columns, placeholders)
	if _, err := tx.Exec(query, values...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}

	return nil
}

func expectOneRow(res sql.Result, verb, table string, pk int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%s %s %d: %d rows affected, expected 1", verb, table, pk, n)
	}
	return nil
}

func quote(name string) string {
	return meddler.Default.Quote + name + meddler.Default.Quote
}
