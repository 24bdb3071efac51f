package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Postgres error codes for references the schema does not have.
const (
	pqUndefinedColumn = "42703"
	pqUndefinedTable  = "42P01"
)

// IsSchemaMismatch reports whether err comes from a query naming a column or
// table this indexer deployment does not have.
func IsSchemaMismatch(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUndefinedColumn || pqErr.Code == pqUndefinedTable
}

// QueryFirst runs the variants of one query in order and returns the rows of
// the first variant the schema accepts. Indexer deployments disagree on
// column naming, so a schema mismatch advances to the next variant; any
// other error is returned immediately.
func QueryFirst(ctx context.Context, db *sql.DB, variants []string, args ...interface{}) (*sql.Rows, error) {
	var lastErr error
	for i, query := range variants {
		rows, err := db.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if !IsSchemaMismatch(err) {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"component": "QueryFirst",
			"variant":   i,
			"error":     err.Error(),
		}).Debug("Query variant rejected by schema, trying next")
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("no query variants supplied")
	}
	return nil, fmt.Errorf("no query variant matched the schema: %w", lastErr)
}

// QueryRowFirst is QueryFirst for single-row queries. It scans the first row
// into dest and reports whether a row existed.
func QueryRowFirst(ctx context.Context, db *sql.DB, variants []string, dest []interface{}, args ...interface{}) (bool, error) {
	rows, err := QueryFirst(ctx, db, variants, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return false, rows.Err()
	}
	if err := rows.Scan(dest...); err != nil {
		return false, err
	}
	return true, rows.Err()
}

// TableExists checks the public schema for a table
func TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	err := db.QueryRowContext(ctx, query, tableName).Scan(&exists)
	return exists, err
}

// MissingTables returns the subset of tables absent from the public schema.
func MissingTables(ctx context.Context, db *sql.DB, tables ...string) ([]string, error) {
	var missing []string
	for _, table := range tables {
		exists, err := TableExists(ctx, db, table)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
