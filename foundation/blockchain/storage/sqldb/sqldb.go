// Package sqldb implements the ability to read and write documents to a
// relational database through database/sql. The sqlite3 and mysql drivers
// are supported.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bitsim/node/foundation/blockchain/database"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Set of supported drivers.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// DefaultTable is used when the configuration doesn't name a table.
const DefaultTable = "documents"

const createTable = `
CREATE TABLE IF NOT EXISTS %s (
	collection VARCHAR(64) NOT NULL,
	doc_key    VARCHAR(128) NOT NULL,
	body       MEDIUMTEXT NOT NULL,
	PRIMARY KEY (collection, doc_key)
)`

// validTable restricts table names to plain identifiers since they are
// formatted into the statements.
var validTable = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config is the required properties to use the database.
type Config struct {
	Driver string
	DSN    string
	Table  string
}

// SQL represents the serialization implementation for reading and storing
// documents in a single relational table. This implements the
// database.Storage interface.
type SQL struct {
	db    *sql.DB
	table string
}

// Open knows how to open a database connection based on the configuration
// and makes sure the documents table exists.
func Open(cfg Config) (*SQL, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !validTable.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	// An in-memory sqlite database only lives as long as its connection.
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(createTable, table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQL{db: db, table: table}, nil
}

// StatusCheck returns nil if it can successfully talk to the database.
func (s *SQL) StatusCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

// Put replaces the document under the key in the collection.
func (s *SQL) Put(collection string, key string, body []byte) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(s.query("DELETE FROM %s WHERE collection = ? AND doc_key = ?"), collection, key); err != nil {
			return err
		}

		_, err := tx.Exec(s.query("INSERT INTO %s (collection, doc_key, body) VALUES (?, ?, ?)"), collection, key, string(body))
		return err
	})
}

// Get returns the document stored under the key in the collection.
func (s *SQL) Get(collection string, key string) ([]byte, error) {
	var body string

	row := s.db.QueryRow(s.query("SELECT body FROM %s WHERE collection = ? AND doc_key = ?"), collection, key)
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}

	return []byte(body), nil
}

// Delete removes the documents with the specified keys in one transaction.
func (s *SQL) Delete(collection string, keys ...string) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.Exec(s.query("DELETE FROM %s WHERE collection = ? AND doc_key = ?"), collection, key); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns every document in the collection ordered by key.
func (s *SQL) List(collection string) ([]database.Document, error) {
	rows, err := s.db.Query(s.query("SELECT doc_key, body FROM %s WHERE collection = ? ORDER BY doc_key"), collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []database.Document
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, err
		}
		docs = append(docs, database.Document{Key: key, Body: []byte(body)})
	}

	return docs, rows.Err()
}

// Reset removes every document in the table.
func (s *SQL) Reset() error {
	_, err := s.db.Exec(s.query("DELETE FROM %s"))
	return err
}

// query places the table name into the statement.
func (s *SQL) query(stmt string) string {
	return fmt.Sprintf(stmt, s.table)
}

// withTx runs the function inside a transaction, rolling back on error.
func (s *SQL) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback: %v: %w", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}
