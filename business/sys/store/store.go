// Package store opens the storage backend selected by configuration.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/storage/boltdb"
	"github.com/bitsim/node/foundation/blockchain/storage/disk"
	"github.com/bitsim/node/foundation/blockchain/storage/memory"
	"github.com/bitsim/node/foundation/blockchain/storage/sqldb"
)

// Set of supported storage types.
const (
	TypeMemory = "memory"
	TypeDisk   = "disk"
	TypeBolt   = "bolt"
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

// Config represents the storage settings shared by the node and the tools.
type Config struct {
	Type string
	Path string
	DSN  string
}

// Open returns the storage for the named area, such as the chain or the
// registry. Each area gets its own folder, file or table so resetting one
// never touches the other.
func Open(cfg Config, area string) (database.Storage, error) {
	switch cfg.Type {
	case TypeMemory:
		return memory.New()

	case TypeDisk:
		return disk.New(filepath.Join(cfg.Path, area))

	case TypeBolt:
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, err
		}
		return boltdb.New(filepath.Join(cfg.Path, area+".db"))

	case TypeSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			if err := os.MkdirAll(cfg.Path, 0755); err != nil {
				return nil, err
			}
			dsn = "file:" + filepath.Join(cfg.Path, "bitsim.db")
		}
		return sqldb.Open(sqldb.Config{Driver: sqldb.DriverSQLite, DSN: dsn, Table: area})

	case TypeMySQL:
		return sqldb.Open(sqldb.Config{Driver: sqldb.DriverMySQL, DSN: cfg.DSN, Table: area})
	}

	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

// StatusCheck returns the readiness check for storage that talks to a
// server. Other storage is always ready.
func StatusCheck(s database.Storage) func(ctx context.Context) error {
	type checker interface {
		StatusCheck(ctx context.Context) error
	}

	if c, ok := s.(checker); ok {
		return c.StatusCheck
	}

	return func(ctx context.Context) error { return nil }
}
