package objstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// SQL keeps objects in a single table of a Postgres or SQLite database.
type SQL struct {
	db     *sqlx.DB
	driver string
}

// OpenSQL opens the database, applies pending migrations and returns the store.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if driver == DriverSQLite {
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("pragma %q: %w", pragma, err)
			}
		}
	}

	s := &SQL{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, s.db.Rebind(`SELECT data FROM objects WHERE object_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return data, nil
}

func (s *SQL) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO objects (object_key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (object_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`), key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM objects WHERE object_key = ?`), key); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *SQL) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := s.db.SelectContext(ctx, &keys, s.db.Rebind(`
		SELECT object_key FROM objects WHERE object_key LIKE ? ESCAPE '\' ORDER BY object_key
	`), escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list objects %s: %w", prefix, err)
	}
	return keys, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
