package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"       // Registers "mysql".
	_ "github.com/lib/pq"                    // Registers "postgres".
	_ "github.com/ncruces/go-sqlite3/driver" // Registers "sqlite3".
	_ "github.com/ncruces/go-sqlite3/embed"  // Embeds the SQLite WASM binary.
)

// Dialect is the SQL flavour spoken by the database behind SQLSlots.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// slotsTable is shared by every cache using the same database; slot names keep them apart.
const slotsTable = "fig_slots"

type dialectQueries struct {
	createTable string
	get         string
	upsert      string
	remove      string
}

// newDialectQueries fills the slots table queries; `bind` renders the n-th (1-based) bind parameter.
func newDialectQueries(columnTypes [3]string, bind func(n int) string, upsertSuffix string) dialectQueries {
	return dialectQueries{
		createTable: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (name %s PRIMARY KEY, data %s NOT NULL, updated_at %s NOT NULL)",
			slotsTable, columnTypes[0], columnTypes[1], columnTypes[2]),
		get: fmt.Sprintf("SELECT data FROM %s WHERE name = %s", slotsTable, bind(1)),
		upsert: fmt.Sprintf("INSERT INTO %s (name, data, updated_at) VALUES (%s, %s, %s) %s",
			slotsTable, bind(1), bind(2), bind(3), upsertSuffix),
		remove: fmt.Sprintf("DELETE FROM %s WHERE name = %s", slotsTable, bind(1)),
	}
}

func questionMark(int) string { return "?" }

func dollarSign(n int) string { return "$" + strconv.Itoa(n) }

var queries = map[Dialect]dialectQueries{
	DialectSQLite: newDialectQueries([3]string{"TEXT", "BLOB", "INTEGER"}, questionMark,
		"ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at"),
	DialectPostgres: newDialectQueries([3]string{"TEXT", "BYTEA", "BIGINT"}, dollarSign,
		"ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at"),
	DialectMySQL: newDialectQueries([3]string{"VARCHAR(255)", "LONGBLOB", "BIGINT"}, questionMark,
		"ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)"),
}

// SQLSlots keeps slots as rows of the `fig_slots` table.
type SQLSlots struct {
	db      *sql.DB
	queries dialectQueries
	owned   bool // Whether Close should close db.
}

var _ SlotStore = (*SQLSlots)(nil)

// OpenSQLSlots connects to `dsn` using `driver` (one of the Dialect values) and prepares the slots table.
func OpenSQLSlots(ctx context.Context, driver, dsn string) (*SQLSlots, error) {
	dialect := Dialect(strings.ToLower(driver))
	if _, known := queries[dialect]; !known {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if dsn == "" {
		return nil, errors.New("sql slots need a dsn")
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1) // SQLite is single-writer.
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}
	slots, err := NewSQLSlots(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slots.owned = true
	return slots, nil
}

// NewSQLSlots uses an already opened database. The caller keeps ownership of `db`.
func NewSQLSlots(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLSlots, error) {
	dialectQueries, known := queries[dialect]
	if !known {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	if _, err := db.ExecContext(ctx, dialectQueries.createTable); err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", slotsTable, err)
	}
	return &SQLSlots{db: db, queries: dialectQueries}, nil
}

func (s *SQLSlots) GetSlot(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.queries.get, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query slot %q: %w", name, err)
	}
	return data, true, nil
}

func (s *SQLSlots) SetSlot(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return ErrEmptySlotName
	}
	if data == nil {
		data = []byte{} // The data column is NOT NULL.
	}
	if _, err := s.db.ExecContext(ctx, s.queries.upsert, name, data, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to upsert slot %q: %w", name, err)
	}
	return nil
}

func (s *SQLSlots) RemoveSlot(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, s.queries.remove, name); err != nil {
		return fmt.Errorf("failed to delete slot %q: %w", name, err)
	}
	return nil
}

// Close releases the database if it was opened by OpenSQLSlots.
func (s *SQLSlots) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
