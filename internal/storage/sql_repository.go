package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const transactionColumns = "id, type, amount, category, description, date, created_at, user_id"

var (
	listQuery       = "SELECT " + transactionColumns + " FROM transactions_table ORDER BY id"
	listByUserQuery = "SELECT " + transactionColumns + " FROM transactions_table WHERE user_id = ? ORDER BY id"
	insertQuery     = "INSERT INTO transactions_table (type, amount, category, description, date, created_at, user_id) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING " + transactionColumns
	deleteQuery = "DELETE FROM transactions_table WHERE id = ? RETURNING " + transactionColumns
)

// DefaultUserID owns transactions created without an explicit user.
const DefaultUserID int64 = 1

// SQLRepository implements Store on top of database/sql. SQLite and Postgres
// share one schema and one query set.
type SQLRepository struct {
	db            *sql.DB
	dialect       Dialect
	defaultUserID int64
	now           func() time.Time
}

// Option customises a repository.
type Option func(*SQLRepository)

// WithDefaultUserID sets the owner applied when a new transaction has none.
func WithDefaultUserID(id int64) Option {
	return func(r *SQLRepository) { r.defaultUserID = id }
}

// WithClock overrides the created_at clock.
func WithClock(now func() time.Time) Option {
	return func(r *SQLRepository) { r.now = now }
}

// NewSQLiteRepository opens (creating if needed) a SQLite database file and
// applies migrations.
func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Concurrent writers (the seeder) would otherwise hit SQLITE_BUSY.
	dsn := dbPath + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open(SQLite.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(SQLite, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newSQLRepository(db, SQLite, opts...), nil
}

// NewPostgresRepository connects to Postgres through pgx and applies migrations.
func NewPostgresRepository(ctx context.Context, databaseURL string, opts ...Option) (*SQLRepository, error) {
	db, err := sql.Open(Postgres.DriverName(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(Postgres, databaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newSQLRepository(db, Postgres, opts...), nil
}

func newSQLRepository(db *sql.DB, d Dialect, opts ...Option) *SQLRepository {
	r := &SQLRepository{
		db:            db,
		dialect:       d,
		defaultUserID: DefaultUserID,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dialect reports which database the repository talks to.
func (r *SQLRepository) Dialect() Dialect {
	return r.dialect
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements Pinger
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// List implements Store
func (r *SQLRepository) List(ctx context.Context, userID *int64) ([]core.Transaction, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if userID != nil {
		rows, err = r.db.QueryContext(ctx, r.dialect.Rebind(listByUserQuery), *userID)
	} else {
		rows, err = r.db.QueryContext(ctx, listQuery)
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// Create implements Store
func (r *SQLRepository) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	in = in.WithDefaults(r.defaultUserID)

	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(insertQuery),
		string(in.Type),
		in.Amount.String(),
		in.Category,
		in.Description,
		in.Date,
		r.dialect.timeArg(r.now()),
		*in.UserID,
	)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"category", tx.Category,
		"backend", r.dialect.String())

	return tx, nil
}

// Delete implements Store
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.Remove(ctx, id)
	return err
}

// Remove implements Remover with a single DELETE ... RETURNING.
func (r *SQLRepository) Remove(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.dialect.Rebind(deleteQuery), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "backend", r.dialect.String())
	return tx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		txType    string
		createdAt timestamp
	)
	if err := s.Scan(&tx.ID, &txType, &tx.Amount, &tx.Category, &tx.Description, &tx.Date, &createdAt, &tx.UserID); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(txType)
	tx.CreatedAt = createdAt.Time
	return tx, nil
}

// timestamp scans a created_at column stored either as TEXT (SQLite) or as
// TIMESTAMPTZ (Postgres).
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
