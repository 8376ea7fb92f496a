// Package sqlite implements the repository interfaces on SQLite using the
// pure-Go modernc.org/sqlite driver.
//
// Users and recipes are stored as rows, and each ordered reference list of
// the document model (user.recipes, user.favouriteRecipes, recipe.fans,
// recipe.comments, recipe.ratings) lives in its own table. Insertion order
// is rowid order.
//
// Every query runs on a querier, which is either the connection pool or a
// *sql.Tx. DB.WithTx begins a transaction, hands the callback a Tx bound to
// it, and commits or rolls back when the callback returns.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sakif/recipebook/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every SQL statement. DB embeds one bound to the pool;
// WithTx creates one bound to the transaction.
type queries struct {
	q querier
}

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
	*queries
}

// dsnParams are appended to every data source name:
//   - foreign_keys must be set per connection, so it goes in the DSN
//   - busy_timeout waits for a competing writer instead of failing at once
//   - _txlock=immediate takes the write lock at BEGIN, so a transaction's
//     reads and writes see no interleaved writer
const dsnParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/recipes.db" → file-based database
//   - ":memory:"        → in-memory database, used by tests
//
// The pool is limited to one connection. SQLite allows a single writer
// anyway, and an in-memory database exists only on the connection that
// created it.
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&" + dsnParams
	} else {
		dsn += "?" + dsnParams
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers outside this process proceed during a write.
	// In-memory databases ignore it.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, queries: &queries{q: conn}}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithTx runs fn inside a transaction. If fn returns an error (or panics)
// the transaction is rolled back and nothing fn wrote is persisted.
//
// fn must only use the Tx it is given. The pool has a single connection,
// so calling back into db from inside fn would block forever.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("sqlite: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS recipes (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL,
			steps       TEXT NOT NULL DEFAULT '[]',
			ingredients TEXT NOT NULL DEFAULT '[]',
			author_id   TEXT NOT NULL REFERENCES users(id),
			image       TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_recipes_author_id ON recipes(author_id);
		CREATE INDEX IF NOT EXISTS idx_recipes_category ON recipes(category);
	`)
	if err != nil {
		return fmt.Errorf("creating recipes table: %w", err)
	}

	// Recipe-owned sub-collections go away with the recipe.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS recipe_fans (
			recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			user_id   TEXT NOT NULL REFERENCES users(id),
			PRIMARY KEY (recipe_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS recipe_comments (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			recipe_id   TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			author_name TEXT NOT NULL,
			text        TEXT NOT NULL,
			created_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_recipe_comments_recipe_id ON recipe_comments(recipe_id);
		CREATE TABLE IF NOT EXISTS recipe_ratings (
			recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			author_id TEXT NOT NULL,
			rate      INTEGER NOT NULL,
			PRIMARY KEY (recipe_id, author_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating recipe sub-collections: %w", err)
	}

	// User-side reference lists. recipe_id carries no foreign key: these
	// are references, and removal is done explicitly by the writer.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_recipes (
			user_id   TEXT NOT NULL REFERENCES users(id),
			recipe_id TEXT NOT NULL,
			PRIMARY KEY (user_id, recipe_id)
		);
		CREATE TABLE IF NOT EXISTS user_favourites (
			user_id   TEXT NOT NULL REFERENCES users(id),
			recipe_id TEXT NOT NULL,
			PRIMARY KEY (user_id, recipe_id)
		);
		CREATE INDEX IF NOT EXISTS idx_user_favourites_recipe_id ON user_favourites(recipe_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user reference lists: %w", err)
	}

	return nil
}
