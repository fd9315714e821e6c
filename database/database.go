package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
	"github.com/sirupsen/logrus"
)

// ErrNotFollowing is returned by operations scoped to a follow that does not exist.
var ErrNotFollowing = errors.New("guild does not follow this game")

// DB holds the tracker state: guild configuration, follows, filter lists,
// URL filters, the seen posts of every game and the local games catalog.
type DB struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open opens the SQLite database at dbPath, creating the file, its directory
// and the tables when they do not exist yet.
func Open(dbPath string, log *logrus.Entry) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=1&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Infof("Successfully connected to the database at %s", dbPath)
	return &DB{db: db, log: log}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS guilds (
        id TEXT PRIMARY KEY,
        main_channel_id TEXT
    );`,
	`CREATE TABLE IF NOT EXISTS follows (
        follower_guild_id TEXT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
        followed_game_id TEXT NOT NULL,
        channel_id TEXT,
        last_post_id TEXT,
        PRIMARY KEY (follower_guild_id, followed_game_id)
    );`,
	`CREATE TABLE IF NOT EXISTS account_lists (
        kind TEXT NOT NULL CHECK (kind IN ('allowed', 'ignored')),
        guild_id TEXT NOT NULL,
        game_id TEXT NOT NULL,
        service_id TEXT NOT NULL,
        account_id TEXT NOT NULL,
        PRIMARY KEY (kind, guild_id, game_id, service_id, account_id),
        FOREIGN KEY (guild_id, game_id) REFERENCES follows(follower_guild_id, followed_game_id) ON DELETE CASCADE
    );`,
	`CREATE TABLE IF NOT EXISTS service_lists (
        kind TEXT NOT NULL CHECK (kind IN ('allowed', 'ignored')),
        guild_id TEXT NOT NULL,
        game_id TEXT NOT NULL,
        service_id TEXT NOT NULL,
        PRIMARY KEY (kind, guild_id, game_id, service_id),
        FOREIGN KEY (guild_id, game_id) REFERENCES follows(follower_guild_id, followed_game_id) ON DELETE CASCADE
    );`,
	`CREATE TABLE IF NOT EXISTS url_filters (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        guild_id TEXT NOT NULL,
        game_id TEXT NOT NULL,
        service_id TEXT NOT NULL,
        filters TEXT NOT NULL,
        channel_id TEXT,
        thread_id TEXT,
        parent_id TEXT,
        FOREIGN KEY (guild_id, game_id) REFERENCES follows(follower_guild_id, followed_game_id) ON DELETE CASCADE
    );`,
	`CREATE INDEX IF NOT EXISTS idx_url_filters_scope ON url_filters (guild_id, game_id, service_id);`,
	`CREATE TABLE IF NOT EXISTS seen_posts (
        game_id TEXT NOT NULL,
        post_id TEXT NOT NULL,
        PRIMARY KEY (game_id, post_id)
    );`,
	`CREATE TABLE IF NOT EXISTS seen_games (
        game_id TEXT PRIMARY KEY
    );`,
	`CREATE TABLE IF NOT EXISTS games (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL
    );`,
}

func createTables(db *sql.DB) error {
	for _, query := range schema {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute table creation query: %w", err)
		}
	}
	return nil
}

// exec runs a single statement and returns the number of affected rows.
func (d *DB) exec(ctx context.Context, query string, args ...any) (int64, error) {
	stmt, err := d.db.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// queryStrings runs a query selecting a single text column.
func (d *DB) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
