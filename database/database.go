package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// ErrNotFound is returned when a looked up row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the SQLite backed subscription store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// InitDB opens the database at dbPath, creating the file, its directory and
// the tables as needed.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("Successfully connected to the database at", dbPath)
	return db, nil
}

// Open initializes the database and wraps it in a Store.
func Open(dbPath string) (*Store, error) {
	db, err := InitDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
        channel_id TEXT NOT NULL,
        is_dm INTEGER NOT NULL DEFAULT 0,
        twitter_user_id TEXT NOT NULL,
        flags INTEGER NOT NULL DEFAULT 0,
        created_at INTEGER NOT NULL,
        PRIMARY KEY (channel_id, twitter_user_id)
    );`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(twitter_user_id);`,
		`CREATE TABLE IF NOT EXISTS twitter_users (
        id TEXT PRIMARY KEY,
        screen_name TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        profile_image_url TEXT NOT NULL DEFAULT '',
        last_seen INTEGER NOT NULL
    );`,
		`CREATE INDEX IF NOT EXISTS idx_twitter_users_screen_name ON twitter_users(screen_name COLLATE NOCASE);`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
