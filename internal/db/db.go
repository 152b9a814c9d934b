package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Options controls how the SQLite handle is opened.
type Options struct {
	Path string
	// DSN, when set, is used as is and Path is ignored.
	DSN          string
	MaxOpenConns int
	// LogSQL logs every statement at debug level through Logger.
	LogSQL bool
	Logger *slog.Logger
}

func Open(opts Options) (*sql.DB, error) {
	dsn, err := buildDSN(opts)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if opts.LogSQL {
		db = sql.OpenDB(newStatementLogger(dsn, opts.Logger))
	} else {
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	// Single writer: the collector stores readings from one goroutine.
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(opts Options) (string, error) {
	if opts.DSN != "" {
		return opts.DSN, nil
	}
	if strings.TrimSpace(opts.Path) == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}

	path := opts.Path
	if !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	// - foreign_keys=on: enforce FK constraints
	// - busy_timeout: the HTTP reader and the BLE writer share the file
	// - journal_mode=WAL: readers don't block the writer
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
