package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"resumecoach/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured sqlite3 or mysql database.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		if err := ensureDir(dbCfg.DSN); err != nil {
			return nil, err
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// one connection keeps writers serialized and :memory: shared
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set sqlite busy timeout: %w", err)
		}
	case "mysql":
		params := dbCfg.Params
		if params == "" {
			params = "parseTime=true&charset=utf8mb4"
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	return nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS reports (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				batch_id TEXT NOT NULL DEFAULT '',
				file_name TEXT NOT NULL,
				state TEXT NOT NULL,
				failure TEXT NOT NULL DEFAULT '',
				keywords TEXT NOT NULL DEFAULT '[]',
				feedback TEXT NOT NULL DEFAULT '',
				template_name TEXT NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',
				model TEXT NOT NULL DEFAULT '',
				cached BOOLEAN NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reports_batch ON reports(batch_id)`,
			`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS reports (
				seq BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				id VARCHAR(36) NOT NULL,
				batch_id VARCHAR(36) NOT NULL DEFAULT '',
				file_name VARCHAR(255) NOT NULL,
				state VARCHAR(32) NOT NULL,
				failure VARCHAR(32) NOT NULL DEFAULT '',
				keywords TEXT NOT NULL,
				feedback MEDIUMTEXT NOT NULL,
				template_name VARCHAR(64) NOT NULL DEFAULT '',
				error TEXT NOT NULL,
				model VARCHAR(128) NOT NULL DEFAULT '',
				cached BOOLEAN NOT NULL DEFAULT FALSE,
				created_at DATETIME(6) NOT NULL,
				PRIMARY KEY (seq),
				UNIQUE KEY uniq_reports_id (id),
				INDEX idx_reports_batch (batch_id),
				INDEX idx_reports_created_at (created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
