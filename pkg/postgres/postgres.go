package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/poro/notify-engine/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.PostgresConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS notification_templates (
			type VARCHAR(64) PRIMARY KEY,
			channel_bodies JSONB NOT NULL,
			variables JSONB NOT NULL DEFAULT '[]',
			default_channels JSONB NOT NULL DEFAULT '[]',
			priority VARCHAR(16) NOT NULL DEFAULT 'normal',
			settings JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			type VARCHAR(64) NOT NULL,
			channels JSONB NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			priority VARCHAR(16) NOT NULL DEFAULT 'normal',
			scheduled_at TIMESTAMPTZ,
			sent_at TIMESTAMPTZ,
			delivered_at TIMESTAMPTZ,
			read_at TIMESTAMPTZ,
			delivery_attempts INTEGER NOT NULL DEFAULT 0,
			last_attempt_at TIMESTAMPTZ,
			error_message TEXT,
			rendered_payload JSONB NOT NULL DEFAULT '{}',
			failed_channels JSONB NOT NULL DEFAULT '[]',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_retry ON notifications(status, last_attempt_at)
			WHERE status = 'failed'`,

		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255),
			phone VARCHAR(32),
			push_token VARCHAR(255),
			opted_out JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	log.Println("Migrations completed successfully")
	return nil
}
