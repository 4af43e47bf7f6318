package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"chat-client/internal/logger"
)

// Connect opens the store database and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            group_id TEXT,
            participants TEXT[] NOT NULL DEFAULT '{}',
            last_message JSONB,
            unread_count JSONB NOT NULL DEFAULT '{}',
            muted_until TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            idempotency_key TEXT UNIQUE,
            conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id TEXT NOT NULL,
            receiver_id TEXT,
            group_id TEXT,
            content TEXT NOT NULL,
            type TEXT NOT NULL DEFAULT 'text',
            timestamp TIMESTAMPTZ NOT NULL,
            status TEXT NOT NULL DEFAULT 'sent',
            reply_to TEXT,
            reactions JSONB NOT NULL DEFAULT '{}',
            is_edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_at TIMESTAMPTZ,
            CHECK ((receiver_id IS NULL) <> (group_id IS NULL))
        );`,
	`CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages (sender_id);`,
	`CREATE INDEX IF NOT EXISTS messages_receiver_idx ON messages (receiver_id);`,
	`CREATE INDEX IF NOT EXISTS messages_group_idx ON messages (group_id);`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, timestamp);`,
	`CREATE INDEX IF NOT EXISTS conversations_participants_idx ON conversations USING GIN (participants);`,
	`CREATE TABLE IF NOT EXISTS resources (
            collection TEXT NOT NULL,
            id TEXT NOT NULL,
            body JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (collection, id)
        );`,
}

// Migrate creates the tables if they do not exist.
func Migrate(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	logger.Info("database migrations applied")
	return nil
}
