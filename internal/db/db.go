package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Connect opens the database for the given driver and runs migrations.
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if driver == DriverSQLite {
		// a single connection keeps in-memory databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Migrate applies the schema. Statements are idempotent and portable between
// PostgreSQL and SQLite.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("%w: %s", err, firstLine(m))
		}
	}
	jww.INFO.Printf("database migrations applied driver=%s", db.DriverName())
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS crew_profiles (
            user_id TEXT PRIMARY KEY,
            display_name TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            department_name TEXT NOT NULL DEFAULT '',
            role_name TEXT NOT NULL DEFAULT '',
            ship_name TEXT NOT NULL DEFAULT '',
            cruise_line_name TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS connection_requests (
            id TEXT PRIMARY KEY,
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            user_low TEXT NOT NULL,
            user_high TEXT NOT NULL,
            message TEXT,
            status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'declined')),
            created_at TIMESTAMP NOT NULL,
            responded_at TIMESTAMP
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS connection_requests_active_pair
            ON connection_requests (user_low, user_high)
            WHERE status IN ('pending', 'accepted');`,
	`CREATE INDEX IF NOT EXISTS connection_requests_receiver
            ON connection_requests (receiver_id, status);`,
	`CREATE INDEX IF NOT EXISTS connection_requests_sender
            ON connection_requests (sender_id, status);`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
            room_id TEXT PRIMARY KEY,
            participant1_id TEXT NOT NULL,
            participant2_id TEXT NOT NULL,
            last_message_id TEXT,
            last_message_content TEXT,
            last_message_sender_id TEXT,
            last_message_status TEXT,
            last_message_at TIMESTAMP,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS chat_rooms_participant1 ON chat_rooms (participant1_id);`,
	`CREATE INDEX IF NOT EXISTS chat_rooms_participant2 ON chat_rooms (participant2_id);`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
            id TEXT PRIMARY KEY,
            room_id TEXT NOT NULL REFERENCES chat_rooms(room_id),
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            content TEXT NOT NULL,
            message_type TEXT NOT NULL DEFAULT 'text',
            status TEXT NOT NULL CHECK (status IN ('sent', 'delivered', 'read')),
            client_message_id TEXT,
            created_at TIMESTAMP NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS chat_messages_room_order ON chat_messages (room_id, created_at, id);`,
	`CREATE INDEX IF NOT EXISTS chat_messages_unread ON chat_messages (receiver_id, status);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_messages_client_id
            ON chat_messages (sender_id, client_message_id)
            WHERE client_message_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            data TEXT,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            email_queued BOOLEAN NOT NULL DEFAULT FALSE,
            push_queued BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS notifications_user ON notifications (user_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
            user_id TEXT NOT NULL,
            type TEXT NOT NULL,
            email_enabled BOOLEAN NOT NULL,
            push_enabled BOOLEAN NOT NULL,
            in_app_enabled BOOLEAN NOT NULL,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL,
            PRIMARY KEY (user_id, type)
        );`,
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
