package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/shipdesk-notify/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serialises writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// notificationRow is the cached form of a model.Notification.
type notificationRow struct {
	UserID      string         `db:"user_id"`
	ID          string         `db:"id"`
	RecipientID sql.NullString `db:"recipient_id"`
	Category    string         `db:"category"`
	Title       string         `db:"title"`
	Body        string         `db:"body"`
	Read        int            `db:"read"`
	CreatedAt   time.Time      `db:"created_at"`
	Position    int            `db:"position"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:        r.ID,
		Category:  r.Category,
		Title:     r.Title,
		Body:      r.Body,
		IsRead:    r.Read != 0,
		CreatedAt: r.CreatedAt,
	}
	if r.RecipientID.Valid {
		recipient := r.RecipientID.String
		n.RecipientID = &recipient
	}
	return n
}

func nullableRecipient(n model.Notification) sql.NullString {
	if n.RecipientID == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *n.RecipientID, Valid: true}
}

// ReplaceNotifications swaps the user's cached list inside one transaction.
func (s *SQLiteStore) ReplaceNotifications(
	ctx context.Context,
	userID string,
	list []model.Notification,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing notifications for %s: %w", userID, err)
	}

	const query = `
		INSERT OR REPLACE INTO notifications (
			user_id, id, recipient_id, category, title, body,
			read, created_at, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, n := range list {
		_, err := stmt.ExecContext(ctx,
			userID, n.ID, nullableRecipient(n), n.Category, n.Title, n.Body,
			boolToInt(n.IsRead), n.CreatedAt.UTC(), i,
		)
		if err != nil {
			return fmt.Errorf("caching notification %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// UpsertNotification caches a pushed notification at the head of the list.
func (s *SQLiteStore) UpsertNotification(
	ctx context.Context,
	userID string,
	n model.Notification,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			user_id, id, recipient_id, category, title, body,
			read, created_at, position
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MIN(position), 0) - 1 FROM notifications WHERE user_id = ?)
		)
		ON CONFLICT (user_id, id) DO UPDATE SET
			recipient_id = excluded.recipient_id,
			category     = excluded.category,
			title        = excluded.title,
			body         = excluded.body,
			read         = excluded.read,
			created_at   = excluded.created_at`,
		userID, n.ID, nullableRecipient(n), n.Category, n.Title, n.Body,
		boolToInt(n.IsRead), n.CreatedAt.UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("upserting notification %s: %w", n.ID, err)
	}
	return nil
}

// GetNotifications returns the user's cached list, most recent first.
func (s *SQLiteStore) GetNotifications(
	ctx context.Context,
	userID string,
) ([]model.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, id, recipient_id, category, title, body,
		       read, created_at, position
		FROM notifications
		WHERE user_id = ?
		ORDER BY position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications for %s: %w", userID, err)
	}

	list := make([]model.Notification, len(rows))
	for i, r := range rows {
		list[i] = r.toModel()
	}
	return list, nil
}

// MarkNotificationRead sets the read flag of a single cached entry.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	userID string,
	id string,
	read bool,
) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = ? WHERE user_id = ? AND id = ?",
		boolToInt(read), userID, id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// ClearUser removes every cached notification for userID.
func (s *SQLiteStore) ClearUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("clearing notifications for %s: %w", userID, err)
	}
	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
