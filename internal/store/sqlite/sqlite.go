package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Migrate applies the schema. It is idempotent.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to seed data or apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also serializes writers,
	// which keeps id assignment ordered per conversation.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// SetClock overrides the time source used for timestamps the store assigns.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func userNotFound(userID string) error {
	return fmt.Errorf("user %q: %w", userID, store.ErrNotFound)
}

func messageNotFound(messageID int64) error {
	return fmt.Errorf("message %d: %w", messageID, store.ErrNotFound)
}

// ==== UserStore implementation ====

// CreateOrGetUser returns the existing user or creates a new one.
func (s *SQLiteStore) CreateOrGetUser(ctx context.Context, userID, username string) (*store.User, bool, error) {
	now := s.now()
	query := `
		INSERT INTO users (user_id, username, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, userID, username, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return user, affected == 1, nil
}

// GetUser retrieves a user by external id.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*store.User, error) {
	query := `
		SELECT user_id, username, last_welcome_date, created_at, updated_at
		FROM users
		WHERE user_id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID,
		&user.Username,
		&user.LastWelcomeDate,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userNotFound(userID)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ListUsers returns every user ordered by creation.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT user_id, username, last_welcome_date, created_at, updated_at
		FROM users
		ORDER BY created_at, user_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.UserID, &user.Username, &user.LastWelcomeDate, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// MarkWelcomed records day as the user's last welcome date.
func (s *SQLiteStore) MarkWelcomed(ctx context.Context, userID, day string) (bool, error) {
	query := `
		UPDATE users
		SET last_welcome_date = ?, updated_at = ?
		WHERE user_id = ? AND last_welcome_date <> ?
	`
	result, err := s.db.ExecContext(ctx, query, day, s.now(), userID, day)
	if err != nil {
		return false, fmt.Errorf("update welcome date: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

// DeleteUser removes a user and every message it owns.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM message_edits
		WHERE message_id IN (SELECT id FROM messages WHERE user_id = ?)
	`, userID); err != nil {
		return fmt.Errorf("delete edits: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return userNotFound(userID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteAllUsers removes every user and message.
func (s *SQLiteStore) DeleteAllUsers(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_edits`); err != nil {
		return 0, fmt.Errorf("delete edits: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return int(affected), nil
}

// ==== MessageStore implementation ====

const messageColumns = `
	id, user_id, content, sender_type, sender_id,
	file_name, file_original_name, file_mime, file_size, file_data,
	timestamp, is_read, updated_at, is_edited
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg          store.Message
		fileName     sql.NullString
		originalName sql.NullString
		mime         sql.NullString
		size         sql.NullInt64
		data         sql.NullString
		updatedAt    sql.NullTime
	)
	if err := row.Scan(
		&msg.ID,
		&msg.UserID,
		&msg.Content,
		&msg.SenderType,
		&msg.SenderID,
		&fileName,
		&originalName,
		&mime,
		&size,
		&data,
		&msg.Timestamp,
		&msg.IsRead,
		&updatedAt,
		&msg.IsEdited,
	); err != nil {
		return nil, err
	}

	if data.Valid {
		msg.Attachment = &store.Attachment{
			Filename:     fileName.String,
			OriginalName: originalName.String,
			MimeType:     mime.String,
			Size:         size.Int64,
			Data:         data.String,
		}
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		msg.UpdatedAt = &t
	}
	return &msg, nil
}

func nullString(s string, valid bool) sql.NullString {
	return sql.NullString{String: s, Valid: valid}
}

// AppendMessage persists msg at the end of the user's sequence.
func (s *SQLiteStore) AppendMessage(ctx context.Context, userID string, msg *store.Message) (*store.Message, error) {
	if msg == nil {
		return nil, errors.New("nil message")
	}
	if !msg.SenderType.Valid() {
		return nil, fmt.Errorf("invalid sender type %q", msg.SenderType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE user_id = ?`, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userNotFound(userID)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	att := msg.Attachment
	hasFile := att != nil
	var (
		fileName, originalName, mime, data sql.NullString
		size                               sql.NullInt64
	)
	if hasFile {
		fileName = nullString(att.Filename, true)
		originalName = nullString(att.OriginalName, true)
		mime = nullString(att.MimeType, true)
		size = sql.NullInt64{Int64: att.Size, Valid: true}
		data = nullString(att.Data, true)
	}

	query := `
		INSERT INTO messages (
			user_id, content, sender_type, sender_id,
			file_name, file_original_name, file_mime, file_size, file_data,
			timestamp, is_read
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		userID, msg.Content, msg.SenderType, msg.SenderID,
		fileName, originalName, mime, size, data,
		msg.Timestamp, msg.IsRead,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET updated_at = ? WHERE user_id = ?`, s.now(), userID); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	stored := *msg
	stored.ID = id
	stored.UserID = userID
	stored.EditHistory = nil
	return &stored, nil
}

// ListMessages returns the user's messages in insertion order, edit history included.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID string) ([]*store.Message, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	byID := make(map[int64]*store.Message)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
		byID[msg.ID] = msg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	editRows, err := s.db.QueryContext(ctx, `
		SELECT e.message_id, e.original_content, e.edited_at, e.edited_by, e.reason
		FROM message_edits e
		JOIN messages m ON m.id = e.message_id
		WHERE m.user_id = ?
		ORDER BY e.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query edits: %w", err)
	}
	defer editRows.Close()

	for editRows.Next() {
		var (
			messageID int64
			entry     store.EditEntry
		)
		if err := editRows.Scan(&messageID, &entry.OriginalContent, &entry.EditedAt, &entry.EditedBy, &entry.Reason); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		if msg, ok := byID[messageID]; ok {
			msg.EditHistory = append(msg.EditHistory, entry)
		}
	}

	return messages, editRows.Err()
}

// GetMessage retrieves a single message by id, edit history included.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID int64) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, messageID)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, messageNotFound(messageID)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	history, err := s.editHistory(ctx, messageID)
	if err != nil {
		return nil, err
	}
	msg.EditHistory = history
	return msg, nil
}

func (s *SQLiteStore) editHistory(ctx context.Context, messageID int64) ([]store.EditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT original_content, edited_at, edited_by, reason
		FROM message_edits
		WHERE message_id = ?
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("query edits: %w", err)
	}
	defer rows.Close()

	var history []store.EditEntry
	for rows.Next() {
		var entry store.EditEntry
		if err := rows.Scan(&entry.OriginalContent, &entry.EditedAt, &entry.EditedBy, &entry.Reason); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// FindMessageOwner returns the user id owning a message.
func (s *SQLiteStore) FindMessageOwner(ctx context.Context, messageID int64) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM messages WHERE id = ?`, messageID).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", messageNotFound(messageID)
		}
		return "", fmt.Errorf("query message owner: %w", err)
	}
	return userID, nil
}

// UpdateMessageContent replaces content and sets UpdatedAt.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, messageID int64, content string) (*store.Message, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, updated_at = ? WHERE id = ?`,
		content, s.now(), messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, messageNotFound(messageID)
	}
	return s.GetMessage(ctx, messageID)
}

// EditMessage appends the current content to edit history, then replaces it.
func (s *SQLiteStore) EditMessage(ctx context.Context, messageID int64, edit store.Edit) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var original string
	err = tx.QueryRowContext(ctx, `SELECT content FROM messages WHERE id = ?`, messageID).Scan(&original)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, messageNotFound(messageID)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO message_edits (message_id, original_content, edited_at, edited_by, reason)
		VALUES (?, ?, ?, ?, ?)
	`, messageID, original, now, edit.EditedBy, edit.Reason); err != nil {
		return nil, fmt.Errorf("insert edit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET content = ?, is_edited = 1, updated_at = ? WHERE id = ?`,
		edit.Content, now, messageID,
	); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return s.GetMessage(ctx, messageID)
}

// DeleteMessage physically removes a message and returns its owner.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, messageID int64) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var userID string
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM messages WHERE id = ?`, messageID).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", messageNotFound(messageID)
		}
		return "", fmt.Errorf("query message owner: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_edits WHERE message_id = ?`, messageID); err != nil {
		return "", fmt.Errorf("delete edits: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, messageID); err != nil {
		return "", fmt.Errorf("delete message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return userID, nil
}

// MarkUserMessagesRead flags every unread user-originated message of userID as read.
func (s *SQLiteStore) MarkUserMessagesRead(ctx context.Context, userID string) (int, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = 1
		WHERE user_id = ? AND sender_type = 'user' AND is_read = 0
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// MarkMessageRead flags one message as read. ok is false when the message does not exist.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, messageID int64) (*store.Message, bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, messageID)
	if err != nil {
		return nil, false, fmt.Errorf("mark read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, false, nil
	}
	msg, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	return msg, true, nil
}

// ClearMessages empties the user's conversation and returns the prior count.
func (s *SQLiteStore) ClearMessages(ctx context.Context, userID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE user_id = ?`, userID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, userNotFound(userID)
		}
		return 0, fmt.Errorf("query user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM message_edits
		WHERE message_id IN (SELECT id FROM messages WHERE user_id = ?)
	`, userID); err != nil {
		return 0, fmt.Errorf("delete edits: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return int(affected), nil
}

// ClearAllMessages empties every conversation.
func (s *SQLiteStore) ClearAllMessages(ctx context.Context) (*store.ClearResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	rows, err := tx.QueryContext(ctx, `SELECT user_id, COUNT(*) FROM messages GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	res := &store.ClearResult{UserCounts: make(map[string]int)}
	for rows.Next() {
		var (
			userID string
			count  int
		)
		if err := rows.Scan(&userID, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan count: %w", err)
		}
		res.UserCounts[userID] = count
		res.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_edits`); err != nil {
		return nil, fmt.Errorf("delete edits: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return res, nil
}

// UnreadCounts groups unread user-originated messages by owner.
func (s *SQLiteStore) UnreadCounts(ctx context.Context) ([]store.UnreadCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*)
		FROM messages
		WHERE sender_type = 'user' AND is_read = 0
		GROUP BY user_id
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query unread counts: %w", err)
	}
	defer rows.Close()

	counts := make([]store.UnreadCount, 0)
	for rows.Next() {
		var c store.UnreadCount
		if err := rows.Scan(&c.UserID, &c.Count); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
