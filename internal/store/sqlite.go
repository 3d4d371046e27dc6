package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

// SQLiteStore is a single-file store for local runs and tests. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens path (":memory:" works) and verifies the connection.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps an in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchemaSQL)
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func (s *SQLiteStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteThread(row rowScanner) (Thread, error) {
	var t Thread
	var created int64
	err := row.Scan(&t.ID, &t.Title, &t.Preview, &t.Pinned, &t.Icon, &t.Index, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, ErrNotFound
	}
	if err != nil {
		return Thread{}, err
	}
	t.CreatedAt = time.UnixMilli(created).UTC()
	return t, nil
}

func scanSQLiteMessage(row rowScanner) (Message, error) {
	var m Message
	var created int64
	err := row.Scan(&m.ID, &m.ThreadID, &m.Text, &m.AttachmentURL, &m.AttachmentType, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, err
	}
	m.CreatedAt = time.UnixMilli(created).UTC()
	return m, nil
}

func (s *SQLiteStore) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		ORDER BY sort_index ASC, created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		t, err := scanSQLiteThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListMessages(ctx context.Context, threadIDs []string) ([]Message, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(threadIDs))
	for i, id := range threadIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(threadIDs)), ",")

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE thread_id IN (`+placeholders+`)
		ORDER BY created_at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetThread(ctx context.Context, id string) (Thread, error) {
	return scanSQLiteThread(s.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id=?`, id))
}

func (s *SQLiteStore) CreateThread(ctx context.Context, in ThreadInput) (Thread, error) {
	t := Thread{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Preview:   in.Preview,
		Pinned:    in.Pinned,
		Icon:      in.Icon,
		Index:     in.Index,
		CreatedAt: s.timestamp(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads(`+threadColumns+`)
		VALUES (?,?,?,?,?,?,?)
	`, t.ID, t.Title, t.Preview, t.Pinned, t.Icon, t.Index, t.CreatedAt.UnixMilli())
	if err != nil {
		return Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) UpdateThread(ctx context.Context, id string, patch ThreadPatch) (Thread, error) {
	if patch.Empty() {
		return s.GetThread(ctx, id)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE threads SET
		  title      = COALESCE(?, title),
		  preview    = COALESCE(?, preview),
		  pinned     = COALESCE(?, pinned),
		  icon       = COALESCE(?, icon),
		  sort_index = COALESCE(?, sort_index)
		WHERE id=?
	`, nullable(patch.Title), nullable(patch.Preview), nullable(patch.Pinned), nullable(patch.Icon), nullable(patch.Index), id)
	if err != nil {
		return Thread{}, fmt.Errorf("update thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Thread{}, ErrNotFound
	}
	return s.GetThread(ctx, id)
}

// nullable turns a nil pointer into SQL NULL and dereferences the rest.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id=?`, id); err != nil {
		return fmt.Errorf("delete thread messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) InsertMessage(ctx context.Context, in MessageInput) (Message, error) {
	m := Message{
		ID:             uuid.NewString(),
		ThreadID:       in.ThreadID,
		Text:           in.Text,
		AttachmentURL:  in.AttachmentURL,
		AttachmentType: in.AttachmentType,
		CreatedAt:      s.timestamp(),
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages(`+messageColumns+`)
		SELECT ?,?,?,?,?,?
		WHERE EXISTS (SELECT 1 FROM threads WHERE id=?)
	`, m.ID, m.ThreadID, m.Text, m.AttachmentURL, m.AttachmentType, m.CreatedAt.UnixMilli(), m.ThreadID)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (s *SQLiteStore) UpdateMessageText(ctx context.Context, id, text string) (Message, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET text=? WHERE id=?`, text, id)
	if err != nil {
		return Message{}, fmt.Errorf("update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Message{}, ErrNotFound
	}
	return scanSQLiteMessage(s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=?`, id))
}

func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteThreadMessage(ctx context.Context, threadID, messageID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=? AND thread_id=?`, messageID, threadID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
