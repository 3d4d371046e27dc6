package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

const threadColumns = `id, title, preview, pinned, icon, sort_index, created_at`
const messageColumns = `id, thread_id, text, attachment_url, attachment_type, created_at`

// PostgresStore is the durable persistence layer for threads and messages.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// Postgres keeps microseconds.
func (p *PostgresStore) timestamp() time.Time {
	return p.now().UTC().Truncate(time.Microsecond)
}

func scanThread(row pgx.Row) (Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.Title, &t.Preview, &t.Pinned, &t.Icon, &t.Index, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Thread{}, ErrNotFound
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, err
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ThreadID, &m.Text, &m.AttachmentURL, &m.AttachmentType, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, err
}

func (p *PostgresStore) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := p.pool.Query(ctx, `
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
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListMessages(ctx context.Context, threadIDs []string) ([]Message, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE thread_id = ANY($1)
		ORDER BY created_at ASC, id ASC
	`, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetThread(ctx context.Context, id string) (Thread, error) {
	return scanThread(p.pool.QueryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE id=$1`, id))
}

func (p *PostgresStore) CreateThread(ctx context.Context, in ThreadInput) (Thread, error) {
	t := Thread{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Preview:   in.Preview,
		Pinned:    in.Pinned,
		Icon:      in.Icon,
		Index:     in.Index,
		CreatedAt: p.timestamp(),
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO threads(`+threadColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, t.ID, t.Title, t.Preview, t.Pinned, t.Icon, t.Index, t.CreatedAt)
	if err != nil {
		return Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

// UpdateThread relies on COALESCE so nil patch fields keep the stored value.
func (p *PostgresStore) UpdateThread(ctx context.Context, id string, patch ThreadPatch) (Thread, error) {
	if patch.Empty() {
		return p.GetThread(ctx, id)
	}
	return scanThread(p.pool.QueryRow(ctx, `
		UPDATE threads SET
		  title      = COALESCE($2, title),
		  preview    = COALESCE($3, preview),
		  pinned     = COALESCE($4, pinned),
		  icon       = COALESCE($5, icon),
		  sort_index = COALESCE($6, sort_index)
		WHERE id=$1
		RETURNING `+threadColumns,
		id, patch.Title, patch.Preview, patch.Pinned, patch.Icon, patch.Index))
}

// DeleteThread removes messages before the thread inside one transaction.
func (p *PostgresStore) DeleteThread(ctx context.Context, id string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE thread_id=$1`, id); err != nil {
		return fmt.Errorf("delete thread messages: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM threads WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// InsertMessage returns ErrNotFound when the thread does not exist. The
// INSERT ... SELECT WHERE EXISTS form yields no row in that case.
func (p *PostgresStore) InsertMessage(ctx context.Context, in MessageInput) (Message, error) {
	m := Message{
		ID:             uuid.NewString(),
		ThreadID:       in.ThreadID,
		Text:           in.Text,
		AttachmentURL:  in.AttachmentURL,
		AttachmentType: in.AttachmentType,
		CreatedAt:      p.timestamp(),
	}
	var one int
	err := p.pool.QueryRow(ctx, `
		INSERT INTO messages(`+messageColumns+`)
		SELECT $1,$2,$3,$4,$5,$6
		WHERE EXISTS (SELECT 1 FROM threads WHERE id=$2)
		RETURNING 1
	`, m.ID, m.ThreadID, m.Text, m.AttachmentURL, m.AttachmentType, m.CreatedAt).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (p *PostgresStore) UpdateMessageText(ctx context.Context, id, text string) (Message, error) {
	return scanMessage(p.pool.QueryRow(ctx, `
		UPDATE messages SET text=$2 WHERE id=$1
		RETURNING `+messageColumns, id, text))
}

func (p *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteThreadMessage(ctx context.Context, threadID, messageID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM messages WHERE id=$1 AND thread_id=$2`, messageID, threadID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
