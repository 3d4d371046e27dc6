package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a thread or message id does not exist.
var ErrNotFound = errors.New("not found")

// Thread is one conversation in the inbox.
type Thread struct {
	ID        string
	Title     string
	Preview   string
	Pinned    bool
	Icon      string
	Index     int
	CreatedAt time.Time
}

// Message belongs to exactly one thread. AttachmentType is "image", "file" or
// empty when there is no attachment.
type Message struct {
	ID             string
	ThreadID       string
	Text           string
	AttachmentURL  string
	AttachmentType string
	CreatedAt      time.Time
}

type ThreadInput struct {
	Title   string
	Preview string
	Pinned  bool
	Icon    string
	Index   int
}

// ThreadPatch updates only the non-nil fields.
type ThreadPatch struct {
	Title   *string
	Preview *string
	Pinned  *bool
	Icon    *string
	Index   *int
}

// Empty reports whether the patch changes nothing.
func (p ThreadPatch) Empty() bool {
	return p.Title == nil && p.Preview == nil && p.Pinned == nil && p.Icon == nil && p.Index == nil
}

type MessageInput struct {
	ThreadID       string
	Text           string
	AttachmentURL  string
	AttachmentType string
}

// Store persists threads and messages.
type Store interface {
	Ping(ctx context.Context) error
	Close()
	EnsureSchema(ctx context.Context) error

	// ListThreads orders by index, then creation time.
	ListThreads(ctx context.Context) ([]Thread, error)
	// ListMessages returns the messages of the given threads, oldest first.
	ListMessages(ctx context.Context, threadIDs []string) ([]Message, error)
	GetThread(ctx context.Context, id string) (Thread, error)
	CreateThread(ctx context.Context, in ThreadInput) (Thread, error)
	UpdateThread(ctx context.Context, id string, p ThreadPatch) (Thread, error)
	// DeleteThread removes the thread and all of its messages.
	DeleteThread(ctx context.Context, id string) error

	InsertMessage(ctx context.Context, in MessageInput) (Message, error)
	UpdateMessageText(ctx context.Context, id, text string) (Message, error)
	DeleteMessage(ctx context.Context, id string) error
	// DeleteThreadMessage deletes messageID only when it belongs to threadID.
	DeleteThreadMessage(ctx context.Context, threadID, messageID string) error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
