package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tick hands out strictly increasing timestamps so ordering is deterministic.
type tick struct{ t time.Time }

func (k *tick) now() time.Time {
	k.t = k.t.Add(time.Second)
	return k.t
}

func newTick() *tick {
	return &tick{t: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func openSQLite(t *testing.T) Store {
	t.Helper()
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "inbox.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema must be re-runnable")

	s.now = newTick().now
	return s
}

// Runs only when TEST_DB_URL points at a disposable Postgres database.
func openPostgres(t *testing.T) Store {
	t.Helper()
	dbURL := os.Getenv("TEST_DB_URL")
	if dbURL == "" {
		t.Skip("TEST_DB_URL not set")
	}
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(ctx))

	_, err = s.pool.Exec(ctx, `TRUNCATE messages, threads`)
	require.NoError(t, err)

	s.now = newTick().now
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, openSQLite)
}

func TestPostgresStore(t *testing.T) {
	runStoreSuite(t, openPostgres)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.EnsureSchema(ctx))
	th, err := s.CreateThread(ctx, ThreadInput{Title: "t", Preview: "p"})
	require.NoError(t, err)

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, th, got)
}

func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	t.Run("CreateAndGetThread", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		th, err := s.CreateThread(ctx, ThreadInput{Title: "About Me", Preview: "Hi", Pinned: true, Icon: "👋", Index: 2})
		require.NoError(t, err)
		assert.NotEmpty(t, th.ID)

		got, err := s.GetThread(ctx, th.ID)
		require.NoError(t, err)
		assert.Equal(t, th, got)

		_, err = s.GetThread(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListThreadsOrdersByIndexThenCreation", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		c, _ := s.CreateThread(ctx, ThreadInput{Title: "c", Preview: "p", Index: 1})
		a, _ := s.CreateThread(ctx, ThreadInput{Title: "a", Preview: "p", Index: 0})
		b, _ := s.CreateThread(ctx, ThreadInput{Title: "b", Preview: "p", Index: 1})

		list, err := s.ListThreads(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{a.ID, c.ID, b.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("UpdateThreadPatchesOnlyGivenFields", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		th, _ := s.CreateThread(ctx, ThreadInput{Title: "old", Preview: "prev", Icon: "x", Index: 3})

		title := "new"
		pinned := true
		got, err := s.UpdateThread(ctx, th.ID, ThreadPatch{Title: &title, Pinned: &pinned})
		require.NoError(t, err)

		want := th
		want.Title = "new"
		want.Pinned = true
		assert.Equal(t, want, got)

		empty := ""
		zero := 0
		got, err = s.UpdateThread(ctx, th.ID, ThreadPatch{Icon: &empty, Index: &zero})
		require.NoError(t, err)
		assert.Equal(t, "", got.Icon)
		assert.Equal(t, 0, got.Index)
		assert.Equal(t, "new", got.Title)

		_, err = s.UpdateThread(ctx, "missing", ThreadPatch{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("MessagesAreGroupedAndOrdered", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		t1, _ := s.CreateThread(ctx, ThreadInput{Title: "one", Preview: "p"})
		t2, _ := s.CreateThread(ctx, ThreadInput{Title: "two", Preview: "p"})
		other, _ := s.CreateThread(ctx, ThreadInput{Title: "other", Preview: "p"})

		m1, err := s.InsertMessage(ctx, MessageInput{ThreadID: t1.ID, Text: "first"})
		require.NoError(t, err)
		m2, err := s.InsertMessage(ctx, MessageInput{ThreadID: t2.ID, AttachmentURL: "https://cdn/x.png", AttachmentType: "image"})
		require.NoError(t, err)
		m3, err := s.InsertMessage(ctx, MessageInput{ThreadID: t1.ID, Text: "second"})
		require.NoError(t, err)
		_, err = s.InsertMessage(ctx, MessageInput{ThreadID: other.ID, Text: "ignored"})
		require.NoError(t, err)

		msgs, err := s.ListMessages(ctx, []string{t1.ID, t2.ID})
		require.NoError(t, err)
		assert.Equal(t, []Message{m1, m2, m3}, msgs)

		none, err := s.ListMessages(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("InsertMessageIntoMissingThread", func(t *testing.T) {
		s := open(t)
		_, err := s.InsertMessage(context.Background(), MessageInput{ThreadID: "missing", Text: "hi"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateAndDeleteMessage", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		th, _ := s.CreateThread(ctx, ThreadInput{Title: "t", Preview: "p"})
		m, _ := s.InsertMessage(ctx, MessageInput{ThreadID: th.ID, Text: "draft"})

		got, err := s.UpdateMessageText(ctx, m.ID, "final")
		require.NoError(t, err)
		m.Text = "final"
		assert.Equal(t, m, got)

		_, err = s.UpdateMessageText(ctx, "missing", "x")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.DeleteMessage(ctx, m.ID))
		assert.ErrorIs(t, s.DeleteMessage(ctx, m.ID), ErrNotFound)
	})

	t.Run("DeleteThreadMessageChecksOwnership", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		t1, _ := s.CreateThread(ctx, ThreadInput{Title: "a", Preview: "p"})
		t2, _ := s.CreateThread(ctx, ThreadInput{Title: "b", Preview: "p"})
		m, _ := s.InsertMessage(ctx, MessageInput{ThreadID: t1.ID, Text: "hello"})

		assert.ErrorIs(t, s.DeleteThreadMessage(ctx, t2.ID, m.ID), ErrNotFound)
		require.NoError(t, s.DeleteThreadMessage(ctx, t1.ID, m.ID))

		msgs, _ := s.ListMessages(ctx, []string{t1.ID})
		assert.Empty(t, msgs)
	})

	t.Run("DeleteThreadRemovesMessages", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		th, _ := s.CreateThread(ctx, ThreadInput{Title: "t", Preview: "p"})
		_, _ = s.InsertMessage(ctx, MessageInput{ThreadID: th.ID, Text: "one"})
		_, _ = s.InsertMessage(ctx, MessageInput{ThreadID: th.ID, Text: "two"})

		require.NoError(t, s.DeleteThread(ctx, th.ID))

		_, err := s.GetThread(ctx, th.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		msgs, err := s.ListMessages(ctx, []string{th.ID})
		require.NoError(t, err)
		assert.Empty(t, msgs)

		assert.ErrorIs(t, s.DeleteThread(ctx, th.ID), ErrNotFound)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, open(t).Ping(context.Background()))
	})
}
