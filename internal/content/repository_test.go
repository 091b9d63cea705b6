package content

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpcadavid/libreria/internal/storage"
)

func newTestRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(context.Background(), db))
	return NewRepository(db), db
}

func TestEvents(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := r.CreateEvent(ctx, &Event{Title: "Club de lectura", Date: "2026-09-15", Location: "Sala 2"})
	require.NoError(t, err)

	evs, err := r.ListEvents(ctx, true)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "Club de lectura", evs[0].Title)
	assert.True(t, evs[0].Active)

	c, err := r.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c)

	require.NoError(t, r.DeleteEvent(ctx, id))
	assert.ErrorIs(t, r.DeleteEvent(ctx, id), ErrNotFound)

	_, err = r.CreateEvent(ctx, &Event{})
	assert.Error(t, err)
}

func TestPosts(t *testing.T) {
	r, db := newTestRepo(t)
	ctx := context.Background()

	res, err := db.Exec(`
		INSERT INTO users(name,email,password_hash,is_staff,created_unix,updated_unix)
		VALUES('admin','admin@x.co','x',1,0,0)`)
	require.NoError(t, err)
	authorID, err := res.LastInsertId()
	require.NoError(t, err)

	id, err := r.CreatePost(ctx, &Post{Title: "Novedades", Content: "Llegaron títulos nuevos", AuthorID: authorID})
	require.NoError(t, err)

	posts, err := r.ListPosts(ctx, true)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, authorID, posts[0].AuthorID)

	require.NoError(t, r.DeletePost(ctx, id))
	assert.ErrorIs(t, r.DeletePost(ctx, id), ErrNotFound)
}
