package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/store"
)

type snapshots struct {
	mu   sync.Mutex
	docs [][]store.Document
	ch   chan struct{}
}

func newSnapshots() *snapshots {
	return &snapshots{ch: make(chan struct{}, 64)}
}

func (s *snapshots) fn(docs []store.Document, err error) {
	if err != nil {
		return
	}
	s.mu.Lock()
	s.docs = append(s.docs, docs)
	s.mu.Unlock()
	s.ch <- struct{}{}
}

func (s *snapshots) wait(t *testing.T) []store.Document {
	t.Helper()
	select {
	case <-s.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot not delivered")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[len(s.docs)-1]
}

func (s *snapshots) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func TestCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	ref := store.Collection("users").Doc("u1")
	require.NoError(t, s.Create(ctx, ref, map[string]any{
		"username":  "alice",
		"createdAt": store.ServerTimestamp,
	}))
	assert.ErrorIs(t, s.Create(ctx, ref, map[string]any{}), store.ErrAlreadyExists)

	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "alice", store.String(doc.Data, "username"))
	assert.False(t, store.Time(doc.Data, "createdAt").IsZero())

	require.NoError(t, s.Update(ctx, ref, map[string]any{"postsCount": store.Increment(1)}))
	doc, err = s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Int(doc.Data, "postsCount"))
	assert.Equal(t, "alice", store.String(doc.Data, "username"))

	err = s.Update(ctx, store.Collection("users").Doc("missing"), map[string]any{"a": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Delete(ctx, ref))
	_, err = s.Get(ctx, ref)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReturnedDataIsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	ref := store.Collection("posts").Doc("p1")
	require.NoError(t, s.Set(ctx, ref, map[string]any{"likedBy": []string{"u1"}}))

	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	doc.Data["likedBy"] = []any{"hacker"}

	doc, err = s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, store.Strings(doc.Data, "likedBy"))
}

func TestServerTimestampsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))
	col := store.Collection("posts")

	id1, err := s.Add(ctx, col, map[string]any{"createdAt": store.ServerTimestamp})
	require.NoError(t, err)
	id2, err := s.Add(ctx, col, map[string]any{"createdAt": store.ServerTimestamp})
	require.NoError(t, err)

	d1, _ := s.Get(ctx, col.Doc(id1))
	d2, _ := s.Get(ctx, col.Doc(id2))
	assert.True(t, store.Time(d2.Data, "createdAt").After(store.Time(d1.Data, "createdAt")))
}

func TestTransactionIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := store.Collection("chats").Doc("a")
	require.NoError(t, s.Set(ctx, a, map[string]any{"n": 1}))

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.Update(a, map[string]any{"n": store.Increment(1)}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// вторая операция падает на проверке, первая тоже не применяется
	err = s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		_ = tx.Update(a, map[string]any{"n": store.Increment(1)})
		return tx.Update(store.Collection("chats").Doc("b"), map[string]any{"n": 1})
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	doc, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Int(doc.Data, "n"))
}

func TestTransactionRejectsReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	ref := store.Collection("x").Doc("1")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Set(ref, map[string]any{"a": 1}); err != nil {
			return err
		}
		_, err := tx.Get(ref)
		return err
	})
	assert.ErrorIs(t, err, store.ErrReadAfterWrite)
}

func TestSubscribeDeliversInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	col := store.Collection("posts")
	require.NoError(t, s.Set(ctx, col.Doc("p1"), map[string]any{"createdAt": store.ServerTimestamp}))

	snap := newSnapshots()
	unsubscribe := s.Subscribe(col.OrderBy("createdAt", store.Desc), snap.fn)
	defer unsubscribe()

	docs := snap.wait(t)
	require.Len(t, docs, 1)

	require.NoError(t, s.Set(ctx, col.Doc("p2"), map[string]any{"createdAt": store.ServerTimestamp}))
	docs = snap.wait(t)
	require.Len(t, docs, 2)
	assert.Equal(t, "p2", docs[0].ID)
}

func TestSubscribeSkipsUnchangedResult(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	col := store.Collection("posts")

	snap := newSnapshots()
	unsubscribe := s.Subscribe(col.Where("authorId", store.Equal, "u1"), snap.fn)
	defer unsubscribe()
	assert.Empty(t, snap.wait(t))

	// запись, не влияющая на результат запроса
	require.NoError(t, s.Set(ctx, col.Doc("p1"), map[string]any{"authorId": "u2"}))
	require.NoError(t, s.Set(ctx, col.Doc("p2"), map[string]any{"authorId": "u1"}))
	docs := snap.wait(t)
	require.Len(t, docs, 1)
	assert.Equal(t, "p2", docs[0].ID)
	assert.Equal(t, 2, snap.count())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	col := store.Collection("posts")

	snap := newSnapshots()
	unsubscribe := s.Subscribe(col.Query(), snap.fn)
	snap.wait(t)
	assert.Equal(t, 1, s.ActiveSubscriptions())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, s.ActiveSubscriptions())

	require.NoError(t, s.Set(ctx, col.Doc("p1"), map[string]any{"a": 1}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, snap.count())
}

func TestClosedStore(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	_, err := s.Get(context.Background(), store.Collection("a").Doc("b"))
	assert.ErrorIs(t, err, store.ErrClosed)

	errs := make(chan error, 1)
	s.Subscribe(store.Collection("a").Query(), func(_ []store.Document, err error) {
		errs <- err
	})
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, store.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("no error delivered")
	}
}
