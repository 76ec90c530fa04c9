package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"darkchat/models"
	"darkchat/store"
	"darkchat/store/memstore"
)

const waitTimeout = 2 * time.Second

// testClock - общие часы для хранилища и сервисов
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, clock *testClock) *memstore.Store {
	t.Helper()
	s := memstore.New(memstore.WithClock(clock.Now))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newProfiles(s store.Store) *ProfileService {
	return NewProfileService(s, nil, nil, ProfileDefaults{
		Avatar:      "https://example.com/default.png",
		BioTemplate: "hello %s",
	})
}

func seedProfile(t *testing.T, profiles *ProfileService, id, username string) models.UserProfile {
	t.Helper()
	profile := profiles.NewProfile(id, username, username, false)
	created, err := profiles.EnsureProfile(context.Background(), profile)
	require.NoError(t, err)
	require.True(t, created)
	return profile
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}

// delayStore задерживает чтение отдельных документов
type delayStore struct {
	store.Store
	delays map[string]time.Duration
}

func (d *delayStore) Get(ctx context.Context, ref store.DocRef) (store.Document, error) {
	if delay, ok := d.delays[ref.Path()]; ok {
		time.Sleep(delay)
	}
	return d.Store.Get(ctx, ref)
}

// blockingStore держит Get по path, пока не отменят ctx вызова
type blockingStore struct {
	store.Store
	path      string
	entered   chan struct{}
	cancelled chan error
}

func (b *blockingStore) Get(ctx context.Context, ref store.DocRef) (store.Document, error) {
	if ref.Path() != b.path {
		return b.Store.Get(ctx, ref)
	}
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	b.cancelled <- ctx.Err()
	return store.Document{}, ctx.Err()
}
