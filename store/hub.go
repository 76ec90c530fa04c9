package store

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Fetcher выполняет запрос к бэкенду для очередного снимка подписки
type Fetcher func(ctx context.Context, q Query) ([]Document, error)

// Hub раздает снимки живым подпискам для self-hosted бэкендов.
// У каждой подписки своя горутина доставки: снимки одной подписки приходят
// в порядке изменений, промежуточные могут склеиваться, последний доставляется всегда.
type Hub struct {
	fetch Fetcher

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

type subscription struct {
	q    Query
	fn   SnapshotFunc
	wake chan struct{}
	done chan struct{}

	closed atomic.Bool
	last   []Document
	sent   bool
}

func NewHub(fetch Fetcher) *Hub {
	return &Hub{
		fetch: fetch,
		subs:  make(map[uint64]*subscription),
	}
}

// Subscribe регистрирует подписку и планирует первый снимок
func (h *Hub) Subscribe(q Query, fn SnapshotFunc) Unsubscribe {
	sub := &subscription{
		q:    q,
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	sub.wake <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		go fn(nil, ErrClosed)
		return func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = sub
	h.mu.Unlock()

	go h.deliver(sub)

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.done)
		}
	}
}

// Notify планирует новый снимок для всех подписок на коллекцию
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.q.Collection != collection {
			continue
		}
		select {
		case sub.wake <- struct{}{}:
		default:
			// снимок уже запланирован
		}
	}
}

// Active возвращает число активных подписок
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close останавливает все подписки
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*subscription)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.done)
		}
	}
}

func (h *Hub) deliver(sub *subscription) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sub.done
		cancel()
	}()

	for {
		select {
		case <-sub.done:
			return
		case <-sub.wake:
		}

		docs, err := h.fetch(ctx, sub.q)
		if sub.closed.Load() {
			return
		}
		if err == nil && sub.sent && reflect.DeepEqual(docs, sub.last) {
			continue
		}
		if err == nil {
			sub.last = CloneDocuments(docs)
			sub.sent = true
		}
		sub.fn(docs, err)
	}
}
