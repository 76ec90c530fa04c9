// Package memstore - хранилище документов в памяти процесса.
// Используется в тестах и в локальном демо-режиме.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"darkchat/store"
)

type record struct {
	data    map[string]any
	updated time.Time
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]record
	clock       func() time.Time
	last        time.Time
	closed      bool

	hub *store.Hub
}

type Option func(*Store)

// WithClock подменяет часы сервера (для тестов)
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]record),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = store.NewHub(s.Query)
	return s
}

// now возвращает строго возрастающее время сервера, вызывается под s.mu
func (s *Store) now() time.Time {
	t := s.clock().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) Get(ctx context.Context, ref store.DocRef) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Document{}, store.ErrClosed
	}
	return s.get(ref)
}

func (s *Store) get(ref store.DocRef) (store.Document, error) {
	rec, ok := s.collections[ref.Collection][ref.ID]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return store.Document{
		ID:         ref.ID,
		Collection: ref.Collection,
		Data:       store.CloneMap(rec.data),
		UpdateTime: rec.updated,
	}, nil
}

func (s *Store) put(ref store.DocRef, data map[string]any, now time.Time) {
	col, ok := s.collections[ref.Collection]
	if !ok {
		col = make(map[string]record)
		s.collections[ref.Collection] = col
	}
	col[ref.ID] = record{data: data, updated: now}
}

func (s *Store) Create(ctx context.Context, ref store.DocRef, data map[string]any) error {
	return s.write(ctx, ref.Collection, func(now time.Time) error {
		return s.create(ref, data, now)
	})
}

func (s *Store) create(ref store.DocRef, data map[string]any, now time.Time) error {
	if _, ok := s.collections[ref.Collection][ref.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.put(ref, store.ApplySet(data, now), now)
	return nil
}

func (s *Store) Set(ctx context.Context, ref store.DocRef, data map[string]any) error {
	return s.write(ctx, ref.Collection, func(now time.Time) error {
		s.put(ref, store.ApplySet(data, now), now)
		return nil
	})
}

func (s *Store) Update(ctx context.Context, ref store.DocRef, updates map[string]any) error {
	return s.write(ctx, ref.Collection, func(now time.Time) error {
		return s.update(ref, updates, now)
	})
}

func (s *Store) update(ref store.DocRef, updates map[string]any, now time.Time) error {
	rec, ok := s.collections[ref.Collection][ref.ID]
	if !ok {
		return store.ErrNotFound
	}
	s.put(ref, store.ApplyUpdate(rec.data, updates, now), now)
	return nil
}

func (s *Store) Add(ctx context.Context, col store.CollectionRef, data map[string]any) (string, error) {
	ref := col.NewDoc()
	if err := s.Create(ctx, ref, data); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) Delete(ctx context.Context, ref store.DocRef) error {
	return s.write(ctx, ref.Collection, func(time.Time) error {
		delete(s.collections[ref.Collection], ref.ID)
		return nil
	})
}

// write выполняет мутацию под блокировкой и уведомляет подписчиков коллекции
func (s *Store) write(ctx context.Context, collection string, fn func(now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	err := fn(s.now())
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.hub.Notify(collection)
	return nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return s.query(q), nil
}

func (s *Store) query(q store.Query) []store.Document {
	col := s.collections[q.Collection]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		rec := col[id]
		if !q.Matches(rec.data) {
			continue
		}
		docs = append(docs, store.Document{
			ID:         id,
			Collection: q.Collection,
			Data:       store.CloneMap(rec.data),
			UpdateTime: rec.updated,
		})
	}
	return q.Apply(docs)
}

func (s *Store) Subscribe(q store.Query, fn store.SnapshotFunc) store.Unsubscribe {
	return s.hub.Subscribe(q, fn)
}

// RunTransaction выполняет fn под эксклюзивной блокировкой; записи применяются
// только если fn вернула nil. Внутри fn можно пользоваться только tx.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	tx := &memTx{s: s}
	err := fn(ctx, tx)
	if err == nil {
		err = tx.commit(s.now())
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, col := range tx.touched() {
		s.hub.Notify(col)
	}
	return nil
}

// ActiveSubscriptions - число открытых подписок
func (s *Store) ActiveSubscriptions() int {
	return s.hub.Active()
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

type txOp struct {
	kind string
	ref  store.DocRef
	data map[string]any
}

type memTx struct {
	s     *Store
	ops   []txOp
	wrote bool
}

func (tx *memTx) Get(ref store.DocRef) (store.Document, error) {
	if tx.wrote {
		return store.Document{}, store.ErrReadAfterWrite
	}
	return tx.s.get(ref)
}

func (tx *memTx) Query(q store.Query) ([]store.Document, error) {
	if tx.wrote {
		return nil, store.ErrReadAfterWrite
	}
	return tx.s.query(q), nil
}

func (tx *memTx) Create(ref store.DocRef, data map[string]any) error {
	tx.wrote = true
	tx.ops = append(tx.ops, txOp{kind: "create", ref: ref, data: store.CloneMap(data)})
	return nil
}

func (tx *memTx) Set(ref store.DocRef, data map[string]any) error {
	tx.wrote = true
	tx.ops = append(tx.ops, txOp{kind: "set", ref: ref, data: store.CloneMap(data)})
	return nil
}

func (tx *memTx) Update(ref store.DocRef, updates map[string]any) error {
	tx.wrote = true
	tx.ops = append(tx.ops, txOp{kind: "update", ref: ref, data: updates})
	return nil
}

// commit проверяет все операции до применения, чтобы транзакция была атомарной
func (tx *memTx) commit(now time.Time) error {
	pending := make(map[string]bool)
	for _, op := range tx.ops {
		_, exists := tx.s.collections[op.ref.Collection][op.ref.ID]
		exists = exists || pending[op.ref.Path()]
		switch op.kind {
		case "create":
			if exists {
				return store.ErrAlreadyExists
			}
		case "update":
			if !exists {
				return store.ErrNotFound
			}
		}
		pending[op.ref.Path()] = true
	}

	for _, op := range tx.ops {
		var err error
		switch op.kind {
		case "create", "set":
			tx.s.put(op.ref, store.ApplySet(op.data, now), now)
		case "update":
			err = tx.s.update(op.ref, op.data, now)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (tx *memTx) touched() []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range tx.ops {
		if !seen[op.ref.Collection] {
			seen[op.ref.Collection] = true
			out = append(out, op.ref.Collection)
		}
	}
	return out
}
