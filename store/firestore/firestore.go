// Package firestore - бэкенд хранилища документов на Cloud Firestore.
// Живые подписки идут через Query.Snapshots, трансформы записи
// переводятся в нативные трансформы Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	gfs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"darkchat/store"
)

type Store struct {
	client *gfs.Client
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[uint64]context.CancelFunc
	nextID uint64
	active atomic.Int64
}

// NewFromApp открывает Firestore-клиент из приложения Firebase
func NewFromApp(ctx context.Context, app *firebase.App, logger *zap.Logger) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firestore: %w", err)
	}
	return New(client, logger), nil
}

func New(client *gfs.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client: client,
		logger: logger,
		subs:   make(map[uint64]context.CancelFunc),
	}
}

// translateError приводит gRPC-коды к ошибкам хранилища
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
	}
	return err
}

func (s *Store) doc(ref store.DocRef) *gfs.DocumentRef {
	return s.client.Collection(ref.Collection).Doc(ref.ID)
}

func decodeSnapshot(collection string, snap *gfs.DocumentSnapshot) store.Document {
	return store.Document{
		ID:         snap.Ref.ID,
		Collection: collection,
		Data:       store.NormalizeMap(snap.Data()),
		UpdateTime: snap.UpdateTime.UTC(),
	}
}

// encodeValue переводит трансформы хранилища в значения Firestore
func encodeValue(v any) any {
	if store.IsServerTimestamp(v) {
		return gfs.ServerTimestamp
	}
	switch x := store.Normalize(v).(type) {
	case store.IncrementOp:
		return gfs.Increment(x.By)
	case store.ArrayUnionOp:
		return gfs.ArrayUnion(x.Values...)
	case store.ArrayRemoveOp:
		return gfs.ArrayRemove(x.Values...)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e)
		}
		return out
	default:
		return x
	}
}

func encodeData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = encodeValue(v)
	}
	return out
}

// encodeUpdates - ключи трактуются буквально (FieldPath), без разбора точек
func encodeUpdates(updates map[string]any) []gfs.Update {
	out := make([]gfs.Update, 0, len(updates))
	for k, v := range updates {
		out = append(out, gfs.Update{FieldPath: gfs.FieldPath{k}, Value: encodeValue(v)})
	}
	return out
}

func (s *Store) query(q store.Query) gfs.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), f.Value)
	}
	for _, o := range q.Orders {
		dir := gfs.Asc
		if o.Dir == store.Desc {
			dir = gfs.Desc
		}
		fq = fq.OrderBy(o.Field, dir)
	}
	if q.Max > 0 {
		fq = fq.Limit(q.Max)
	}
	return fq
}

func collect(collection string, it *gfs.DocumentIterator) ([]store.Document, error) {
	defer it.Stop()
	var docs []store.Document
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translateError(err)
		}
		docs = append(docs, decodeSnapshot(collection, snap))
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, ref store.DocRef) (store.Document, error) {
	snap, err := s.doc(ref).Get(ctx)
	if err != nil {
		return store.Document{}, translateError(err)
	}
	return decodeSnapshot(ref.Collection, snap), nil
}

func (s *Store) Create(ctx context.Context, ref store.DocRef, data map[string]any) error {
	_, err := s.doc(ref).Create(ctx, encodeData(data))
	return translateError(err)
}

func (s *Store) Set(ctx context.Context, ref store.DocRef, data map[string]any) error {
	_, err := s.doc(ref).Set(ctx, encodeData(data))
	return translateError(err)
}

func (s *Store) Update(ctx context.Context, ref store.DocRef, updates map[string]any) error {
	_, err := s.doc(ref).Update(ctx, encodeUpdates(updates))
	return translateError(err)
}

func (s *Store) Add(ctx context.Context, col store.CollectionRef, data map[string]any) (string, error) {
	ref := col.NewDoc()
	if err := s.Create(ctx, ref, data); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) Delete(ctx context.Context, ref store.DocRef) error {
	_, err := s.doc(ref).Delete(ctx)
	return translateError(err)
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	return collect(q.Collection, s.query(q).Documents(ctx))
}

// Subscribe слушает Query.Snapshots до отписки
func (s *Store) Subscribe(q store.Query, fn store.SnapshotFunc) store.Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	var closed atomic.Bool

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = cancel
	s.mu.Unlock()
	s.active.Add(1)

	it := s.query(q).Snapshots(ctx)
	go func() {
		defer it.Stop()
		for {
			qs, err := it.Next()
			if closed.Load() {
				return
			}
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				s.logger.Warn("firestore snapshot listener failed", zap.String("collection", q.Collection), zap.Error(err))
				fn(nil, translateError(err))
				return
			}
			docs, err := collect(q.Collection, qs.Documents)
			if closed.Load() {
				return
			}
			fn(docs, err)
		}
	}()

	return func() {
		if !closed.CompareAndSwap(false, true) {
			return
		}
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		s.active.Add(-1)
		cancel()
	}
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, ftx *gfs.Transaction) error {
		return fn(ctx, &fsTx{s: s, tx: ftx})
	})
	return translateError(err)
}

func (s *Store) ActiveSubscriptions() int {
	return int(s.active.Load())
}

func (s *Store) Close() error {
	s.mu.Lock()
	for id, cancel := range s.subs {
		cancel()
		delete(s.subs, id)
	}
	s.mu.Unlock()
	return s.client.Close()
}

type fsTx struct {
	s     *Store
	tx    *gfs.Transaction
	wrote bool
}

func (t *fsTx) Get(ref store.DocRef) (store.Document, error) {
	if t.wrote {
		return store.Document{}, store.ErrReadAfterWrite
	}
	snap, err := t.tx.Get(t.s.doc(ref))
	if err != nil {
		return store.Document{}, translateError(err)
	}
	return decodeSnapshot(ref.Collection, snap), nil
}

func (t *fsTx) Query(q store.Query) ([]store.Document, error) {
	if t.wrote {
		return nil, store.ErrReadAfterWrite
	}
	return collect(q.Collection, t.tx.Documents(t.s.query(q)))
}

func (t *fsTx) Create(ref store.DocRef, data map[string]any) error {
	t.wrote = true
	return translateError(t.tx.Create(t.s.doc(ref), encodeData(data)))
}

func (t *fsTx) Set(ref store.DocRef, data map[string]any) error {
	t.wrote = true
	return translateError(t.tx.Set(t.s.doc(ref), encodeData(data)))
}

func (t *fsTx) Update(ref store.DocRef, updates map[string]any) error {
	t.wrote = true
	return translateError(t.tx.Update(t.s.doc(ref), encodeUpdates(updates)))
}
