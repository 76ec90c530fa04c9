// Package sqlstore - хранилище документов поверх gorm (Postgres или SQLite).
// Документы лежат в одной таблице documents в виде JSON, запросы
// вычисляются в Go. Изменения между процессами рассылаются через Redis pub/sub.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"darkchat/db"
	"darkchat/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChangesChannel - канал Redis с уведомлениями об изменениях коллекций
const ChangesChannel = "darkchat:store:changes"

type changeEvent struct {
	Origin     string `json:"origin"`
	Collection string `json:"collection"`
}

type Store struct {
	orm      *gorm.DB
	postgres bool
	redis    *redis.Client
	logger   *zap.Logger
	origin   string

	// writeMu сериализует записи в SQLite
	writeMu sync.Mutex

	clockMu sync.Mutex
	clock   func() time.Time
	last    time.Time

	hub    *store.Hub
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Store)

// WithRedis включает рассылку изменений между процессами
func WithRedis(client *redis.Client) Option {
	return func(s *Store) {
		s.redis = client
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New создает хранилище поверх уже открытой и смигрированной базы
func New(orm *gorm.DB, opts ...Option) *Store {
	s := &Store{
		orm:      orm,
		postgres: db.IsPostgres(orm),
		logger:   zap.NewNop(),
		origin:   store.NewID(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = store.NewHub(s.Query)

	if s.redis != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		pubsub := s.redis.Subscribe(ctx, ChangesChannel)
		go s.listen(ctx, pubsub)
	}
	return s
}

func (s *Store) now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := s.clock().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) read(ctx context.Context) *gorm.DB {
	return db.GetReadOnlyDB(ctx, s.orm)
}

func rowToDocument(row db.DocumentRow) (store.Document, error) {
	data, err := decodeData(row.Data)
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{
		ID:         row.ID,
		Collection: row.Collection,
		Data:       data,
		UpdateTime: row.UpdatedAt.UTC(),
	}, nil
}

func getRow(tx *gorm.DB, ref store.DocRef, lock bool) (db.DocumentRow, error) {
	var row db.DocumentRow
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("collection = ? AND id = ?", ref.Collection, ref.ID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, store.ErrNotFound
	}
	if err != nil {
		return row, fmt.Errorf("failed to get document %s: %w", ref.Path(), err)
	}
	return row, nil
}

func queryRows(tx *gorm.DB, q store.Query, lock bool) ([]store.Document, error) {
	var rows []db.DocumentRow
	dbq := tx
	if lock {
		dbq = dbq.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := dbq.Where("collection = ?", q.Collection).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := rowToDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return q.Apply(docs), nil
}

func (s *Store) Get(ctx context.Context, ref store.DocRef) (store.Document, error) {
	row, err := getRow(s.read(ctx), ref, false)
	if err != nil {
		return store.Document{}, err
	}
	return rowToDocument(row)
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	return queryRows(s.read(ctx), q, false)
}

func (s *Store) Create(ctx context.Context, ref store.DocRef, data map[string]any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Create(ref, data)
	})
}

func (s *Store) Set(ctx context.Context, ref store.DocRef, data map[string]any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Set(ref, data)
	})
}

func (s *Store) Update(ctx context.Context, ref store.DocRef, updates map[string]any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Update(ref, updates)
	})
}

func (s *Store) Add(ctx context.Context, col store.CollectionRef, data map[string]any) (string, error) {
	ref := col.NewDoc()
	if err := s.Create(ctx, ref, data); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) Delete(ctx context.Context, ref store.DocRef) error {
	s.lockWrites()
	err := db.GetWriteDB(ctx, s.orm).
		Where("collection = ? AND id = ?", ref.Collection, ref.ID).
		Delete(&db.DocumentRow{}).Error
	s.unlockWrites()
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", ref.Path(), err)
	}
	s.notify(ctx, ref.Collection)
	return nil
}

func (s *Store) lockWrites() {
	if !s.postgres {
		s.writeMu.Lock()
	}
}

func (s *Store) unlockWrites() {
	if !s.postgres {
		s.writeMu.Unlock()
	}
}

// RunTransaction выполняет fn в транзакции базы. На Postgres чтения берут
// блокировку строк (FOR UPDATE), на SQLite транзакции сериализуются.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lockWrites()
	var staged *sqlTx
	err := db.GetWriteDB(ctx, s.orm).Transaction(func(gtx *gorm.DB) error {
		staged = &sqlTx{s: s, db: gtx}
		if err := fn(ctx, staged); err != nil {
			return err
		}
		return staged.commit(s.now())
	})
	s.unlockWrites()
	if err != nil {
		return err
	}
	for _, col := range staged.touched() {
		s.notify(ctx, col)
	}
	return nil
}

func (s *Store) Subscribe(q store.Query, fn store.SnapshotFunc) store.Unsubscribe {
	return s.hub.Subscribe(q, fn)
}

// notify будит локальных подписчиков и публикует изменение для других процессов
func (s *Store) notify(ctx context.Context, collection string) {
	s.hub.Notify(collection)
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(changeEvent{Origin: s.origin, Collection: collection})
	if err != nil {
		return
	}
	if err := s.redis.Publish(context.WithoutCancel(ctx), ChangesChannel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish store change", zap.String("collection", collection), zap.Error(err))
	}
}

func (s *Store) listen(ctx context.Context, pubsub *redis.PubSub) {
	defer close(s.done)
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("failed to unmarshal store change", zap.Error(err))
				continue
			}
			if event.Origin == s.origin {
				continue
			}
			s.hub.Notify(event.Collection)
		}
	}
}

func (s *Store) ActiveSubscriptions() int {
	return s.hub.Active()
}

func (s *Store) Close() error {
	s.hub.Close()
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

type txOp struct {
	kind string
	ref  store.DocRef
	data map[string]any
}

type sqlTx struct {
	s     *Store
	db    *gorm.DB
	ops   []txOp
	wrote bool
}

func (tx *sqlTx) Get(ref store.DocRef) (store.Document, error) {
	if tx.wrote {
		return store.Document{}, store.ErrReadAfterWrite
	}
	row, err := getRow(tx.db, ref, tx.s.postgres)
	if err != nil {
		return store.Document{}, err
	}
	return rowToDocument(row)
}

func (tx *sqlTx) Query(q store.Query) ([]store.Document, error) {
	if tx.wrote {
		return nil, store.ErrReadAfterWrite
	}
	return queryRows(tx.db, q, tx.s.postgres)
}

func (tx *sqlTx) Create(ref store.DocRef, data map[string]any) error {
	tx.stage("create", ref, data)
	return nil
}

func (tx *sqlTx) Set(ref store.DocRef, data map[string]any) error {
	tx.stage("set", ref, data)
	return nil
}

func (tx *sqlTx) Update(ref store.DocRef, updates map[string]any) error {
	tx.stage("update", ref, updates)
	return nil
}

func (tx *sqlTx) stage(kind string, ref store.DocRef, data map[string]any) {
	tx.wrote = true
	tx.ops = append(tx.ops, txOp{kind: kind, ref: ref, data: store.CloneMap(data)})
}

func (tx *sqlTx) commit(now time.Time) error {
	for _, op := range tx.ops {
		var err error
		switch op.kind {
		case "create":
			err = tx.insert(op.ref, store.ApplySet(op.data, now), now)
		case "set":
			err = tx.upsert(op.ref, store.ApplySet(op.data, now), now)
		case "update":
			var row db.DocumentRow
			row, err = getRow(tx.db, op.ref, tx.s.postgres)
			if err != nil {
				return err
			}
			var existing map[string]any
			existing, err = decodeData(row.Data)
			if err != nil {
				return err
			}
			err = tx.upsert(op.ref, store.ApplyUpdate(existing, op.data, now), now)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (tx *sqlTx) row(ref store.DocRef, data map[string]any, now time.Time) (*db.DocumentRow, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return &db.DocumentRow{Collection: ref.Collection, ID: ref.ID, Data: raw, UpdatedAt: now}, nil
}

func (tx *sqlTx) insert(ref store.DocRef, data map[string]any, now time.Time) error {
	row, err := tx.row(ref, data, now)
	if err != nil {
		return err
	}
	err = tx.db.Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create document %s: %w", ref.Path(), err)
	}
	return nil
}

func (tx *sqlTx) upsert(ref store.DocRef, data map[string]any, now time.Time) error {
	row, err := tx.row(ref, data, now)
	if err != nil {
		return err
	}
	err = tx.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", ref.Path(), err)
	}
	return nil
}

func (tx *sqlTx) touched() []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range tx.ops {
		if !seen[op.ref.Collection] {
			seen[op.ref.Collection] = true
			out = append(out, op.ref.Collection)
		}
	}
	sort.Strings(out)
	return out
}
