package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of remote store operations",
		},
		[]string{"operation", "collection", "status"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of remote store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "collection"},
	)

	storeSnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_snapshots_total",
			Help: "Total number of live subscription snapshots delivered",
		},
		[]string{"collection", "status"},
	)

	storeActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_active_subscriptions",
			Help: "Number of live subscriptions currently open",
		},
	)
)

// Instrument оборачивает Store метриками Prometheus
func Instrument(s Store) Store {
	return &instrumented{next: s}
}

type instrumented struct {
	next Store
}

// collectionLabel убирает ID документов из пути: chats/{id}/messages
func collectionLabel(path string) string {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i += 2 {
		parts[i] = "{id}"
	}
	return strings.Join(parts, "/")
}

func record(operation, collection string, start time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case errors.Is(err, ErrAlreadyExists):
		status = "already_exists"
	default:
		status = "error"
	}
	label := collectionLabel(collection)
	storeOperationsTotal.WithLabelValues(operation, label, status).Inc()
	storeOperationDuration.WithLabelValues(operation, label).Observe(time.Since(start).Seconds())
}

func (s *instrumented) Get(ctx context.Context, ref DocRef) (Document, error) {
	start := time.Now()
	doc, err := s.next.Get(ctx, ref)
	record("get", ref.Collection, start, err)
	return doc, err
}

func (s *instrumented) Create(ctx context.Context, ref DocRef, data map[string]any) error {
	start := time.Now()
	err := s.next.Create(ctx, ref, data)
	record("create", ref.Collection, start, err)
	return err
}

func (s *instrumented) Set(ctx context.Context, ref DocRef, data map[string]any) error {
	start := time.Now()
	err := s.next.Set(ctx, ref, data)
	record("set", ref.Collection, start, err)
	return err
}

func (s *instrumented) Update(ctx context.Context, ref DocRef, updates map[string]any) error {
	start := time.Now()
	err := s.next.Update(ctx, ref, updates)
	record("update", ref.Collection, start, err)
	return err
}

func (s *instrumented) Add(ctx context.Context, col CollectionRef, data map[string]any) (string, error) {
	start := time.Now()
	id, err := s.next.Add(ctx, col, data)
	record("add", col.Path, start, err)
	return id, err
}

func (s *instrumented) Delete(ctx context.Context, ref DocRef) error {
	start := time.Now()
	err := s.next.Delete(ctx, ref)
	record("delete", ref.Collection, start, err)
	return err
}

func (s *instrumented) Query(ctx context.Context, q Query) ([]Document, error) {
	start := time.Now()
	docs, err := s.next.Query(ctx, q)
	record("query", q.Collection, start, err)
	return docs, err
}

func (s *instrumented) Subscribe(q Query, fn SnapshotFunc) Unsubscribe {
	label := collectionLabel(q.Collection)
	storeActiveSubscriptions.Inc()
	unsubscribe := s.next.Subscribe(q, func(docs []Document, err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		storeSnapshotsTotal.WithLabelValues(label, status).Inc()
		fn(docs, err)
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			storeActiveSubscriptions.Dec()
		})
	}
}

func (s *instrumented) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	start := time.Now()
	err := s.next.RunTransaction(ctx, fn)
	record("transaction", "", start, err)
	return err
}

func (s *instrumented) Close() error {
	return s.next.Close()
}
