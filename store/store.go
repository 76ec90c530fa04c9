package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document - снимок одного документа коллекции
type Document struct {
	ID         string
	Collection string
	Data       map[string]any
	UpdateTime time.Time
}

// Ref возвращает ссылку на документ
func (d Document) Ref() DocRef {
	return DocRef{Collection: d.Collection, ID: d.ID}
}

// CollectionRef - ссылка на коллекцию (в том числе вложенную: chats/{id}/messages)
type CollectionRef struct {
	Path string
}

// Collection собирает путь коллекции из сегментов
func Collection(segments ...string) CollectionRef {
	return CollectionRef{Path: strings.Join(segments, "/")}
}

func (c CollectionRef) Doc(id string) DocRef {
	return DocRef{Collection: c.Path, ID: id}
}

// NewDoc возвращает ссылку на документ со сгенерированным ID
func (c CollectionRef) NewDoc() DocRef {
	return c.Doc(NewID())
}

func (c CollectionRef) Query() Query {
	return Query{Collection: c.Path}
}

func (c CollectionRef) Where(field string, op Op, value any) Query {
	return c.Query().Where(field, op, value)
}

func (c CollectionRef) OrderBy(field string, dir Direction) Query {
	return c.Query().OrderBy(field, dir)
}

// DocRef - ссылка на документ
type DocRef struct {
	Collection string
	ID         string
}

func (d DocRef) Path() string {
	return d.Collection + "/" + d.ID
}

// Unsubscribe останавливает живую подписку. После возврата ни одно изменение,
// сделанное позже, не попадет в колбэк; уже запущенный колбэк может завершиться.
type Unsubscribe func()

// SnapshotFunc получает полный результат запроса при каждом изменении
type SnapshotFunc func(docs []Document, err error)

// Store - типизированный клиент удаленного хранилища документов.
// Бизнес-логики не содержит, только формирование запросов.
type Store interface {
	Get(ctx context.Context, ref DocRef) (Document, error)
	// Create падает с ErrAlreadyExists, если документ уже есть
	Create(ctx context.Context, ref DocRef, data map[string]any) error
	Set(ctx context.Context, ref DocRef, data map[string]any) error
	// Update падает с ErrNotFound, если документа нет
	Update(ctx context.Context, ref DocRef, updates map[string]any) error
	Add(ctx context.Context, col CollectionRef, data map[string]any) (string, error)
	Delete(ctx context.Context, ref DocRef) error
	Query(ctx context.Context, q Query) ([]Document, error)
	Subscribe(q Query, fn SnapshotFunc) Unsubscribe
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Tx - операции внутри транзакции. Все чтения должны идти до записей.
type Tx interface {
	Get(ref DocRef) (Document, error)
	Query(q Query) ([]Document, error)
	Create(ref DocRef, data map[string]any) error
	Set(ref DocRef, data map[string]any) error
	Update(ref DocRef, updates map[string]any) error
}

// NewID генерирует идентификатор документа
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
