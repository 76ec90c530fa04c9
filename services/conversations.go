package services

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"darkchat/models"
	"darkchat/store"
)

// derivationLimit - сколько чатов одного снимка обогащается одновременно
const derivationLimit = 8

type ConversationService struct {
	base
	profiles *ProfileService
}

func NewConversationService(s store.Store, profiles *ProfileService, opts ...Option) *ConversationService {
	return &ConversationService{base: newBase(s, opts), profiles: profiles}
}

func chatsQuery(selfID string) store.Query {
	return store.Collection(models.ChatsCollection).Where("participants", store.ArrayContains, selfID)
}

// Subscribe - живой список чатов пользователя с профилем собеседника
// и числом непрочитанных. Снимки обрабатываются по одному: результат
// старого снимка не приходит после нового.
func (c *ConversationService) Subscribe(selfID string, fn func([]models.ConversationView, error)) store.Unsubscribe {
	var closed atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe := c.store.Subscribe(chatsQuery(selfID), func(docs []store.Document, err error) {
		if closed.Load() {
			return
		}
		if err != nil {
			fn(nil, c.fail(OpLoadChats, err))
			return
		}
		views := c.derive(ctx, selfID, docs)
		if closed.Load() {
			return
		}
		fn(views, nil)
	})
	return func() {
		closed.Store(true)
		cancel()
		unsubscribe()
	}
}

// List - разовое чтение списка чатов
func (c *ConversationService) List(ctx context.Context, selfID string) ([]models.ConversationView, error) {
	docs, err := c.store.Query(ctx, chatsQuery(selfID))
	if err != nil {
		return nil, c.fail(OpLoadChats, err)
	}
	return c.derive(ctx, selfID, docs), nil
}

// derive обогащает чаты параллельно; чат с ошибкой выпадает из снимка
func (c *ConversationService) derive(ctx context.Context, selfID string, docs []store.Document) []models.ConversationView {
	results := make([]*models.ConversationView, len(docs))
	var g errgroup.Group
	g.SetLimit(derivationLimit)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			view, err := c.deriveOne(ctx, selfID, models.ChatChannelFromDoc(doc))
			if err != nil {
				c.logger.Warn("conversation dropped", zap.String("chat_id", doc.ID), zap.Error(err))
				return nil
			}
			results[i] = view
			return nil
		})
	}
	_ = g.Wait()

	views := make([]models.ConversationView, 0, len(results))
	for _, v := range results {
		if v != nil {
			views = append(views, *v)
		}
	}
	SortConversations(views)
	return views
}

func (c *ConversationService) deriveOne(ctx context.Context, selfID string, ch models.ChatChannel) (*models.ConversationView, error) {
	otherID, ok := ch.Other(selfID)
	if !ok {
		return nil, fmt.Errorf("no other participant in %v", ch.Participants)
	}
	profile, err := c.profiles.Get(ctx, otherID)
	if err != nil {
		return nil, err
	}
	unread, err := c.store.Query(ctx, models.MessagesRef(ch.ID).
		Where("senderId", store.NotEqual, selfID).
		Where("isRead", store.Equal, false))
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return &models.ConversationView{
		ChatChannel: ch,
		OtherUser:   profile,
		UnreadCount: len(unread),
	}, nil
}

// SortConversations: новые сверху (lastMessage.createdAt, иначе createdAt),
// при равенстве - по ID чата
func SortConversations(views []models.ConversationView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].ActivityAt(), views[j].ActivityAt()
		if !a.Equal(b) {
			return a.After(b)
		}
		return views[i].ID < views[j].ID
	})
}

// TotalUnread - сумма непрочитанных для значка навигации
func TotalUnread(views []models.ConversationView) int {
	total := 0
	for _, v := range views {
		total += v.UnreadCount
	}
	return total
}
