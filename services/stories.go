package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"darkchat/events"
	"darkchat/models"
	"darkchat/store"
)

const DefaultStoryWindow = 24 * time.Hour

// StoryInput - новая история
type StoryInput struct {
	Kind            models.StoryKind `json:"kind"`
	Content         string           `json:"content"`
	BackgroundColor string           `json:"backgroundColor,omitempty"`
}

// StoryService - истории пользователей, видимые в скользящем окне (24 часа).
// Все истории пользователя лежат в одном документе stories/{userId}.
type StoryService struct {
	base
	window time.Duration
}

func NewStoryService(s store.Store, window time.Duration, opts ...Option) *StoryService {
	if window <= 0 {
		window = DefaultStoryWindow
	}
	return &StoryService{base: newBase(s, opts), window: window}
}

// Publish добавляет историю в документ пользователя, создавая его при необходимости
func (st *StoryService) Publish(ctx context.Context, userID string, in StoryInput) (models.StoryItem, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return models.StoryItem{}, st.fail(OpCreateStory, ErrEmptyContent)
	}
	kind := in.Kind
	switch kind {
	case "":
		kind = models.StoryText
	case models.StoryText, models.StoryImage:
	default:
		return models.StoryItem{}, st.fail(OpCreateStory, ErrInvalidStoryKind)
	}
	item := models.StoryItem{
		ID:        store.NewID(),
		Kind:      kind,
		Content:   content,
		CreatedAt: st.now().UTC().Truncate(time.Microsecond),
		ViewedBy:  []string{},
	}
	if item.Kind == models.StoryText {
		item.BackgroundColor = in.BackgroundColor
		if item.BackgroundColor == "" {
			item.BackgroundColor = models.DefaultStoryBackground
		}
	}

	ref := models.StoryRef(userID)
	err := st.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get(ref)
		if errors.Is(err, store.ErrNotFound) {
			return tx.Create(ref, map[string]any{
				"userId":    userID,
				"items":     models.ItemsToValue([]models.StoryItem{item}),
				"updatedAt": store.ServerTimestamp,
			})
		}
		if err != nil {
			return err
		}
		items := append(models.StoryBundleFromDoc(doc).Items, item)
		return tx.Update(ref, map[string]any{
			"items":     models.ItemsToValue(items),
			"updatedAt": store.ServerTimestamp,
		})
	})
	if err != nil {
		return models.StoryItem{}, st.fail(OpCreateStory, err)
	}
	st.publish(ctx, events.Event{Type: events.StoryPublished, ActorID: userID, Content: string(item.Kind)})
	return item, nil
}

// FetchActive возвращает истории за последние 24 часа (окно настраивается).
// Запрос отбирает документы по updatedAt, затем каждая история
// проверяется по своему createdAt; пустые документы отбрасываются.
func (st *StoryService) FetchActive(ctx context.Context) ([]models.StoryBundle, error) {
	cutoff := st.now().UTC().Add(-st.window)
	docs, err := st.store.Query(ctx, store.Collection(models.StoriesCollection).
		Where("updatedAt", store.GreaterOrEqual, cutoff).
		OrderBy("updatedAt", store.Desc))
	if err != nil {
		return nil, st.fail(OpLoadStories, err)
	}

	bundles := make([]models.StoryBundle, 0, len(docs))
	for _, doc := range docs {
		bundle := models.StoryBundleFromDoc(doc)
		active := bundle.Items[:0]
		for _, item := range bundle.Items {
			if item.CreatedAt.After(cutoff) {
				active = append(active, item)
			}
		}
		if len(active) == 0 {
			continue
		}
		bundle.Items = active
		bundles = append(bundles, bundle)
	}
	return bundles, nil
}

// MarkViewed добавляет зрителя в viewedBy истории
func (st *StoryService) MarkViewed(ctx context.Context, ownerID, itemID, viewerID string) error {
	if viewerID == "" || viewerID == ownerID {
		return nil
	}
	ref := models.StoryRef(ownerID)
	err := st.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		items := models.StoryBundleFromDoc(doc).Items
		for i := range items {
			if items[i].ID != itemID {
				continue
			}
			for _, v := range items[i].ViewedBy {
				if v == viewerID {
					return nil
				}
			}
			items[i].ViewedBy = append(items[i].ViewedBy, viewerID)
			return tx.Update(ref, map[string]any{"items": models.ItemsToValue(items)})
		}
		return ErrStoryNotFound
	})
	if err != nil {
		return st.fail(OpViewStory, err)
	}
	return nil
}
