package models

import (
	"time"

	"darkchat/store"
)

const StoriesCollection = "stories"

type StoryKind string

const (
	StoryText  StoryKind = "text"
	StoryImage StoryKind = "image"
)

// DefaultStoryBackground - фон текстовой истории по умолчанию
const DefaultStoryBackground = "#1f2937"

type StoryItem struct {
	ID              string    `json:"id"`
	Kind            StoryKind `json:"kind"`
	Content         string    `json:"content"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ViewedBy        []string  `json:"viewedBy"`
}

// StoryBundle - все истории пользователя, stories/{userId}
type StoryBundle struct {
	UserID    string      `json:"userId"`
	Items     []StoryItem `json:"items"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func StoryRef(userID string) store.DocRef {
	return store.Collection(StoriesCollection).Doc(userID)
}

func StoryBundleFromDoc(doc store.Document) StoryBundle {
	d := doc.Data
	userID := store.String(d, "userId")
	if userID == "" {
		userID = doc.ID
	}
	b := StoryBundle{
		UserID:    userID,
		UpdatedAt: store.Time(d, "updatedAt"),
	}
	for _, m := range store.Maps(d, "items") {
		viewed := store.Strings(m, "viewedBy")
		if viewed == nil {
			viewed = []string{}
		}
		b.Items = append(b.Items, StoryItem{
			ID:              store.String(m, "id"),
			Kind:            StoryKind(store.String(m, "kind")),
			Content:         store.String(m, "content"),
			BackgroundColor: store.String(m, "backgroundColor"),
			CreatedAt:       store.Time(m, "createdAt"),
			ViewedBy:        viewed,
		})
	}
	return b
}

func (i StoryItem) ToMap() map[string]any {
	viewed := make([]any, len(i.ViewedBy))
	for k, v := range i.ViewedBy {
		viewed[k] = v
	}
	m := map[string]any{
		"id":        i.ID,
		"kind":      string(i.Kind),
		"content":   i.Content,
		"createdAt": i.CreatedAt.UTC(),
		"viewedBy":  viewed,
	}
	if i.BackgroundColor != "" {
		m["backgroundColor"] = i.BackgroundColor
	}
	return m
}

// ItemsToValue - массив историй для записи в документ
func ItemsToValue(items []StoryItem) []any {
	out := make([]any, len(items))
	for k, item := range items {
		out[k] = item.ToMap()
	}
	return out
}
