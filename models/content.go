package models

import "strings"

// Маркеры в тексте сообщения
const (
	GIFMarker  = "[GIF] "
	PostMarker = "[POST] "
)

type ContentKind string

const (
	ContentText ContentKind = "text"
	ContentGIF  ContentKind = "gif"
	ContentPost ContentKind = "post"
)

// ParsedContent - разобранное содержимое сообщения
type ParsedContent struct {
	Kind ContentKind `json:"kind"`
	// Value - текст, URL гифки или ID поста
	Value string `json:"value"`
	// Note - подпись к расшаренному посту
	Note string `json:"note,omitempty"`
}

func GIFContent(url string) string {
	return GIFMarker + url
}

// PostShareContent - ссылка на пост и необязательная подпись с новой строки
func PostShareContent(postID, note string) string {
	if note == "" {
		return PostMarker + postID
	}
	return PostMarker + postID + "\n" + note
}

func ParseContent(content string) ParsedContent {
	switch {
	case strings.HasPrefix(content, GIFMarker):
		return ParsedContent{Kind: ContentGIF, Value: strings.TrimSpace(strings.TrimPrefix(content, GIFMarker))}
	case strings.HasPrefix(content, PostMarker):
		rest := strings.TrimPrefix(content, PostMarker)
		id, note, _ := strings.Cut(rest, "\n")
		return ParsedContent{Kind: ContentPost, Value: strings.TrimSpace(id), Note: note}
	}
	return ParsedContent{Kind: ContentText, Value: content}
}
