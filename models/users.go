package models

import (
	"time"

	"darkchat/store"
)

// UserProfile - профиль пользователя, users/{id}
type UserProfile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName"`
	Avatar         string    `json:"avatar"`
	Bio            string    `json:"bio"`
	Email          string    `json:"email,omitempty"`
	PostsCount     int64     `json:"postsCount"`
	FollowersCount int64     `json:"followersCount"`
	FollowingCount int64     `json:"followingCount"`
	IsGuest        bool      `json:"isGuest"`
	CreatedAt      time.Time `json:"createdAt"`
}

const UsersCollection = "users"

func UserRef(id string) store.DocRef {
	return store.Collection(UsersCollection).Doc(id)
}

func UserProfileFromDoc(doc store.Document) UserProfile {
	d := doc.Data
	return UserProfile{
		ID:             doc.ID,
		Username:       store.String(d, "username"),
		DisplayName:    store.String(d, "displayName"),
		Avatar:         store.String(d, "avatar"),
		Bio:            store.String(d, "bio"),
		Email:          store.String(d, "email"),
		PostsCount:     store.Int(d, "postsCount"),
		FollowersCount: store.Int(d, "followersCount"),
		FollowingCount: store.Int(d, "followingCount"),
		IsGuest:        store.Bool(d, "isGuest"),
		CreatedAt:      store.Time(d, "createdAt"),
	}
}

// ToMap - данные для первой записи профиля, createdAt ставит сервер
func (p UserProfile) ToMap() map[string]any {
	m := map[string]any{
		"username":       p.Username,
		"displayName":    p.DisplayName,
		"avatar":         p.Avatar,
		"bio":            p.Bio,
		"postsCount":     p.PostsCount,
		"followersCount": p.FollowersCount,
		"followingCount": p.FollowingCount,
		"isGuest":        p.IsGuest,
		"createdAt":      store.ServerTimestamp,
	}
	if p.Email != "" {
		m["email"] = p.Email
	}
	return m
}

// Author - денормализованные поля автора в постах и комментариях
type Author struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

func (p UserProfile) Author() Author {
	return Author{ID: p.ID, Username: p.Username, DisplayName: p.DisplayName, Avatar: p.Avatar}
}
