// Package objectstore - загрузка файлов (аватары, картинки историй)
package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

var ErrUnsupportedType = errors.New("unsupported image type")

// Uploader сохраняет объект по пути и возвращает публичный URL
type Uploader interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error)
}

// AvatarPath - путь аватара: profile-pictures/{uid}/{filename}
func AvatarPath(uid, filename string) string {
	return path.Join("profile-pictures", SanitizeName(uid), SanitizeName(filename))
}

// SanitizeName оставляет латиницу, цифры и - _ . в имени файла
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || r == '.' ||
			(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			return r
		}
		return '-'
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	return name
}

// DetectImage определяет тип картинки по первым байтам и возвращает
// content-type и расширение
func DetectImage(head []byte, filename string) (string, string, error) {
	mtype := http.DetectContentType(head)
	switch mtype {
	case "image/jpeg":
		return mtype, ".jpg", nil
	case "image/png":
		return mtype, ".png", nil
	case "image/webp":
		return mtype, ".webp", nil
	case "image/gif":
		return mtype, ".gif", nil
	}
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".jpg", ".jpeg":
		return "image/jpeg", ext, nil
	case ".png":
		return "image/png", ext, nil
	case ".webp":
		return "image/webp", ext, nil
	case ".gif":
		return "image/gif", ext, nil
	}
	return "", "", ErrUnsupportedType
}
