package photo

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"image/heif":      ".heif",
	"application/pdf": ".pdf",
}

// Library names uploaded photos and maps them to public URLs
type Library struct {
	storage   Storage
	urlPrefix string
	newName   func() string
}

// NewLibrary creates a Library serving files from storage under urlPrefix
func NewLibrary(storage Storage, urlPrefix string) *Library {
	if urlPrefix == "" {
		urlPrefix = "/photos"
	}
	return &Library{
		storage:   storage,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		newName:   func() string { return uuid.New().String() },
	}
}

// Store saves data under a fresh name and returns its URL
func (l *Library) Store(data []byte, contentType string) (string, error) {
	name := l.newName() + Extension(contentType)
	if _, err := l.storage.Save(name, data); err != nil {
		return "", fmt.Errorf("saving photo: %w", err)
	}
	return l.urlPrefix + "/" + name, nil
}

// Open returns the photo stored under name
func (l *Library) Open(name string) ([]byte, error) {
	return l.storage.Get(name)
}

// Extension returns the file extension used for contentType, or "" when unknown
func Extension(contentType string) string {
	mimeType, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	return extensions[mimeType]
}
