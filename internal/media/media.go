// Package media загружает изображения каталога во внешнее хранилище.
package media

import (
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// File описывает загружаемый файл.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Object описывает сохранённый файл: публичный адрес и ключ для последующего удаления.
type Object struct {
	URL string
	Key string
}

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// IsAllowedImage сообщает, разрешено ли расширение файла для обложки.
func IsAllowedImage(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

func contentTypeFor(f File) string {
	if f.ContentType != "" && f.ContentType != "application/octet-stream" {
		return f.ContentType
	}
	if ct, ok := allowedExtensions[strings.ToLower(path.Ext(f.Name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func objectKey(folder, name string) string {
	return path.Join(folder, uuid.NewString()+strings.ToLower(path.Ext(name)))
}
