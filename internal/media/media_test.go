package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedImage(t *testing.T) {
	tests := []struct {
		name    string
		allowed bool
	}{
		{"cover.jpg", true},
		{"cover.JPEG", true},
		{"cover.png", true},
		{"cover.webp", true},
		{"cover.gif", false},
		{"cover", false},
		{"script.php.png", true},
		{"notes.txt", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, IsAllowedImage(tt.name), tt.name)
	}
}

func TestObjectKey(t *testing.T) {
	key := objectKey("manga", "Cover.PNG")
	assert.True(t, strings.HasPrefix(key, "manga/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotEqual(t, key, objectKey("manga", "Cover.PNG"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/webp", contentTypeFor(File{Name: "a.webp"}))
	assert.Equal(t, "image/png", contentTypeFor(File{Name: "a.webp", ContentType: "image/png"}))
	assert.Equal(t, "image/jpeg", contentTypeFor(File{Name: "a.jpg", ContentType: "application/octet-stream"}))
}
