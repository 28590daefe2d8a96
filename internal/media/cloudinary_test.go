package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cloudinaryRequest struct {
	path      string
	preset    string
	folder    string
	file      string
	apiKey    string
	signature string
	publicID  string
}

func newCloudinaryServer(t *testing.T, status int, body string) (*httptest.Server, *cloudinaryRequest) {
	t.Helper()

	got := &cloudinaryRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.preset = r.FormValue("upload_preset")
		got.folder = r.FormValue("folder")
		got.apiKey = r.FormValue("api_key")
		got.signature = r.FormValue("signature")
		got.publicID = r.FormValue("public_id")

		if f, _, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			got.file = string(data)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestCloudinaryUploadUnsigned(t *testing.T) {
	srv, got := newCloudinaryServer(t, http.StatusOK,
		`{"secure_url":"https://res.cloudinary.com/demo/image/upload/manga/abc.png","public_id":"manga/abc"}`)

	c, err := NewCloudinaryClient(CloudinaryConfig{CloudName: "demo", UploadPreset: "unsigned_manga", BaseURL: srv.URL})
	require.NoError(t, err)

	obj, err := c.Upload(context.Background(), File{Name: "abc.png", Body: strings.NewReader("png-bytes")})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.path, "/v1_1/demo/"), got.path)
	assert.True(t, strings.HasSuffix(got.path, "/upload"), got.path)
	assert.Equal(t, "unsigned_manga", got.preset)
	assert.Equal(t, "manga", got.folder)
	assert.Equal(t, "png-bytes", got.file)
	assert.Empty(t, got.signature)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/manga/abc.png", obj.URL)
	assert.Equal(t, "manga/abc", obj.Key)
}

func TestCloudinaryUploadSigned(t *testing.T) {
	srv, got := newCloudinaryServer(t, http.StatusOK, `{"secure_url":"https://cdn/x.jpg","public_id":"manga/x"}`)

	c, err := NewCloudinaryClient(CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	obj, err := c.Upload(context.Background(), File{Name: "x.jpg", Body: strings.NewReader("jpg")})
	require.NoError(t, err)

	assert.Equal(t, "key", got.apiKey)
	assert.NotEmpty(t, got.signature)
	assert.Equal(t, "manga/x", obj.Key)
}

func TestCloudinaryRequiresCredentials(t *testing.T) {
	_, err := NewCloudinaryClient(CloudinaryConfig{CloudName: "demo"})
	assert.Error(t, err)
}

func TestCloudinaryUploadError(t *testing.T) {
	srv, _ := newCloudinaryServer(t, http.StatusBadRequest, `{"error":{"message":"Upload preset not found"}}`)

	c, err := NewCloudinaryClient(CloudinaryConfig{CloudName: "demo", UploadPreset: "missing", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), File{Name: "x.jpg", Body: strings.NewReader("jpg")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Upload preset not found")
}

func TestCloudinaryDelete(t *testing.T) {
	srv, got := newCloudinaryServer(t, http.StatusOK, `{"result":"ok"}`)

	c, err := NewCloudinaryClient(CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), "manga/abc"))
	assert.True(t, strings.HasSuffix(got.path, "/destroy"), got.path)
	assert.Equal(t, "manga/abc", got.publicID)

	unsigned, err := NewCloudinaryClient(CloudinaryConfig{CloudName: "demo", UploadPreset: "p", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Error(t, unsigned.Delete(context.Background(), "manga/abc"))
}

func TestCloudinaryDeleteUnexpectedResult(t *testing.T) {
	srv, _ := newCloudinaryServer(t, http.StatusOK, `{"result":"error"}`)

	c, err := NewCloudinaryClient(CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	assert.Error(t, c.Delete(context.Background(), "manga/abc"))
}
