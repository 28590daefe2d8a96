package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig содержит параметры S3-совместимого хранилища.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL задаёт базовый адрес, по которому объекты доступны клиентам.
	PublicURL string
	Folder    string
}

// MinioStore хранит изображения в MinIO/S3.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	folder    string
}

// NewMinioStore подключается к MinIO и создаёт бакет при его отсутствии.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	folder := cfg.Folder
	if folder == "" {
		folder = "manga"
	}

	return &MinioStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		folder:    folder,
	}, nil
}

// Upload сохраняет объект под случайным ключом.
func (m *MinioStore) Upload(ctx context.Context, f File) (*Object, error) {
	key := objectKey(m.folder, f.Name)

	size := f.Size
	if size <= 0 {
		size = -1
	}

	_, err := m.client.PutObject(ctx, m.bucket, key, f.Body, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(f),
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	return &Object{URL: m.publicURL + "/" + key, Key: key}, nil
}

// Delete удаляет объект.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
