package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// CloudinaryConfig содержит параметры доступа к Cloudinary.
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	Folder       string
	// BaseURL переопределяет адрес API.
	BaseURL string
}

// CloudinaryClient хранит изображения в Cloudinary.
type CloudinaryClient struct {
	cld    *cloudinary.Cloudinary
	preset string
	folder string
	signed bool
}

// NewCloudinaryClient создаёт клиент Cloudinary. Без ключей API доступна только
// неподписанная загрузка по upload preset.
func NewCloudinaryClient(cfg CloudinaryConfig) (*CloudinaryClient, error) {
	signed := cfg.APIKey != "" && cfg.APISecret != ""
	if !signed && cfg.UploadPreset == "" {
		return nil, errors.New("cloudinary requires upload preset or api credentials")
	}

	conf, err := config.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		conf.API.UploadPrefix = base
	}

	cld, err := cloudinary.NewFromConfiguration(*conf)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}

	folder := cfg.Folder
	if folder == "" {
		folder = "manga"
	}

	return &CloudinaryClient{
		cld:    cld,
		preset: cfg.UploadPreset,
		folder: folder,
		signed: signed,
	}, nil
}

// Upload загружает изображение и возвращает его адрес и public_id.
func (c *CloudinaryClient) Upload(ctx context.Context, f File) (*Object, error) {
	params := uploader.UploadParams{Folder: c.folder}

	var (
		res *uploader.UploadResult
		err error
	)
	if c.signed {
		params.UploadPreset = c.preset
		res, err = c.cld.Upload.Upload(ctx, f.Body, params)
	} else {
		res, err = c.cld.Upload.UnsignedUpload(ctx, f.Body, c.preset, params)
	}
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return nil, errors.New("cloudinary upload returned no url")
	}

	return &Object{URL: res.SecureURL, Key: res.PublicID}, nil
}

// Delete удаляет изображение по public_id. Требует ключи API.
func (c *CloudinaryClient) Delete(ctx context.Context, key string) error {
	if !c.signed {
		return errors.New("cloudinary destroy requires api credentials")
	}

	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: key})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", res.Error.Message)
	}
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("cloudinary destroy result: %q", res.Result)
	}
	return nil
}
