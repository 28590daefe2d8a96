package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/ink-panels/internal/media"
	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/repository"
	"github.com/mmeshcher/ink-panels/internal/validation"
)

// MangaInput содержит поля новой позиции каталога.
type MangaInput struct {
	Title              string
	Author             string
	Description        string
	PriceCents         int64
	OriginalPriceCents *int64
	ImageURL           string
	Volumes            int
	Genre              []string
	Rating             float64
	ReviewCount        int
	Stock              int
	Badges             []string
	IsNewRelease       bool
}

func cleanTags(tags []string) []string {
	res := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			res = append(res, t)
		}
	}
	return res
}

// MaxPriceCents ограничивает цену позиции каталога.
const MaxPriceCents int64 = 1_000_000_00

func checkRanges(price *int64, originalPrice *int64, volumes, stock, reviewCount *int, rating *float64) error {
	if price != nil && (*price < 0 || *price > MaxPriceCents) {
		return invalid("price", "price must be between 0 and 1000000")
	}
	if originalPrice != nil && (*originalPrice < 0 || *originalPrice > MaxPriceCents) {
		return invalid("originalPrice", "originalPrice must be between 0 and 1000000")
	}
	if volumes != nil && *volumes < 1 {
		return invalid("volumes", "volumes must be >= 1")
	}
	if stock != nil && *stock < 0 {
		return invalid("stock", "stock must be >= 0")
	}
	if reviewCount != nil && *reviewCount < 0 {
		return invalid("reviewCount", "reviewCount must be >= 0")
	}
	if rating != nil && !(*rating >= 0 && *rating <= 5) {
		return invalid("rating", "rating must be between 0 and 5")
	}
	return nil
}

func (in MangaInput) validate(hasFile bool) error {
	required := []struct {
		field string
		value string
	}{
		{"title", in.Title},
		{"author", in.Author},
		{"description", in.Description},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid(r.field, r.field+" is required")
		}
	}
	if !hasFile && strings.TrimSpace(in.ImageURL) == "" {
		return invalid("image", "image file or URL is required")
	}
	return checkRanges(&in.PriceCents, in.OriginalPriceCents, &in.Volumes, &in.Stock, &in.ReviewCount, &in.Rating)
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

// ListManga возвращает каталог, новые позиции первыми.
func (s *Service) ListManga(ctx context.Context) ([]model.Manga, error) {
	fill := false
	var version int64
	if s.cache != nil {
		list, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		case ok:
			return list, nil
		default:
			if version, err = s.cache.Version(ctx); err != nil {
				s.logger.Warn("catalog cache version read failed", zap.Error(err))
			} else {
				fill = true
			}
		}
	}

	list, err := s.repo.ListManga(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Manga{}
	}

	if fill {
		if err := s.cache.Set(ctx, version, list); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return list, nil
}

// GetManga возвращает позицию каталога. Некорректный идентификатор считается отсутствующим.
func (s *Service) GetManga(ctx context.Context, id string) (*model.Manga, error) {
	if !validation.IsUUID(id) {
		return nil, repository.ErrMangaNotFound
	}
	return s.repo.GetManga(ctx, id)
}

// CreateManga добавляет позицию в каталог. Если передан файл, он загружается в хранилище
// изображений и заменяет адрес из запроса.
func (s *Service) CreateManga(ctx context.Context, in MangaInput, file *media.File) (*model.Manga, error) {
	if err := in.validate(file != nil); err != nil {
		return nil, err
	}

	m := &model.Manga{
		Title:              strings.TrimSpace(in.Title),
		Author:             strings.TrimSpace(in.Author),
		Description:        in.Description,
		PriceCents:         in.PriceCents,
		OriginalPriceCents: in.OriginalPriceCents,
		ImageURL:           strings.TrimSpace(in.ImageURL),
		Volumes:            in.Volumes,
		Genre:              cleanTags(in.Genre),
		Rating:             in.Rating,
		ReviewCount:        in.ReviewCount,
		Stock:              in.Stock,
		Badges:             cleanTags(in.Badges),
		IsNewRelease:       in.IsNewRelease,
	}

	if file != nil {
		if s.media == nil {
			return nil, ErrMediaDisabled
		}
		if !media.IsAllowedImage(file.Name) {
			return nil, invalid("image", "image must be a .jpg, .jpeg, .png or .webp file")
		}
		obj, err := s.media.Upload(ctx, *file)
		if err != nil {
			s.logger.Error("image upload failed", zap.String("file", file.Name), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrMediaUpload, err)
		}
		m.ImageURL = obj.URL
		m.ImageKey = obj.Key
	}

	created, err := s.repo.CreateManga(ctx, m)
	if err != nil {
		if m.ImageKey != "" {
			s.removeImage(context.WithoutCancel(ctx), m.ImageKey)
		}
		return nil, err
	}

	s.invalidateCatalog(ctx)
	return created, nil
}

// UpdateManga применяет частичное обновление позиции.
func (s *Service) UpdateManga(ctx context.Context, id string, p model.MangaPatch) (*model.Manga, error) {
	if !validation.IsUUID(id) {
		return nil, repository.ErrMangaNotFound
	}

	for _, f := range []struct {
		field string
		value *string
	}{
		{"title", p.Title},
		{"author", p.Author},
		{"description", p.Description},
		{"image", p.ImageURL},
	} {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return nil, invalid(f.field, f.field+" must not be empty")
		}
	}
	if err := checkRanges(p.PriceCents, p.OriginalPriceCents, p.Volumes, p.Stock, p.ReviewCount, p.Rating); err != nil {
		return nil, err
	}
	if p.Genre != nil {
		tags := cleanTags(*p.Genre)
		p.Genre = &tags
	}
	if p.Badges != nil {
		tags := cleanTags(*p.Badges)
		p.Badges = &tags
	}

	m, err := s.repo.UpdateManga(ctx, id, p)
	if err != nil {
		return nil, err
	}

	s.invalidateCatalog(ctx)
	return m, nil
}

// DeleteManga удаляет позицию и её изображение из хранилища.
func (s *Service) DeleteManga(ctx context.Context, id string) error {
	if !validation.IsUUID(id) {
		return repository.ErrMangaNotFound
	}

	key, err := s.repo.DeleteManga(ctx, id)
	if err != nil {
		return err
	}

	s.invalidateCatalog(ctx)
	if key != "" {
		s.removeImage(ctx, key)
	}
	return nil
}

func (s *Service) removeImage(ctx context.Context, key string) {
	if s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove stored image", zap.String("key", key), zap.Error(err))
	}
}
