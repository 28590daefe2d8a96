package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ink-panels/internal/model"
)

const mangaColumns = `id, title, author, description, price_cents, original_price_cents, image_url, image_key,
	volumes, genre, rating, review_count, stock, badges, is_new_release, created_at`

func scanManga(row pgx.Row) (*model.Manga, error) {
	var m model.Manga
	err := row.Scan(
		&m.ID, &m.Title, &m.Author, &m.Description, &m.PriceCents, &m.OriginalPriceCents,
		&m.ImageURL, &m.ImageKey, &m.Volumes, &m.Genre, &m.Rating, &m.ReviewCount,
		&m.Stock, &m.Badges, &m.IsNewRelease, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectManga(rows pgx.Rows) ([]model.Manga, error) {
	defer rows.Close()

	var res []model.Manga
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manga: %w", err)
		}
		res = append(res, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListManga возвращает каталог, новые позиции первыми.
func (r *PostgresRepository) ListManga(ctx context.Context) ([]model.Manga, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mangaColumns+` FROM manga ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select manga: %w", err)
	}
	return collectManga(rows)
}

// GetManga возвращает позицию каталога по идентификатору.
func (r *PostgresRepository) GetManga(ctx context.Context, id string) (*model.Manga, error) {
	m, err := scanManga(r.pool.QueryRow(ctx,
		`SELECT `+mangaColumns+` FROM manga WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMangaNotFound
		}
		return nil, fmt.Errorf("get manga: %w", err)
	}
	return m, nil
}

// GetMangaByIDs возвращает найденные позиции по списку идентификаторов, отсутствующие пропускаются.
func (r *PostgresRepository) GetMangaByIDs(ctx context.Context, ids []string) (map[string]model.Manga, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mangaColumns+` FROM manga WHERE id = ANY($1::uuid[])`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select manga by ids: %w", err)
	}

	list, err := collectManga(rows)
	if err != nil {
		return nil, err
	}

	res := make(map[string]model.Manga, len(list))
	for _, m := range list {
		res[m.ID] = m
	}
	return res, nil
}

// CreateManga добавляет позицию в каталог.
func (r *PostgresRepository) CreateManga(ctx context.Context, m *model.Manga) (*model.Manga, error) {
	genre, badges := m.Genre, m.Badges
	if genre == nil {
		genre = []string{}
	}
	if badges == nil {
		badges = []string{}
	}

	created, err := scanManga(r.pool.QueryRow(ctx,
		`INSERT INTO manga (title, author, description, price_cents, original_price_cents, image_url, image_key,
		                    volumes, genre, rating, review_count, stock, badges, is_new_release)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+mangaColumns,
		m.Title, m.Author, m.Description, m.PriceCents, m.OriginalPriceCents, m.ImageURL, m.ImageKey,
		m.Volumes, genre, m.Rating, m.ReviewCount, m.Stock, badges, m.IsNewRelease,
	))
	if err != nil {
		return nil, fmt.Errorf("create manga: %w", err)
	}
	return created, nil
}

// UpdateManga применяет частичное обновление: поля со значением nil остаются прежними.
func (r *PostgresRepository) UpdateManga(ctx context.Context, id string, p model.MangaPatch) (*model.Manga, error) {
	m, err := scanManga(r.pool.QueryRow(ctx,
		`UPDATE manga SET
		     title                = COALESCE($2, title),
		     author               = COALESCE($3, author),
		     description          = COALESCE($4, description),
		     price_cents          = COALESCE($5, price_cents),
		     original_price_cents = COALESCE($6, original_price_cents),
		     image_url            = COALESCE($7, image_url),
		     volumes              = COALESCE($8, volumes),
		     genre                = COALESCE($9::text[], genre),
		     rating               = COALESCE($10, rating),
		     review_count         = COALESCE($11, review_count),
		     stock                = COALESCE($12, stock),
		     badges               = COALESCE($13::text[], badges),
		     is_new_release       = COALESCE($14, is_new_release)
		 WHERE id = $1
		 RETURNING `+mangaColumns,
		id, p.Title, p.Author, p.Description, p.PriceCents, p.OriginalPriceCents, p.ImageURL,
		p.Volumes, p.Genre, p.Rating, p.ReviewCount, p.Stock, p.Badges, p.IsNewRelease,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMangaNotFound
		}
		return nil, fmt.Errorf("update manga: %w", err)
	}
	return m, nil
}

// DeleteManga удаляет позицию и возвращает ключ её изображения в медиахранилище.
func (r *PostgresRepository) DeleteManga(ctx context.Context, id string) (string, error) {
	var imageKey string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM manga WHERE id = $1 RETURNING image_key`,
		id,
	).Scan(&imageKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMangaNotFound
		}
		return "", fmt.Errorf("delete manga: %w", err)
	}
	return imageKey, nil
}
