// Package cache хранит список каталога в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/ink-panels/internal/model"
)

const defaultKey = "inkpanels:catalog"

var errStale = errors.New("catalog cache version changed")

// CatalogCache хранит каталог в отсортированном множестве с оценкой по времени создания.
// Отдельный ключ-маркер отличает пустой каталог от отсутствия кэша. Счётчик поколений
// растёт при каждом сбросе; запись с устаревшим поколением отбрасывается.
type CatalogCache struct {
	client    *redis.Client
	key       string
	markerKey string
	genKey    string
	ttl       time.Duration
}

// NewCatalogCache создаёт кэш каталога с указанным временем жизни.
func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client:    client,
		key:       defaultKey,
		markerKey: defaultKey + ":filled",
		genKey:    defaultKey + ":gen",
		ttl:       ttl,
	}
}

// Get возвращает каталог, новые позиции первыми. Второе значение false означает промах кэша.
func (c *CatalogCache) Get(ctx context.Context) ([]model.Manga, bool, error) {
	var (
		filled  *redis.IntCmd
		members *redis.StringSliceCmd
	)
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		filled = p.Exists(ctx, c.markerKey)
		members = p.ZRevRange(ctx, c.key, 0, -1)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("read catalog cache: %w", err)
	}
	if filled.Val() == 0 {
		return nil, false, nil
	}

	list := make([]model.Manga, 0, len(members.Val()))
	for _, raw := range members.Val() {
		var m model.Manga
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, false, fmt.Errorf("decode cached manga: %w", err)
		}
		list = append(list, m)
	}
	return list, true, nil
}

// Version возвращает текущее поколение кэша. Его нужно прочитать до загрузки каталога из базы.
func (c *CatalogCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.genKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read catalog cache version: %w", err)
	}
	return v, nil
}

// Set заменяет содержимое кэша переданным каталогом, если с момента чтения version
// кэш не сбрасывался. Иначе запись пропускается.
func (c *CatalogCache) Set(ctx context.Context, version int64, list []model.Manga) error {
	members := make([]redis.Z, 0, len(list))
	for _, m := range list {
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode manga: %w", err)
		}
		members = append(members, redis.Z{
			Score:  float64(m.CreatedAt.UnixMicro()),
			Member: string(raw),
		})
	}

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, c.genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStale
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, c.key, c.markerKey)
			if len(members) > 0 {
				p.ZAdd(ctx, c.key, members...)
				p.Expire(ctx, c.key, c.ttl)
			}
			p.Set(ctx, c.markerKey, "1", c.ttl)
			return nil
		})
		return err
	}, c.genKey)

	switch {
	case err == nil, errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("write catalog cache: %w", err)
	}
}

// Invalidate сбрасывает кэш и начинает новое поколение.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, c.genKey)
		p.Del(ctx, c.key, c.markerKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}
