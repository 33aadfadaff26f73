package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"codraft/internal/document/model"
)

const documentTTL = time.Hour

func documentKey(id string) string {
	return "document:" + id
}

var _ DocumentCache = (*RedisDocumentCache)(nil)

// RedisDocumentCache keeps recently read documents in Redis with a short TTL.
// Writers invalidate rather than update, so a stale entry lives at most until
// the next mutation or expiry.
type RedisDocumentCache struct {
	client *redis.Client
}

func NewRedisDocumentCache(addr string) *RedisDocumentCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisDocumentCache{client: client}
}

func (r *RedisDocumentCache) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	res := r.client.Get(ctx, documentKey(id))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	doc := &model.Document{}
	if err := json.Unmarshal(buf, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *RedisDocumentCache) SetDocument(ctx context.Context, doc *model.Document) error {
	buf, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, documentKey(doc.ID), buf, documentTTL).Err()
}

func (r *RedisDocumentCache) DeleteDocument(ctx context.Context, id string) error {
	return r.client.Del(ctx, documentKey(id)).Err()
}
