package cache

import (
	"context"

	"codraft/internal/document/model"
)

// DocumentCache is a read-through cache in front of the document store.
// A nil result with a nil error means a miss.
type DocumentCache interface {
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	SetDocument(ctx context.Context, doc *model.Document) error
	DeleteDocument(ctx context.Context, id string) error
}

// NopCache satisfies DocumentCache without caching anything. Used when no
// REDIS_ADDR is configured and in tests that don't exercise caching.
type NopCache struct{}

func NewNop() NopCache { return NopCache{} }

func (NopCache) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	return nil, nil
}

func (NopCache) SetDocument(ctx context.Context, doc *model.Document) error { return nil }

func (NopCache) DeleteDocument(ctx context.Context, id string) error { return nil }
