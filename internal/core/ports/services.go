package ports

import (
	"context"

	"github.com/membermap/membermap/internal/core/domain"
)

// EventPublisher publishes map events to a message broker.
type EventPublisher interface {
	PublishReload(ctx context.Context, clientID string) error
	PublishMembersUpdated(ctx context.Context, count int) error
}

// EventSubscriber subscribes to map events from a message broker.
type EventSubscriber interface {
	SubscribeReloads(ctx context.Context, handler func(ctx context.Context, clientID string) error) error
	SubscribeMembersUpdated(ctx context.Context, handler func(ctx context.Context, count int) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// SearchClient queries the remote search endpoint. Records without a usable
// location are dropped by the implementation.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}
