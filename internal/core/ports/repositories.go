package ports

import (
	"context"

	"github.com/membermap/membermap/internal/core/domain"
)

// MemberRepository persists map members.
type MemberRepository interface {
	List(ctx context.Context) ([]domain.Member, error)
	GetByID(ctx context.Context, id string) (*domain.Member, error)
	UpsertBatch(ctx context.Context, members []domain.Member) error
}

// FlagStore persists small per-client string flags (theme, view, intro).
type FlagStore interface {
	// GetFlag returns the stored value and whether it was set.
	GetFlag(ctx context.Context, clientID, key string) (string, bool, error)
	SetFlag(ctx context.Context, clientID, key, value string) error
}

// ObjectStore reads and writes blobs in a bucket.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
