package usecases

import (
	"context"
	"encoding/json"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/ports"
	"github.com/membermap/membermap/internal/pkg/metrics"
)

const membersCacheKey = "members:all"

// MemberService handles member-related business logic.
type MemberService struct {
	members ports.MemberRepository
	cache   ports.CacheService
}

// NewMemberService creates a new MemberService. cache may be nil.
func NewMemberService(members ports.MemberRepository, cache ports.CacheService) *MemberService {
	return &MemberService{members: members, cache: cache}
}

// List returns all members in their stored order.
func (s *MemberService) List(ctx context.Context) ([]domain.Member, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, membersCacheKey); err == nil {
			var members []domain.Member
			if err := json.Unmarshal(data, &members); err == nil {
				metrics.CacheHits.WithLabelValues("members").Inc()
				return members, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("members").Inc()
	}

	members, err := s.members.List(ctx)
	if err != nil {
		return nil, err
	}

	// Cache for 5 minutes; imports invalidate explicitly
	if s.cache != nil {
		if data, err := json.Marshal(members); err == nil {
			_ = s.cache.Set(ctx, membersCacheKey, data, 300)
		}
	}

	return members, nil
}

// GetByID returns a single member.
func (s *MemberService) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	return s.members.GetByID(ctx, id)
}

// Invalidate drops the cached member list.
func (s *MemberService) Invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, membersCacheKey)
	}
}
