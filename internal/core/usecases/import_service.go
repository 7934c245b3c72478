package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/ports"
)

// ImportService loads member lists from object storage into the member store.
type ImportService struct {
	objects   ports.ObjectStore
	members   ports.MemberRepository
	publisher ports.EventPublisher
}

// NewImportService creates a new ImportService. publisher may be nil.
func NewImportService(objects ports.ObjectStore, members ports.MemberRepository, publisher ports.EventPublisher) *ImportService {
	return &ImportService{objects: objects, members: members, publisher: publisher}
}

// Fetch reads a JSON array of members stored under key.
func (s *ImportService) Fetch(ctx context.Context, key string) ([]domain.Member, error) {
	data, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var members []domain.Member
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return members, nil
}

// Validate keeps members that have an id, a name and a usable location.
// Names and cities are trimmed. The second return value counts rejects.
func Validate(members []domain.Member) ([]domain.Member, int) {
	valid := make([]domain.Member, 0, len(members))
	for _, m := range members {
		m.ID = strings.TrimSpace(m.ID)
		m.Name = strings.TrimSpace(m.Name)
		m.City = strings.TrimSpace(m.City)
		if m.ID == "" || m.Name == "" || !m.Location.Valid() {
			continue
		}
		valid = append(valid, m)
	}
	return valid, len(members) - len(valid)
}

// Store upserts members into the repository.
func (s *ImportService) Store(ctx context.Context, members []domain.Member) error {
	if len(members) == 0 {
		return nil
	}
	return s.members.UpsertBatch(ctx, members)
}

// Announce tells every API instance that the member list changed.
func (s *ImportService) Announce(ctx context.Context, count int) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishMembersUpdated(ctx, count)
}
