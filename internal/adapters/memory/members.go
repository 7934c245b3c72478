package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/membermap/membermap/internal/core/domain"
)

// MemberRepo keeps members in memory in insertion order.
type MemberRepo struct {
	mu      sync.RWMutex
	order   []string
	members map[string]domain.Member
}

// NewMemberRepo creates a repo seeded with members.
func NewMemberRepo(members []domain.Member) *MemberRepo {
	r := &MemberRepo{members: make(map[string]domain.Member)}
	_ = r.UpsertBatch(context.Background(), members)
	return r
}

// LoadMemberFile reads a JSON array of members from path.
func LoadMemberFile(path string) (*MemberRepo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read members: %w", err)
	}
	var members []domain.Member
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	return NewMemberRepo(members), nil
}

func (r *MemberRepo) List(_ context.Context) ([]domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Member, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.members[id])
	}
	return out, nil
}

func (r *MemberRepo) GetByID(_ context.Context, id string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, domain.ErrNotFound)
	}
	return &m, nil
}

func (r *MemberRepo) UpsertBatch(_ context.Context, members []domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range members {
		if _, ok := r.members[m.ID]; !ok {
			r.order = append(r.order, m.ID)
		}
		r.members[m.ID] = m
	}
	return nil
}
