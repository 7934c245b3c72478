package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/membermap/membermap/internal/adapters/memory"
	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/usecases"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu      sync.Mutex
	reloads []string
	updates []int
	err     error
}

func (m *mockPublisher) PublishReload(ctx context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads = append(m.reloads, clientID)
	return m.err
}

func (m *mockPublisher) PublishMembersUpdated(ctx context.Context, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, count)
	return m.err
}

// --- Mock SearchClient ---

type mockSearchClient struct {
	searchFn func(ctx context.Context, query string) ([]domain.SearchResult, error)
}

func (m *mockSearchClient) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

// --- Failing FlagStore ---

var errFlagsDown = errors.New("flag store down")

type failingFlags struct{}

func (failingFlags) GetFlag(ctx context.Context, clientID, key string) (string, bool, error) {
	return "", false, errFlagsDown
}

func (failingFlags) SetFlag(ctx context.Context, clientID, key, value string) error {
	return errFlagsDown
}

// --- Fixtures ---

func delhiMembers() []domain.Member {
	return []domain.Member{
		{ID: "a", Name: "Asha", City: "Delhi", Location: domain.GeoPoint{Lat: 28.61, Lon: 77.20}},
		{ID: "b", Name: "Vikram", City: "Delhi", Location: domain.GeoPoint{Lat: 28.62, Lon: 77.21}},
		{ID: "c", Name: "Meera", City: "Noida", Location: domain.GeoPoint{Lat: 28.63, Lon: 77.22}},
	}
}

type env struct {
	flags   *memory.FlagStore
	pub     *mockPublisher
	prefs   *usecases.PreferencesService
	members *usecases.MemberService
	maps    *usecases.MapService
}

func newEnv(members []domain.Member) *env {
	e := &env{flags: memory.NewFlagStore(), pub: &mockPublisher{}}
	e.prefs = usecases.NewPreferencesService(e.flags, e.pub, domain.ThemeDark, domain.ViewClustered)
	e.members = usecases.NewMemberService(memory.NewMemberRepo(members), nil)
	opts := usecases.DefaultMapOptions()
	opts.AccessToken = "tok"
	e.maps = usecases.NewMapService(e.members, e.prefs, opts)
	e.prefs.OnReload(e.maps.Reload)
	return e
}
