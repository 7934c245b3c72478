package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/usecases"
)

func searchRecords() []domain.SearchResult {
	return []domain.SearchResult{
		{ID: "a", Title: "Delhi", Location: domain.GeoPoint{Lat: 28.61, Lon: 77.20}},
		{ID: "m", Title: "Mumbai", Location: domain.GeoPoint{Lat: 19.07, Lon: 72.87}},
		{ID: "b", Title: "Delhi", Location: domain.GeoPoint{Lat: 28.70, Lon: 77.10}},
		{ID: "x", Title: "", Location: domain.GeoPoint{Lat: 1, Lon: 1}},
		{ID: "y", Title: "Nowhere", Location: domain.GeoPoint{Lat: 95, Lon: 0}},
	}
}

func TestKeyByTitle_LaterRecordWins(t *testing.T) {
	res := usecases.KeyByTitle("del", searchRecords())

	if len(res.Order) != 2 || res.Order[0] != "Delhi" || res.Order[1] != "Mumbai" {
		t.Fatalf("unexpected order: %v", res.Order)
	}
	if res.ByTitle["Delhi"].ID != "b" {
		t.Errorf("expected the later Delhi record, got %s", res.ByTitle["Delhi"].ID)
	}
	if list := res.List(); len(list) != 2 || list[0].ID != "b" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestSearchMarker(t *testing.T) {
	m := usecases.SearchMarker(domain.SearchResult{ID: "7", Title: "Café <Rio>", Location: domain.GeoPoint{Lat: 1, Lon: 2}})

	if m.ID != "search:7" || m.Source != domain.SourceSearch || !m.AutoClose {
		t.Errorf("unexpected marker: %+v", m)
	}
	if m.Label != "<div><h4>Café &lt;Rio&gt;</h4></div>" {
		t.Errorf("unexpected label: %q", m.Label)
	}
}

func TestSearchService_QueryAndSelect(t *testing.T) {
	ctx := context.Background()
	e := newEnv(delhiMembers())
	client := &mockSearchClient{
		searchFn: func(ctx context.Context, query string) ([]domain.SearchResult, error) {
			return searchRecords(), nil
		},
	}
	svc := usecases.NewSearchService(client, nil, e.maps)

	res, err := svc.Query(ctx, "alice", "  delhi ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Query != "delhi" || len(res.Order) != 2 {
		t.Errorf("unexpected results: %+v", res)
	}

	m, vp, err := svc.Select(ctx, "alice", "Mumbai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID != "search:m" {
		t.Errorf("unexpected marker: %+v", m)
	}
	if vp.Bounds == nil || !vp.Bounds.Contains(m.Location) {
		t.Errorf("expected viewport to include %+v, got %+v", m.Location, vp.Bounds)
	}

	snap, _ := e.maps.View(ctx, "alice")
	if len(snap.Markers) != 4 {
		t.Errorf("expected 4 markers, got %d", len(snap.Markers))
	}
}

func TestSearchService_SelectErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	client := &mockSearchClient{
		searchFn: func(ctx context.Context, query string) ([]domain.SearchResult, error) {
			return searchRecords(), nil
		},
	}
	svc := usecases.NewSearchService(client, nil, e.maps)

	if _, _, err := svc.Select(ctx, "alice", "Delhi"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found before any search, got %v", err)
	}
	if _, err := svc.Query(ctx, "alice", "delhi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := svc.Select(ctx, "alice", "Atlantis"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found for unknown title, got %v", err)
	}
	if _, _, err := svc.Select(ctx, "bob", "Delhi"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected results to be per client, got %v", err)
	}
}

func TestSearchService_InvalidQuery(t *testing.T) {
	svc := usecases.NewSearchService(&mockSearchClient{}, nil, newEnv(nil).maps)

	if _, err := svc.Query(context.Background(), "alice", "   "); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected invalid query, got %v", err)
	}
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := svc.Query(context.Background(), "alice", string(long)); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected invalid query for long input, got %v", err)
	}
}

func TestSearchService_Unavailable(t *testing.T) {
	client := &mockSearchClient{
		searchFn: func(ctx context.Context, query string) ([]domain.SearchResult, error) {
			return nil, errors.New("status 500")
		},
	}
	svc := usecases.NewSearchService(client, nil, newEnv(nil).maps)

	if _, err := svc.Query(context.Background(), "alice", "delhi"); !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Errorf("expected search unavailable, got %v", err)
	}
}

func TestSearchService_NewerQuerySupersedes(t *testing.T) {
	started := make(chan struct{})
	client := &mockSearchClient{
		searchFn: func(ctx context.Context, query string) ([]domain.SearchResult, error) {
			if query == "slow" {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return searchRecords(), nil
		},
	}
	svc := usecases.NewSearchService(client, nil, newEnv(nil).maps)

	errc := make(chan error, 1)
	go func() {
		_, err := svc.Query(context.Background(), "alice", "slow")
		errc <- err
	}()
	<-started

	res, err := svc.Query(context.Background(), "alice", "fast")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Order) != 2 {
		t.Errorf("expected 2 results, got %d", len(res.Order))
	}

	select {
	case err := <-errc:
		if !errors.Is(err, domain.ErrSuperseded) {
			t.Errorf("expected superseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded query did not return")
	}
}

func TestSearchService_CallerCancel(t *testing.T) {
	client := &mockSearchClient{
		searchFn: func(ctx context.Context, query string) ([]domain.SearchResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := usecases.NewSearchService(client, nil, newEnv(nil).maps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Query(ctx, "alice", "delhi"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context canceled, got %v", err)
	}
}
