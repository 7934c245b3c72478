package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/ports"
	"github.com/membermap/membermap/internal/pkg/metrics"
)

// maxQueryLength bounds user-entered search strings.
const maxQueryLength = 200

type pendingSearch struct {
	seq    uint64
	cancel context.CancelFunc
}

// SearchService queries the remote search endpoint and places selected
// results on the client's map.
type SearchService struct {
	client ports.SearchClient
	cache  ports.CacheService
	maps   *MapService

	mu      sync.Mutex
	seq     uint64
	pending map[string]pendingSearch         // client -> in-flight query
	last    map[string]*domain.SearchResults // client -> latest completed results
}

// NewSearchService creates a new SearchService. cache may be nil.
func NewSearchService(client ports.SearchClient, cache ports.CacheService, maps *MapService) *SearchService {
	return &SearchService{
		client:  client,
		cache:   cache,
		maps:    maps,
		pending: make(map[string]pendingSearch),
		last:    make(map[string]*domain.SearchResults),
	}
}

// Query runs a search for the client. A newer Query from the same client
// cancels this one, which then returns domain.ErrSuperseded.
func (s *SearchService) Query(ctx context.Context, clientID, query string) (*domain.SearchResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query must not be empty", domain.ErrInvalidQuery)
	}
	if len(query) > maxQueryLength {
		return nil, fmt.Errorf("%w: query too long (max %d characters)", domain.ErrInvalidQuery, maxQueryLength)
	}

	ctx, span := tracer.Start(ctx, "search.query")
	defer span.End()
	span.SetAttributes(attribute.String("client_id", clientID), attribute.String("query", query))

	ctx, seq := s.begin(ctx, clientID)
	defer s.finish(clientID, seq)

	metrics.SearchRequests.Inc()
	records, err := s.fetch(ctx, query)
	if err != nil {
		if !s.current(clientID, seq) {
			return nil, domain.ErrSuperseded
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		metrics.SearchFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
	}
	if !s.current(clientID, seq) {
		return nil, domain.ErrSuperseded
	}

	results := KeyByTitle(query, records)
	span.SetAttributes(attribute.Int("results", len(results.Order)))

	s.mu.Lock()
	s.last[clientID] = results
	s.mu.Unlock()

	return results, nil
}

// Select places the result titled title from the client's latest search on
// the map and re-fits the viewport.
func (s *SearchService) Select(ctx context.Context, clientID, title string) (domain.Marker, domain.Viewport, error) {
	s.mu.Lock()
	results := s.last[clientID]
	s.mu.Unlock()

	if results == nil {
		return domain.Marker{}, domain.Viewport{}, fmt.Errorf("no search results for client: %w", domain.ErrNotFound)
	}
	r, ok := results.ByTitle[title]
	if !ok {
		return domain.Marker{}, domain.Viewport{}, fmt.Errorf("search result %q: %w", title, domain.ErrNotFound)
	}

	m := SearchMarker(r)
	vp, err := s.maps.AddMarker(ctx, clientID, m)
	if err != nil {
		return domain.Marker{}, domain.Viewport{}, err
	}
	return m, vp, nil
}

// KeyByTitle indexes records by title. A later record with the same title
// replaces an earlier one; records without a title or usable location are
// skipped.
func KeyByTitle(query string, records []domain.SearchResult) *domain.SearchResults {
	out := &domain.SearchResults{
		Query:   query,
		Order:   []string{},
		ByTitle: make(map[string]domain.SearchResult),
	}
	for _, r := range records {
		if r.Title == "" || !r.Location.Valid() {
			continue
		}
		if _, seen := out.ByTitle[r.Title]; !seen {
			out.Order = append(out.Order, r.Title)
		}
		out.ByTitle[r.Title] = r
	}
	return out
}

// SearchMarker builds the marker placed for a selected result: its popup
// shows the title only.
func SearchMarker(r domain.SearchResult) domain.Marker {
	id := r.ID
	if id == "" {
		id = r.Title
	}
	return domain.Marker{
		ID:        "search:" + id,
		Location:  r.Location,
		Label:     "<div><h4>" + html.EscapeString(r.Title) + "</h4></div>",
		AutoClose: true,
		Source:    domain.SourceSearch,
	}
}

func (s *SearchService) fetch(ctx context.Context, query string) ([]domain.SearchResult, error) {
	cacheKey := "search:" + strings.ToLower(query)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var records []domain.SearchResult
			if err := json.Unmarshal(data, &records); err == nil {
				metrics.CacheHits.WithLabelValues("search").Inc()
				return records, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("search").Inc()
	}

	records, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	// Cache for 5 minutes
	if s.cache != nil {
		if data, err := json.Marshal(records); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}
	return records, nil
}

// begin registers a new in-flight query for the client and cancels the
// previous one.
func (s *SearchService) begin(ctx context.Context, clientID string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.pending[clientID]; ok {
		prev.cancel()
	}
	s.seq++
	s.pending[clientID] = pendingSearch{seq: s.seq, cancel: cancel}
	return ctx, s.seq
}

func (s *SearchService) finish(clientID string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[clientID]; ok && p.seq == seq {
		p.cancel()
		delete(s.pending, clientID)
	}
}

func (s *SearchService) current(clientID string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[clientID]
	return ok && p.seq == seq
}
