package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/membermap/membermap/internal/adapters/http"
	"github.com/membermap/membermap/internal/adapters/memory"
	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/usecases"
)

// ---- Mocks ----

type mockSearchClient struct {
	searchFn func(ctx context.Context, query string) ([]domain.SearchResult, error)
}

func (m *mockSearchClient) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

type mockPublisher struct {
	reloads []string
}

func (m *mockPublisher) PublishReload(ctx context.Context, clientID string) error {
	m.reloads = append(m.reloads, clientID)
	return nil
}
func (m *mockPublisher) PublishMembersUpdated(ctx context.Context, count int) error { return nil }

// ---- Test helpers ----

var testMembers = []domain.Member{
	{ID: "1", Name: "Asha", City: "Delhi", Location: domain.GeoPoint{Lat: 28.61, Lon: 77.20}},
	{ID: "2", Name: "Vikram", City: "Delhi", Location: domain.GeoPoint{Lat: 28.70, Lon: 77.10}},
	{ID: "3", Name: "Meera", City: "Pune", Location: domain.GeoPoint{Lat: 18.52, Lon: 73.85}},
}

type testEnv struct {
	app       *fiber.App
	deps      *handler.Dependencies
	publisher *mockPublisher
	objects   *memory.ObjectStore
}

func newEnv(t *testing.T, search *mockSearchClient) *testEnv {
	t.Helper()
	return newEnvWithOptions(t, search, usecases.DefaultMapOptions())
}

func newEnvWithOptions(t *testing.T, search *mockSearchClient, opts usecases.MapOptions) *testEnv {
	t.Helper()
	if search == nil {
		search = &mockSearchClient{}
	}
	pub := &mockPublisher{}
	objects := memory.NewObjectStore()

	members := usecases.NewMemberService(memory.NewMemberRepo(testMembers), nil)
	prefs := usecases.NewPreferencesService(memory.NewFlagStore(), pub, domain.ThemeDark, domain.ViewClustered)
	maps := usecases.NewMapService(members, prefs, opts)
	prefs.OnReload(maps.Reload)

	deps := &handler.Dependencies{
		Maps:    maps,
		Prefs:   prefs,
		Search:  usecases.NewSearchService(search, nil, maps),
		Tour:    usecases.NewTourService(prefs, nil),
		Members: members,
		Export:  usecases.NewExportService(maps, objects),
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return &testEnv{app: app, deps: deps, publisher: pub, objects: objects}
}

func (e *testEnv) do(t *testing.T, method, path, client string, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if client != "" {
		req.Header.Set(handler.HeaderClientID, client)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b
}

func decode(t *testing.T, b []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
}

// ---- Map ----

func TestGetMap_Defaults(t *testing.T) {
	env := newEnv(t, nil)

	code, body := env.do(t, "GET", "/v1/map", "alice", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}

	var snap domain.MapSnapshot
	decode(t, body, &snap)
	if snap.Preferences.Theme != domain.ThemeDark || snap.Preferences.View != domain.ViewClustered {
		t.Errorf("expected dark/clustered defaults, got %+v", snap.Preferences)
	}
	if !snap.Clustered || len(snap.Markers) != 3 {
		t.Errorf("expected 3 individual markers in clustered mode, got %d (clustered=%v)", len(snap.Markers), snap.Clustered)
	}
	if !strings.Contains(snap.Tiles.URLTemplate, "dark-v10") {
		t.Errorf("expected dark tiles, got %s", snap.Tiles.URLTemplate)
	}
	if snap.Viewport.Zoom != 5 || snap.Viewport.Center.Lat != 22.5 {
		t.Errorf("expected initial view (22.5, 80) z5, got %+v", snap.Viewport)
	}
	if !snap.AutoTour {
		t.Error("expected the tour to auto-start for a new client")
	}
}

func TestGetMap_InvalidClientID(t *testing.T) {
	env := newEnv(t, nil)
	code, body := env.do(t, "GET", "/v1/map", "bad.client", "")
	if code != 400 {
		t.Fatalf("expected 400, got %d: %s", code, body)
	}
	var apiErr handler.APIError
	decode(t, body, &apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %s", apiErr.Code)
	}
}

func TestToggleView_GroupsByCity(t *testing.T) {
	env := newEnv(t, nil)

	code, body := env.do(t, "POST", "/v1/preferences/view/toggle", "alice", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var prefs domain.Preferences
	decode(t, body, &prefs)
	if prefs.View != domain.ViewGrouped {
		t.Fatalf("expected grouped, got %s", prefs.View)
	}
	if len(env.publisher.reloads) != 1 || env.publisher.reloads[0] != "alice" {
		t.Errorf("expected one reload event for alice, got %v", env.publisher.reloads)
	}

	_, body = env.do(t, "GET", "/v1/map", "alice", "")
	var snap domain.MapSnapshot
	decode(t, body, &snap)
	if snap.Clustered {
		t.Error("expected grouped map after toggle")
	}
	if len(snap.Markers) != 2 {
		t.Fatalf("expected 2 city markers, got %d", len(snap.Markers))
	}
	if snap.Markers[0].Label != "Asha<br>Vikram" || snap.Markers[0].AutoClose {
		t.Errorf("unexpected Delhi marker: %+v", snap.Markers[0])
	}

	// Other clients keep their own flags
	_, body = env.do(t, "GET", "/v1/map", "bob", "")
	decode(t, body, &snap)
	if !snap.Clustered {
		t.Error("expected bob's map to stay clustered")
	}
}

func TestToggleTheme_SwitchesTiles(t *testing.T) {
	env := newEnv(t, nil)

	env.do(t, "POST", "/v1/preferences/theme/toggle", "alice", "")

	_, body := env.do(t, "GET", "/v1/map", "alice", "")
	var snap domain.MapSnapshot
	decode(t, body, &snap)
	if snap.Preferences.Theme != domain.ThemeLight || !strings.Contains(snap.Tiles.URLTemplate, "light-v10") {
		t.Errorf("expected light theme, got %+v", snap.Tiles)
	}
}

func TestCenterMap(t *testing.T) {
	env := newEnv(t, nil)

	code, body := env.do(t, "POST", "/v1/map/center", "alice", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var result struct {
		Viewport domain.Viewport `json:"viewport"`
		Moved    bool            `json:"moved"`
	}
	decode(t, body, &result)
	if !result.Moved || result.Viewport.Bounds == nil {
		t.Fatalf("expected a fitted viewport, got %+v", result)
	}
	for _, m := range testMembers {
		if !result.Viewport.Bounds.Contains(m.Location) {
			t.Errorf("expected bounds to contain %s", m.Name)
		}
	}
}

func TestMapLayers_ClustersAtLowZoom(t *testing.T) {
	env := newEnv(t, nil)

	_, body := env.do(t, "GET", "/v1/map/layers?zoom=2", "alice", "")
	var result struct {
		Layers []domain.Layer `json:"layers"`
	}
	decode(t, body, &result)
	if len(result.Layers) != 1 || result.Layers[0].Kind != domain.LayerCluster {
		t.Fatalf("expected a single cluster at zoom 2, got %+v", result.Layers)
	}
	if result.Layers[0].Cluster.Count != 3 {
		t.Errorf("expected cluster of 3, got %d", result.Layers[0].Cluster.Count)
	}

	_, body = env.do(t, "GET", "/v1/map/layers?zoom=19", "alice", "")
	decode(t, body, &result)
	if len(result.Layers) != 3 {
		t.Errorf("expected 3 markers at max zoom, got %d", len(result.Layers))
	}
}

func TestMapLayers_InvalidZoom(t *testing.T) {
	env := newEnv(t, nil)
	code, _ := env.do(t, "GET", "/v1/map/layers?zoom=40", "alice", "")
	if code != 400 {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestMapLayers_ZoomLimitFollowsConfig(t *testing.T) {
	opts := usecases.DefaultMapOptions()
	opts.MaxZoom = 21
	env := newEnvWithOptions(t, nil, opts)

	code, _ := env.do(t, "GET", "/v1/map/layers?zoom=20", "alice", "")
	if code != 200 {
		t.Errorf("zoom 20 with max 21: expected 200, got %d", code)
	}
	code, body := env.do(t, "GET", "/v1/map/layers?zoom=22", "alice", "")
	if code != 400 {
		t.Fatalf("zoom 22 with max 21: expected 400, got %d", code)
	}
	if !strings.Contains(string(body), "between 0 and 21") {
		t.Errorf("expected message naming the configured max, got %s", body)
	}
}

func TestMapGeoJSON(t *testing.T) {
	env := newEnv(t, nil)

	req := httptest.NewRequest("GET", "/v1/map/geojson?zoom=19", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %s", ct)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 3 {
		t.Errorf("expected 3 features, got %s with %d", fc.Type, len(fc.Features))
	}
}

func TestExportMap(t *testing.T) {
	env := newEnv(t, nil)

	code, body := env.do(t, "POST", "/v1/map/export", "alice", "")
	if code != 201 {
		t.Fatalf("expected 201, got %d: %s", code, body)
	}
	var result struct {
		Key string `json:"key"`
	}
	decode(t, body, &result)
	if !strings.HasPrefix(result.Key, "snapshots/alice/") {
		t.Errorf("unexpected key %s", result.Key)
	}
	if env.objects.ContentType(result.Key) != "application/geo+json" {
		t.Errorf("expected geojson content type")
	}
}

func TestExportMap_NoStorage(t *testing.T) {
	env := newEnv(t, nil)
	env.deps.Export = nil
	code, _ := env.do(t, "POST", "/v1/map/export", "alice", "")
	if code != 503 {
		t.Errorf("expected 503, got %d", code)
	}
}

// ---- Search ----

func delhiSearch() *mockSearchClient {
	return &mockSearchClient{
		searchFn: func(ctx context.Context, query string) ([]domain.SearchResult, error) {
			return []domain.SearchResult{
				{ID: "a", Title: "Delhi", Location: domain.GeoPoint{Lat: 28.6, Lon: 77.2}},
				{ID: "b", Title: "Delhi", Location: domain.GeoPoint{Lat: 28.7, Lon: 77.1}},
				{ID: "c", Title: "Bengaluru", Location: domain.GeoPoint{Lat: 12.97, Lon: 77.59}},
			}, nil
		},
	}
}

func TestSearch_DeduplicatesByTitle(t *testing.T) {
	env := newEnv(t, delhiSearch())

	code, body := env.do(t, "GET", "/v1/search?q=delhi", "alice", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var result handler.SearchResponse
	decode(t, body, &result)
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Results))
	}
	if result.Results[0].Title != "Delhi" || result.Results[0].ID != "b" {
		t.Errorf("expected the later Delhi record to win, got %+v", result.Results[0])
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	env := newEnv(t, nil)
	code, _ := env.do(t, "GET", "/v1/search", "alice", "")
	if code != 400 {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestSearch_Unavailable(t *testing.T) {
	env := newEnv(t, &mockSearchClient{
		searchFn: func(ctx context.Context, query string) ([]domain.SearchResult, error) {
			return nil, errors.New("connection refused")
		},
	})
	code, body := env.do(t, "GET", "/v1/search?q=delhi", "alice", "")
	if code != 502 {
		t.Fatalf("expected 502, got %d: %s", code, body)
	}
	var apiErr handler.APIError
	decode(t, body, &apiErr)
	if apiErr.Code != "search_unavailable" {
		t.Errorf("expected search_unavailable, got %s", apiErr.Code)
	}
}

func TestSearchSelect_AddsMarkerAndRefits(t *testing.T) {
	env := newEnv(t, delhiSearch())

	env.do(t, "GET", "/v1/search?q=delhi", "alice", "")
	code, body := env.do(t, "POST", "/v1/search/select", "alice", `{"title":"Bengaluru"}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var result struct {
		Marker   domain.Marker   `json:"marker"`
		Viewport domain.Viewport `json:"viewport"`
	}
	decode(t, body, &result)
	if result.Marker.Label != "<div><h4>Bengaluru</h4></div>" {
		t.Errorf("unexpected popup %q", result.Marker.Label)
	}
	if result.Viewport.Bounds == nil || !result.Viewport.Bounds.Contains(result.Marker.Location) {
		t.Errorf("expected viewport to contain the new marker, got %+v", result.Viewport)
	}

	_, body = env.do(t, "GET", "/v1/map", "alice", "")
	var snap domain.MapSnapshot
	decode(t, body, &snap)
	if len(snap.Markers) != 4 {
		t.Errorf("expected 4 markers after selection, got %d", len(snap.Markers))
	}
}

func TestSearchSelect_UnknownTitle(t *testing.T) {
	env := newEnv(t, delhiSearch())
	env.do(t, "GET", "/v1/search?q=delhi", "alice", "")
	code, _ := env.do(t, "POST", "/v1/search/select", "alice", `{"title":"Mumbai"}`)
	if code != 404 {
		t.Errorf("expected 404, got %d", code)
	}
}

// ---- Tour ----

func TestTour_Walkthrough(t *testing.T) {
	env := newEnv(t, nil)

	_, body := env.do(t, "GET", "/v1/tour", "alice", "")
	var st handler.TourResponse
	decode(t, body, &st)
	if !st.AutoShow || st.Active {
		t.Fatalf("expected auto-show for a new client, got %+v", st.TourState)
	}

	code, body := env.do(t, "POST", "/v1/tour/start", "alice", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	decode(t, body, &st)
	if !st.Active || st.Step == nil || st.Index != 0 {
		t.Fatalf("expected first step, got %+v", st.TourState)
	}

	_, body = env.do(t, "POST", "/v1/tour/next", "alice", "")
	decode(t, body, &st)
	if st.Index != 1 {
		t.Errorf("expected step 1, got %d", st.Index)
	}

	_, body = env.do(t, "POST", "/v1/tour/exit", "alice", "")
	decode(t, body, &st)
	if st.Active || !st.Seen || st.AutoShow {
		t.Errorf("expected a finished, seen tour, got %+v", st.TourState)
	}

	_, body = env.do(t, "GET", "/v1/map", "alice", "")
	var snap domain.MapSnapshot
	decode(t, body, &snap)
	if !snap.Preferences.TourSeen {
		t.Error("expected tour_seen after exit")
	}
}

func TestTour_NextWithoutStart(t *testing.T) {
	env := newEnv(t, nil)
	code, _ := env.do(t, "POST", "/v1/tour/next", "alice", "")
	if code != 409 {
		t.Errorf("expected 409, got %d", code)
	}
}

// ---- Members ----

func TestListMembers_Pagination(t *testing.T) {
	env := newEnv(t, nil)

	req := httptest.NewRequest("GET", "/v1/members?offset=1&limit=1", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %q", link)
	}

	var result struct {
		Data       []domain.Member `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 3 || len(result.Data) != 1 || result.Data[0].ID != "2" {
		t.Errorf("unexpected page: %+v", result)
	}
}

func TestGetMember_NotFound(t *testing.T) {
	env := newEnv(t, nil)
	code, _ := env.do(t, "GET", "/v1/members/999", "", "")
	if code != 404 {
		t.Errorf("expected 404, got %d", code)
	}
}

// ---- System ----

func TestHealth(t *testing.T) {
	env := newEnv(t, nil)
	code, body := env.do(t, "GET", "/v1/health", "", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result map[string]interface{}
	decode(t, body, &result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", result["status"])
	}
}

func TestReady_NothingConfigured(t *testing.T) {
	env := newEnv(t, nil)
	code, _ := env.do(t, "GET", "/v1/ready", "", "")
	if code != 200 {
		t.Errorf("expected 200 with optional backends absent, got %d", code)
	}
}

func TestETag_NotModified(t *testing.T) {
	env := newEnv(t, nil)

	req := httptest.NewRequest("GET", "/v1/members", nil)
	resp, _ := env.app.Test(req, -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req = httptest.NewRequest("GET", "/v1/members", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = env.app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestCacheControl_PerClientStateIsPrivate(t *testing.T) {
	env := newEnv(t, nil)
	req := httptest.NewRequest("GET", "/v1/preferences", nil)
	resp, _ := env.app.Test(req, -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "private, no-store" {
		t.Errorf("expected private, no-store, got %q", cc)
	}
}

func TestGraphQL_MapAndToggle(t *testing.T) {
	env := newEnv(t, nil)

	code, body := env.do(t, "POST", "/graphql", "alice",
		`{"query":"mutation { toggleView { view } }"}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	code, body = env.do(t, "POST", "/graphql", "alice",
		`{"query":"{ map { clustered markers { id label } preferences { view theme } } }"}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result struct {
		Data struct {
			Map struct {
				Clustered bool `json:"clustered"`
				Markers   []struct {
					ID string `json:"id"`
				} `json:"markers"`
				Preferences struct {
					View string `json:"view"`
				} `json:"preferences"`
			} `json:"map"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	decode(t, body, &result)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Data.Map.Clustered || result.Data.Map.Preferences.View != "grouped" {
		t.Errorf("expected grouped map, got %+v", result.Data.Map)
	}
	if len(result.Data.Map.Markers) != 2 {
		t.Errorf("expected 2 grouped markers, got %d", len(result.Data.Map.Markers))
	}
}
