package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/membermap/membermap/internal/core/usecases")

// MapOptions configures how map views are initialised.
type MapOptions struct {
	TileURL       string // may contain {style} and {token}
	AccessToken   string
	MaxNativeZoom int
	MaxZoom       int
	InitialCenter domain.GeoPoint
	InitialZoom   float64
	Attribution   string
	AddMemberURL  string
	SourceURL     string
	ClusterRadius float64
	MinFitRadius  float64 // meters
	DefaultSize   domain.MapSize
}

// DefaultMapOptions centers on India at zoom 5 with Mapbox tiles.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		TileURL:       "https://api.mapbox.com/styles/v1/mapbox/{style}/tiles/256/{z}/{x}/{y}?access_token={token}",
		MaxNativeZoom: 18,
		MaxZoom:       DefaultMaxZoom,
		InitialCenter: domain.GeoPoint{Lat: 22.5, Lon: 80},
		InitialZoom:   5,
		ClusterRadius: DefaultClusterRadius,
		MinFitRadius:  1000,
		DefaultSize:   domain.MapSize{Width: 1024, Height: 768},
	}
}

// mapView is the live state of one client's map.
type mapView struct {
	mu            sync.Mutex
	clientID      string
	prefs         domain.Preferences
	tiles         domain.TileLayer
	controls      []domain.Control
	markers       []domain.Marker // the marker layer; cluster-aware when clustered
	clustered     bool
	viewport      domain.Viewport
	size          domain.MapSize
	initializedAt time.Time
}

// MapService owns the live map view of every client. A view is built once
// from the client's flags and members and then only changes through
// AddMarker and Center until it is reloaded.
type MapService struct {
	members *MemberService
	prefs   *PreferencesService
	opts    MapOptions

	mu     sync.Mutex
	views  map[string]*mapView
	builds map[string]*sync.Mutex // client -> serialises view builds

	loads singleflight.Group // dedupes lazy first loads per client
}

// NewMapService creates a new MapService.
func NewMapService(members *MemberService, prefs *PreferencesService, opts MapOptions) *MapService {
	def := DefaultMapOptions()
	if opts.TileURL == "" {
		opts.TileURL = def.TileURL
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = def.MaxZoom
	}
	if opts.MaxNativeZoom <= 0 {
		opts.MaxNativeZoom = def.MaxNativeZoom
	}
	if opts.ClusterRadius <= 0 {
		opts.ClusterRadius = def.ClusterRadius
	}
	if opts.DefaultSize.Width <= 0 || opts.DefaultSize.Height <= 0 {
		opts.DefaultSize = def.DefaultSize
	}
	return &MapService{
		members: members,
		prefs:   prefs,
		opts:    opts,
		views:   make(map[string]*mapView),
		builds:  make(map[string]*sync.Mutex),
	}
}

// MaxZoom is the deepest zoom layers can be rendered at.
func (s *MapService) MaxZoom() int {
	return s.opts.MaxZoom
}

// Init builds a fresh view for the client, replacing any existing one.
// Flags are read exactly once here. When the build fails the previous view
// is dropped, so it is never served with flags that may since have changed.
func (s *MapService) Init(ctx context.Context, clientID string, size domain.MapSize) (domain.MapSnapshot, error) {
	v, err := s.rebuild(ctx, clientID, size)
	if err != nil {
		return domain.MapSnapshot{}, err
	}
	return s.snapshot(v), nil
}

// rebuild replaces the client's view, or drops it if the build fails.
func (s *MapService) rebuild(ctx context.Context, clientID string, size domain.MapSize) (*mapView, error) {
	lock := s.buildLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	v, err := s.initView(ctx, clientID, size)
	if err != nil {
		s.Invalidate(clientID)
		return nil, err
	}
	return v, nil
}

func (s *MapService) buildLock(clientID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.builds[clientID]
	if !ok {
		l = &sync.Mutex{}
		s.builds[clientID] = l
	}
	return l
}

// initView builds and registers a view. Callers hold the client's build lock.
func (s *MapService) initView(ctx context.Context, clientID string, size domain.MapSize) (*mapView, error) {
	ctx, span := tracer.Start(ctx, "map.init")
	defer span.End()
	span.SetAttributes(attribute.String("client_id", clientID))

	prefs, err := s.prefs.Load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	if size.Width <= 0 || size.Height <= 0 {
		size = s.opts.DefaultSize
	}

	v := &mapView{
		clientID:  clientID,
		prefs:     prefs,
		tiles:     s.tileLayer(prefs.Theme),
		controls:  s.controls(),
		markers:   Aggregate(members, prefs.View),
		clustered: prefs.View == domain.ViewClustered,
		viewport: domain.Viewport{
			Center: s.opts.InitialCenter,
			Zoom:   s.opts.InitialZoom,
		},
		size:          size,
		initializedAt: time.Now(),
	}
	metrics.MarkersRendered.WithLabelValues(string(prefs.View)).Observe(float64(len(v.markers)))
	span.SetAttributes(attribute.Int("markers", len(v.markers)), attribute.String("view", string(prefs.View)))

	s.mu.Lock()
	s.views[clientID] = v
	s.mu.Unlock()

	return v, nil
}

// View returns the client's live view, initialising it on first use.
func (s *MapService) View(ctx context.Context, clientID string) (domain.MapSnapshot, error) {
	v, err := s.view(ctx, clientID)
	if err != nil {
		return domain.MapSnapshot{}, err
	}
	return s.snapshot(v), nil
}

// Reload discards the client's view and rebuilds it from its flags. On
// failure no view is left behind; the next access builds a fresh one.
func (s *MapService) Reload(ctx context.Context, clientID string) error {
	size := s.opts.DefaultSize
	s.mu.Lock()
	if v, ok := s.views[clientID]; ok {
		v.mu.Lock()
		size = v.size
		v.mu.Unlock()
	}
	s.mu.Unlock()

	_, err := s.rebuild(ctx, clientID, size)
	return err
}

// Invalidate drops the client's view; the next access rebuilds it.
func (s *MapService) Invalidate(clientID string) {
	s.mu.Lock()
	delete(s.views, clientID)
	s.mu.Unlock()
}

// InvalidateAll drops every view, e.g. after the member list changed.
func (s *MapService) InvalidateAll() {
	s.mu.Lock()
	s.views = make(map[string]*mapView)
	s.mu.Unlock()
}

// Layers renders the client's current layer set at zoom. A negative zoom
// means the view's current zoom.
func (s *MapService) Layers(ctx context.Context, clientID string, zoom float64) ([]domain.Layer, error) {
	v, err := s.view(ctx, clientID)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if zoom < 0 {
		zoom = v.viewport.Zoom
	}
	return s.layersLocked(v, zoom), nil
}

// Center fits the viewport to every marker currently on the client's map.
// With no markers the viewport is left unchanged and moved is false.
func (s *MapService) Center(ctx context.Context, clientID string) (vp domain.Viewport, moved bool, err error) {
	v, err := s.view(ctx, clientID)
	if err != nil {
		return domain.Viewport{}, false, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	vp, moved = s.fitLocked(v)
	return vp, moved, nil
}

// Resize records the client's canvas size, used by subsequent fits.
func (s *MapService) Resize(ctx context.Context, clientID string, size domain.MapSize) error {
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("%w: map size must be positive", domain.ErrInvalidQuery)
	}
	v, err := s.view(ctx, clientID)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.size = size
	v.mu.Unlock()
	return nil
}

// AddMarker places m on the client's live marker layer and re-fits the
// viewport so it includes the new marker.
func (s *MapService) AddMarker(ctx context.Context, clientID string, m domain.Marker) (domain.Viewport, error) {
	v, err := s.view(ctx, clientID)
	if err != nil {
		return domain.Viewport{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.markers = append(v.markers, m)
	vp, _ := s.fitLocked(v)
	return vp, nil
}

func (s *MapService) fitLocked(v *mapView) (domain.Viewport, bool) {
	layers := s.layersLocked(v, v.viewport.Zoom)
	vp, ok := FitViewport(layers, v.size, float64(s.opts.MaxZoom), s.opts.MinFitRadius)
	if !ok {
		return v.viewport, false
	}
	v.viewport = vp
	return vp, true
}

func (s *MapService) layersLocked(v *mapView, zoom float64) []domain.Layer {
	if v.clustered {
		return ClusterMarkers(v.markers, zoom, s.opts.ClusterRadius, s.opts.MaxZoom)
	}
	layers := make([]domain.Layer, 0, len(v.markers))
	for _, m := range v.markers {
		layers = append(layers, domain.MarkerLayer(m))
	}
	return layers
}

func (s *MapService) view(ctx context.Context, clientID string) (*mapView, error) {
	if v, ok := s.lookup(clientID); ok {
		return v, nil
	}

	// Concurrent first accesses share one build, so a marker added by one
	// caller lands on the view the others see.
	res, err, _ := s.loads.Do(clientID, func() (interface{}, error) {
		lock := s.buildLock(clientID)
		lock.Lock()
		defer lock.Unlock()
		if v, ok := s.lookup(clientID); ok {
			return v, nil
		}
		return s.initView(ctx, clientID, s.opts.DefaultSize)
	})
	if err != nil {
		return nil, err
	}
	return res.(*mapView), nil
}

func (s *MapService) lookup(clientID string) (*mapView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[clientID]
	return v, ok
}

func (s *MapService) snapshot(v *mapView) domain.MapSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	markers := make([]domain.Marker, len(v.markers))
	copy(markers, v.markers)
	controls := make([]domain.Control, len(v.controls))
	copy(controls, v.controls)
	return domain.MapSnapshot{
		ClientID:      v.clientID,
		Preferences:   v.prefs,
		Tiles:         v.tiles,
		Attribution:   s.opts.Attribution,
		Controls:      controls,
		Markers:       markers,
		Clustered:     v.clustered,
		Viewport:      v.viewport,
		Size:          v.size,
		AutoTour:      !v.prefs.TourSeen,
		InitializedAt: v.initializedAt,
	}
}

func (s *MapService) tileLayer(theme domain.Theme) domain.TileLayer {
	r := strings.NewReplacer("{style}", theme.StyleID(), "{token}", s.opts.AccessToken)
	return domain.TileLayer{
		URLTemplate:   r.Replace(s.opts.TileURL),
		Theme:         theme,
		MaxNativeZoom: s.opts.MaxNativeZoom,
		MaxZoom:       s.opts.MaxZoom,
	}
}

func (s *MapService) controls() []domain.Control {
	controls := []domain.Control{
		{ID: "center", Icon: "fa-crosshairs", Title: "Center Map", Action: domain.ActionCenter},
		{ID: "theme", Icon: "fas fa-adjust", Title: "Toggle Theme", Action: domain.ActionToggleTheme},
		{ID: "view", Icon: "fas fa-layer-group", Title: "Toggle View", Action: domain.ActionToggleView},
	}
	if s.opts.AddMemberURL != "" {
		controls = append(controls, domain.Control{
			ID: "add-member", Icon: "fas fa-user-plus", Title: "Add Member",
			Action: domain.ActionOpenLink, URL: s.opts.AddMemberURL,
		})
	}
	if s.opts.SourceURL != "" {
		controls = append(controls, domain.Control{
			ID: "source", Icon: "fab fa-github", Title: "View Source on Github",
			Action: domain.ActionOpenLink, URL: s.opts.SourceURL,
		})
	}
	controls = append(controls, domain.Control{
		ID: "help", Icon: "fas fa-question", Title: "Show Help", Action: domain.ActionHelp,
	})
	return controls
}
