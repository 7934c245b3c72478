package domain

import "time"

// Member is a person or place plotted on the map.
type Member struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    GeoPoint  `json:"location"`
	City        string    `json:"city,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// MarkerSource tells where a marker came from.
type MarkerSource string

const (
	SourceMember MarkerSource = "member"
	SourceGroup  MarkerSource = "group"
	SourceSearch MarkerSource = "search"
)

// Marker is a point placed on the map with a popup label.
type Marker struct {
	ID        string       `json:"id"`
	Location  GeoPoint     `json:"location"`
	Label     string       `json:"label"`      // popup HTML
	AutoClose bool         `json:"auto_close"` // close popup on outside click
	Source    MarkerSource `json:"source"`
	Members   []string     `json:"members,omitempty"` // member IDs behind a grouped marker
}

// SearchResult is one record returned by the remote search endpoint.
type SearchResult struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Location    GeoPoint `json:"location"`
}

// SearchResults holds results keyed by title. Order lists titles in the
// order they were first seen; a later record with the same title replaces
// the earlier one in ByTitle.
type SearchResults struct {
	Query   string                  `json:"query"`
	Order   []string                `json:"order"`
	ByTitle map[string]SearchResult `json:"results"`
}

// List returns the results in display order.
func (r *SearchResults) List() []SearchResult {
	out := make([]SearchResult, 0, len(r.Order))
	for _, t := range r.Order {
		out = append(out, r.ByTitle[t])
	}
	return out
}

// TileLayer describes the base map tiles.
type TileLayer struct {
	URLTemplate   string `json:"url_template"`
	Theme         Theme  `json:"theme"`
	MaxNativeZoom int    `json:"max_native_zoom"`
	MaxZoom       int    `json:"max_zoom"`
}

// ControlAction is what a map control does when clicked.
type ControlAction string

const (
	ActionCenter      ControlAction = "center"
	ActionToggleTheme ControlAction = "toggle_theme"
	ActionToggleView  ControlAction = "toggle_view"
	ActionOpenLink    ControlAction = "open_link"
	ActionHelp        ControlAction = "help"
)

// Control is an icon-triggered action rendered on the map.
type Control struct {
	ID     string        `json:"id"`
	Icon   string        `json:"icon"`
	Title  string        `json:"title"`
	Action ControlAction `json:"action"`
	URL    string        `json:"url,omitempty"`
}

// MapSnapshot is the serialisable state of one client's map.
type MapSnapshot struct {
	ClientID      string      `json:"client_id"`
	Preferences   Preferences `json:"preferences"`
	Tiles         TileLayer   `json:"tiles"`
	Attribution   string      `json:"attribution,omitempty"`
	Controls      []Control   `json:"controls"`
	Markers       []Marker    `json:"markers"`
	Clustered     bool        `json:"clustered"`
	Viewport      Viewport    `json:"viewport"`
	Size          MapSize     `json:"size"`
	AutoTour      bool        `json:"auto_tour"`
	InitializedAt time.Time   `json:"initialized_at"`
}
