package domain

// Theme selects the base tile style.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme returns the theme named by s, or def when s is not a known theme.
func ParseTheme(s string, def Theme) Theme {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s)
	}
	return def
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// StyleID is the tile provider's style identifier for the theme.
func (t Theme) StyleID() string {
	return string(t) + "-v10"
}

// ViewMode selects how members are aggregated into markers.
type ViewMode string

const (
	ViewGrouped   ViewMode = "grouped"
	ViewClustered ViewMode = "clustered"
)

// ParseViewMode returns the mode named by s, or def when s is not a known mode.
func ParseViewMode(s string, def ViewMode) ViewMode {
	switch ViewMode(s) {
	case ViewGrouped, ViewClustered:
		return ViewMode(s)
	}
	return def
}

// Toggle returns the other mode.
func (v ViewMode) Toggle() ViewMode {
	if v == ViewGrouped {
		return ViewClustered
	}
	return ViewGrouped
}

// Preferences are the persisted per-client flags, read once when a map
// view is initialised.
type Preferences struct {
	Theme    Theme    `json:"theme"`
	View     ViewMode `json:"view"`
	TourSeen bool     `json:"tour_seen"`
}

// Flag keys used by flag stores.
const (
	FlagTheme = "theme"
	FlagView  = "view"
	FlagIntro = "intro"
)
