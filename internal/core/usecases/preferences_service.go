package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/ports"
	"github.com/membermap/membermap/internal/pkg/metrics"
)

// introSeenValue is stored under the intro flag once the tour was exited.
const introSeenValue = "true"

// ReloadFunc rebuilds a client's map after its flags changed.
type ReloadFunc func(ctx context.Context, clientID string) error

// PreferencesService reads and toggles the persisted per-client flags.
// Every toggle is followed by a reload of the client's map.
type PreferencesService struct {
	flags     ports.FlagStore
	publisher ports.EventPublisher
	defaults  domain.Preferences
	reloaders []ReloadFunc
}

// NewPreferencesService creates a new PreferencesService. publisher may be nil.
func NewPreferencesService(flags ports.FlagStore, publisher ports.EventPublisher, defaultTheme domain.Theme, defaultView domain.ViewMode) *PreferencesService {
	return &PreferencesService{
		flags:     flags,
		publisher: publisher,
		defaults: domain.Preferences{
			Theme: domain.ParseTheme(string(defaultTheme), domain.ThemeDark),
			View:  domain.ParseViewMode(string(defaultView), domain.ViewClustered),
		},
	}
}

// OnReload registers fn to run after every toggle.
func (s *PreferencesService) OnReload(fn ReloadFunc) {
	s.reloaders = append(s.reloaders, fn)
}

// Defaults returns the preferences of a client that never toggled anything.
func (s *PreferencesService) Defaults() domain.Preferences {
	return s.defaults
}

// Load reads the client's flags. Unset or unrecognised values fall back to
// the configured defaults.
func (s *PreferencesService) Load(ctx context.Context, clientID string) (domain.Preferences, error) {
	prefs := s.defaults

	theme, ok, err := s.flags.GetFlag(ctx, clientID, domain.FlagTheme)
	if err != nil {
		return prefs, fmt.Errorf("read theme flag: %w", err)
	}
	if ok {
		prefs.Theme = domain.ParseTheme(theme, s.defaults.Theme)
	}

	view, ok, err := s.flags.GetFlag(ctx, clientID, domain.FlagView)
	if err != nil {
		return prefs, fmt.Errorf("read view flag: %w", err)
	}
	if ok {
		prefs.View = domain.ParseViewMode(view, s.defaults.View)
	}

	intro, ok, err := s.flags.GetFlag(ctx, clientID, domain.FlagIntro)
	if err != nil {
		return prefs, fmt.Errorf("read intro flag: %w", err)
	}
	prefs.TourSeen = ok && intro != ""

	return prefs, nil
}

// ToggleTheme flips dark and light, then reloads the client's map.
func (s *PreferencesService) ToggleTheme(ctx context.Context, clientID string) (domain.Preferences, error) {
	prefs, err := s.Load(ctx, clientID)
	if err != nil {
		return prefs, err
	}
	prefs.Theme = prefs.Theme.Toggle()
	if err := s.flags.SetFlag(ctx, clientID, domain.FlagTheme, string(prefs.Theme)); err != nil {
		return prefs, fmt.Errorf("write theme flag: %w", err)
	}
	metrics.PreferenceToggles.WithLabelValues(domain.FlagTheme).Inc()
	return prefs, s.reload(ctx, clientID)
}

// ToggleView flips grouped and clustered, then reloads the client's map.
func (s *PreferencesService) ToggleView(ctx context.Context, clientID string) (domain.Preferences, error) {
	prefs, err := s.Load(ctx, clientID)
	if err != nil {
		return prefs, err
	}
	prefs.View = prefs.View.Toggle()
	if err := s.flags.SetFlag(ctx, clientID, domain.FlagView, string(prefs.View)); err != nil {
		return prefs, fmt.Errorf("write view flag: %w", err)
	}
	metrics.PreferenceToggles.WithLabelValues(domain.FlagView).Inc()
	return prefs, s.reload(ctx, clientID)
}

// MarkTourSeen records that the client finished or dismissed the tour.
func (s *PreferencesService) MarkTourSeen(ctx context.Context, clientID string) error {
	if err := s.flags.SetFlag(ctx, clientID, domain.FlagIntro, introSeenValue); err != nil {
		return fmt.Errorf("write intro flag: %w", err)
	}
	return nil
}

func (s *PreferencesService) reload(ctx context.Context, clientID string) error {
	for _, fn := range s.reloaders {
		if err := fn(ctx, clientID); err != nil {
			return fmt.Errorf("reload map: %w", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReload(ctx, clientID); err != nil {
			slog.Warn("publish reload failed", "client", clientID, "error", err)
		}
	}
	return nil
}
