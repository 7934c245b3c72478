package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/membermap/membermap/internal/core/domain"
)

// DefaultTourSteps walks a new visitor through the map controls.
func DefaultTourSteps() []domain.TourStep {
	return []domain.TourStep{
		{
			Title: "Welcome",
			Intro: "Let me quickly walk you through this interface. " +
				"<p><em>You can also exit this guided tour by pressing <strong>ESC</strong> key.</em></p>",
		},
		{
			Title:   "Search here",
			Element: "div.leaflet-control-search.leaflet-control",
			Intro:   "Click this icon to open a search bar to search for various locations around the world.",
		},
		{
			Title:   "Center Map",
			Element: "button[title='Center Map']",
			Intro:   "Fit every marker on the screen, handy after zooming into one location.",
		},
		{
			Title:   "Toggle Theme",
			Element: "button[title='Toggle Theme']",
			Intro:   "Switch between the light and dark map themes.",
		},
		{
			Title:   "Toggle View",
			Element: "button[title='Toggle View']",
			Intro:   "Switch between one marker per member and one marker per city.",
		},
		{
			Title:   "Add Member",
			Element: "button[title='Add Member']",
			Intro:   "Opens the form to add yourself to the map.",
		},
		{
			Title:   "Show Help",
			Element: "button[title='Show Help']",
			Intro:   "Bring this tour back at any time.",
		},
	}
}

// TourService runs the onboarding walkthrough. Steps only move forward;
// leaving the tour for any reason marks it as seen for the client.
type TourService struct {
	prefs *PreferencesService
	steps []domain.TourStep

	mu     sync.Mutex
	active map[string]int // client -> current step index
}

// NewTourService creates a new TourService. Nil steps means DefaultTourSteps.
func NewTourService(prefs *PreferencesService, steps []domain.TourStep) *TourService {
	if steps == nil {
		steps = DefaultTourSteps()
	}
	return &TourService{prefs: prefs, steps: steps, active: make(map[string]int)}
}

// Steps returns the walkthrough content.
func (s *TourService) Steps() []domain.TourStep {
	out := make([]domain.TourStep, len(s.steps))
	copy(out, s.steps)
	return out
}

// ShouldAutoStart reports whether the tour should open by itself on load.
func (s *TourService) ShouldAutoStart(ctx context.Context, clientID string) (bool, error) {
	prefs, err := s.prefs.Load(ctx, clientID)
	if err != nil {
		return false, err
	}
	return !prefs.TourSeen && len(s.steps) > 0, nil
}

// State returns the client's position in the tour.
func (s *TourService) State(ctx context.Context, clientID string) (domain.TourState, error) {
	s.mu.Lock()
	idx, active := s.active[clientID]
	s.mu.Unlock()
	return s.state(ctx, clientID, idx, active)
}

// Start opens the tour at its first step, regardless of the seen flag.
func (s *TourService) Start(ctx context.Context, clientID string) (domain.TourState, error) {
	if len(s.steps) == 0 {
		return domain.TourState{}, fmt.Errorf("tour has no steps: %w", domain.ErrNotFound)
	}
	s.mu.Lock()
	s.active[clientID] = 0
	s.mu.Unlock()
	return s.state(ctx, clientID, 0, true)
}

// Next advances to the following step. Advancing past the last step
// completes the tour.
func (s *TourService) Next(ctx context.Context, clientID string) (domain.TourState, error) {
	s.mu.Lock()
	idx, ok := s.active[clientID]
	if !ok {
		s.mu.Unlock()
		return domain.TourState{}, domain.ErrTourNotActive
	}
	idx++
	if idx < len(s.steps) {
		s.active[clientID] = idx
		s.mu.Unlock()
		return s.state(ctx, clientID, idx, true)
	}
	s.mu.Unlock()
	return s.Exit(ctx, clientID)
}

// Exit closes the tour, whether it was completed or cancelled, and marks
// it as seen.
func (s *TourService) Exit(ctx context.Context, clientID string) (domain.TourState, error) {
	s.mu.Lock()
	delete(s.active, clientID)
	s.mu.Unlock()

	if err := s.prefs.MarkTourSeen(ctx, clientID); err != nil {
		return domain.TourState{}, err
	}
	return s.state(ctx, clientID, 0, false)
}

func (s *TourService) state(ctx context.Context, clientID string, idx int, active bool) (domain.TourState, error) {
	prefs, err := s.prefs.Load(ctx, clientID)
	if err != nil {
		return domain.TourState{}, err
	}
	st := domain.TourState{
		Active:   active,
		Index:    idx,
		Total:    len(s.steps),
		Seen:     prefs.TourSeen,
		AutoShow: !prefs.TourSeen && !active && len(s.steps) > 0,
	}
	if active && idx < len(s.steps) {
		step := s.steps[idx]
		st.Step = &step
	}
	return st, nil
}
