package usecases

import (
	"html"
	"log/slog"
	"strings"

	"github.com/membermap/membermap/internal/core/domain"
)

// groupLabelSeparator joins member names inside a grouped marker's popup.
const groupLabelSeparator = "<br>"

// Aggregate turns members into markers according to mode.
//
// In clustered mode every member gets its own marker; the caller places them
// in a cluster group. In grouped mode members sharing a city collapse into a
// single marker at the first member's location whose label lists every name
// in input order. Members without a city are kept as singleton groups.
// Members with unusable coordinates are skipped.
func Aggregate(members []domain.Member, mode domain.ViewMode) []domain.Marker {
	if mode == domain.ViewGrouped {
		return aggregateGrouped(members)
	}
	return aggregateClustered(members)
}

func aggregateClustered(members []domain.Member) []domain.Marker {
	markers := make([]domain.Marker, 0, len(members))
	for _, m := range members {
		if !m.Location.Valid() {
			slog.Warn("skipping member with invalid location", "member", m.ID, "name", m.Name)
			continue
		}
		markers = append(markers, domain.Marker{
			ID:        "member:" + m.ID,
			Location:  m.Location,
			Label:     html.EscapeString(m.Name),
			AutoClose: true,
			Source:    domain.SourceMember,
			Members:   []string{m.ID},
		})
	}
	return markers
}

type memberGroup struct {
	key     string
	first   domain.Member
	names   []string
	members []string
}

func aggregateGrouped(members []domain.Member) []domain.Marker {
	var groups []*memberGroup
	byCity := make(map[string]*memberGroup)

	for _, m := range members {
		if !m.Location.Valid() {
			slog.Warn("skipping member with invalid location", "member", m.ID, "name", m.Name)
			continue
		}

		city := strings.TrimSpace(m.City)
		if city != "" {
			if g, ok := byCity[city]; ok {
				g.names = append(g.names, html.EscapeString(m.Name))
				g.members = append(g.members, m.ID)
				continue
			}
		}

		g := &memberGroup{
			key:     "member:" + m.ID,
			first:   m,
			names:   []string{html.EscapeString(m.Name)},
			members: []string{m.ID},
		}
		if city != "" {
			g.key = "city:" + city
			byCity[city] = g
		}
		groups = append(groups, g)
	}

	markers := make([]domain.Marker, 0, len(groups))
	for _, g := range groups {
		markers = append(markers, domain.Marker{
			ID:        g.key,
			Location:  g.first.Location,
			Label:     strings.Join(g.names, groupLabelSeparator),
			AutoClose: false,
			Source:    domain.SourceGroup,
			Members:   g.members,
		})
	}
	return markers
}
