package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/usecases"
)

// ---- Map ----

// GetMapHandler returns the client's map, building it on first access.
func GetMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Maps.View(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(snap)
	}
}

// reloadRequest optionally carries the canvas size of a fresh page load.
type reloadRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ReloadMapHandler rebuilds the client's map from its stored flags, the way
// a page reload does. Markers placed from search are dropped.
func ReloadMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req reloadRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if req.Width < 0 || req.Height < 0 {
			return errBadRequest(c, "width and height must not be negative")
		}
		snap, err := deps.Maps.Init(c.UserContext(), clientFrom(c),
			domain.MapSize{Width: req.Width, Height: req.Height})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(snap)
	}
}

// zoomParam reads ?zoom=, returning -1 (current zoom) when absent.
func zoomParam(c *fiber.Ctx, maxZoom int) (float64, error) {
	if c.Query("zoom") == "" {
		return -1, nil
	}
	zoom := c.QueryFloat("zoom", -1)
	if zoom < 0 || zoom > float64(maxZoom) {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("zoom must be between 0 and %d", maxZoom))
	}
	return zoom, nil
}

// MapLayersHandler returns the rendered layer set, with clusters computed
// for the requested zoom in clustered mode.
func MapLayersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		zoom, err := zoomParam(c, deps.Maps.MaxZoom())
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		layers, err := deps.Maps.Layers(c.UserContext(), clientFrom(c), zoom)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"zoom": zoom, "layers": layers})
	}
}

// MapGeoJSONHandler returns the rendered layer set as a GeoJSON
// FeatureCollection.
func MapGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		zoom, err := zoomParam(c, deps.Maps.MaxZoom())
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		layers, err := deps.Maps.Layers(c.UserContext(), clientFrom(c), zoom)
		if err != nil {
			return writeError(c, err)
		}
		data, err := usecases.LayersToGeoJSON(layers).MarshalJSON()
		if err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

// CenterMapHandler fits the viewport to every marker on the map.
func CenterMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vp, moved, err := deps.Maps.Center(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"viewport": vp, "moved": moved})
	}
}

// ExportMapHandler stores a GeoJSON snapshot of the map in object storage.
func ExportMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Export == nil {
			return errUnavailable(c, "storage_unavailable", "object storage is not configured")
		}
		zoom, err := zoomParam(c, deps.Maps.MaxZoom())
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		key, err := deps.Export.Export(c.UserContext(), clientFrom(c), zoom)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
	}
}

// ---- Preferences ----

// GetPreferencesHandler returns the client's stored flags.
func GetPreferencesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		prefs, err := deps.Prefs.Load(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(prefs)
	}
}

// ToggleThemeHandler flips dark/light and reloads the client's map.
func ToggleThemeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		prefs, err := deps.Prefs.ToggleTheme(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(prefs)
	}
}

// ToggleViewHandler flips grouped/clustered and reloads the client's map.
func ToggleViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		prefs, err := deps.Prefs.ToggleView(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(prefs)
	}
}

// ---- Search ----

// SearchResponse lists search results in display order.
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
}

// SearchHandler queries the remote search endpoint. A newer search from the
// same client makes this one fail with 409.
func SearchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		results, err := deps.Search.Query(c.UserContext(), clientFrom(c), query)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(SearchResponse{Query: results.Query, Results: results.List()})
	}
}

type selectRequest struct {
	Title string `json:"title"`
}

// SelectSearchResultHandler places a result from the client's last search
// on the map and re-fits the viewport.
func SelectSearchResultHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req selectRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Title == "" {
			return errBadRequest(c, "title is required")
		}
		marker, vp, err := deps.Search.Select(c.UserContext(), clientFrom(c), req.Title)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"marker": marker, "viewport": vp})
	}
}

// ---- Tour ----

// TourResponse is the tour state plus its full step list.
type TourResponse struct {
	domain.TourState
	Steps []domain.TourStep `json:"steps"`
}

func tourResponse(deps *Dependencies, st domain.TourState) TourResponse {
	return TourResponse{TourState: st, Steps: deps.Tour.Steps()}
}

// GetTourHandler returns the client's tour state.
func GetTourHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Tour.State(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(tourResponse(deps, st))
	}
}

// StartTourHandler opens the tour at its first step.
func StartTourHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Tour.Start(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(tourResponse(deps, st))
	}
}

// NextTourStepHandler advances the tour; past the last step it completes.
func NextTourStepHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Tour.Next(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(tourResponse(deps, st))
	}
}

// ExitTourHandler closes the tour and marks it as seen.
func ExitTourHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Tour.Exit(c.UserContext(), clientFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(tourResponse(deps, st))
	}
}

// ---- Members ----

// ListMembersHandler returns members with offset/limit pagination.
func ListMembersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		members, err := deps.Members.List(c.UserContext())
		if err != nil {
			return writeError(c, err)
		}

		pg := pageParams(c)
		pg.Total = len(members)
		start, end := pg.window()
		page := members[start:end]
		if page == nil {
			page = []domain.Member{}
		}

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetMemberHandler returns a single member by id.
func GetMemberHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "member id is required")
		}
		m, err := deps.Members.GetByID(c.UserContext(), id)
		if err != nil {
			return writeError(c, err)
		}
		if m == nil {
			return errNotFound(c, "member not found")
		}
		return c.JSON(m)
	}
}
