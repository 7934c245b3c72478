package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

const gqlClientKey ctxKey = "graphql_client"

// gqlClient returns the "client" argument, falling back to the caller's
// resolved client id.
func gqlClient(p graphql.ResolveParams) string {
	if id, ok := p.Args["client"].(string); ok && clientIDPattern.MatchString(id) {
		return id
	}
	if id, ok := p.Context.Value(gqlClientKey).(string); ok {
		return id
	}
	return defaultClientID
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	viewportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Viewport",
		Fields: graphql.Fields{
			"center": &graphql.Field{Type: geoPointType},
			"zoom":   &graphql.Field{Type: graphql.Float},
			"bounds": &graphql.Field{Type: boundsType},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"location":   &graphql.Field{Type: geoPointType},
			"label":      &graphql.Field{Type: graphql.String},
			"auto_close": &graphql.Field{Type: graphql.Boolean},
			"source":     &graphql.Field{Type: graphql.String},
			"members":    &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	preferencesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Preferences",
		Fields: graphql.Fields{
			"theme":     &graphql.Field{Type: graphql.String},
			"view":      &graphql.Field{Type: graphql.String},
			"tour_seen": &graphql.Field{Type: graphql.Boolean},
		},
	})

	tileLayerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TileLayer",
		Fields: graphql.Fields{
			"url_template":    &graphql.Field{Type: graphql.String},
			"theme":           &graphql.Field{Type: graphql.String},
			"max_native_zoom": &graphql.Field{Type: graphql.Int},
			"max_zoom":        &graphql.Field{Type: graphql.Int},
		},
	})

	controlType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Control",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.String},
			"icon":   &graphql.Field{Type: graphql.String},
			"title":  &graphql.Field{Type: graphql.String},
			"action": &graphql.Field{Type: graphql.String},
			"url":    &graphql.Field{Type: graphql.String},
		},
	})

	mapType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Map",
		Fields: graphql.Fields{
			"client_id":   &graphql.Field{Type: graphql.String},
			"preferences": &graphql.Field{Type: preferencesType},
			"tiles":       &graphql.Field{Type: tileLayerType},
			"attribution": &graphql.Field{Type: graphql.String},
			"controls":    &graphql.Field{Type: graphql.NewList(controlType)},
			"markers":     &graphql.Field{Type: graphql.NewList(markerType)},
			"clustered":   &graphql.Field{Type: graphql.Boolean},
			"viewport":    &graphql.Field{Type: viewportType},
			"auto_tour":   &graphql.Field{Type: graphql.Boolean},
		},
	})

	memberType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Member",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"city":        &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
		},
	})

	searchResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SearchResult",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
		},
	})

	tourStepType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TourStep",
		Fields: graphql.Fields{
			"title":   &graphql.Field{Type: graphql.String},
			"element": &graphql.Field{Type: graphql.String},
			"intro":   &graphql.Field{Type: graphql.String},
		},
	})

	tourStateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TourState",
		Fields: graphql.Fields{
			"active":    &graphql.Field{Type: graphql.Boolean},
			"index":     &graphql.Field{Type: graphql.Int},
			"total":     &graphql.Field{Type: graphql.Int},
			"step":      &graphql.Field{Type: tourStepType},
			"seen":      &graphql.Field{Type: graphql.Boolean},
			"auto_show": &graphql.Field{Type: graphql.Boolean},
		},
	})

	clientArg := graphql.FieldConfigArgument{
		"client": &graphql.ArgumentConfig{Type: graphql.String},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"map": &graphql.Field{
				Type:        mapType,
				Description: "The client's map, built on first access",
				Args:        clientArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.View(p.Context, gqlClient(p))
				},
			},
			"preferences": &graphql.Field{
				Type:        preferencesType,
				Description: "The client's theme, view and tour flags",
				Args:        clientArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Prefs.Load(p.Context, gqlClient(p))
				},
			},
			"tour": &graphql.Field{
				Type:        tourStateType,
				Description: "The client's position in the onboarding tour",
				Args:        clientArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Tour.State(p.Context, gqlClient(p))
				},
			},
			"tourSteps": &graphql.Field{
				Type:        graphql.NewList(tourStepType),
				Description: "Every step of the onboarding tour",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Tour.Steps(), nil
				},
			},
			"members": &graphql.Field{
				Type:        graphql.NewList(memberType),
				Description: "List all members",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Members.List(p.Context)
				},
			},
			"member": &graphql.Field{
				Type:        memberType,
				Description: "Get a member by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Members.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"search": &graphql.Field{
				Type:        graphql.NewList(searchResultType),
				Description: "Search places; duplicate titles keep the last record",
				Args: graphql.FieldConfigArgument{
					"query":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"client": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					res, err := deps.Search.Query(p.Context, gqlClient(p), p.Args["query"].(string))
					if err != nil {
						return nil, err
					}
					return res.List(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"toggleTheme": &graphql.Field{
				Type:        preferencesType,
				Description: "Flip dark/light and reload the map",
				Args:        clientArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Prefs.ToggleTheme(p.Context, gqlClient(p))
				},
			},
			"toggleView": &graphql.Field{
				Type:        preferencesType,
				Description: "Flip grouped/clustered and reload the map",
				Args:        clientArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Prefs.ToggleView(p.Context, gqlClient(p))
				},
			},
			"centerMap": &graphql.Field{
				Type:        viewportType,
				Description: "Fit the viewport to every marker",
				Args:        clientArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					vp, _, err := deps.Maps.Center(p.Context, gqlClient(p))
					return vp, err
				},
			},
			"selectSearchResult": &graphql.Field{
				Type:        markerType,
				Description: "Place a result from the last search on the map",
				Args: graphql.FieldConfigArgument{
					"title":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"client": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, _, err := deps.Search.Select(p.Context, gqlClient(p), p.Args["title"].(string))
					return m, err
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        context.WithValue(c.UserContext(), gqlClientKey, clientFrom(c)),
		})

		return c.JSON(result)
	}
}
