package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	itemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Item",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.Int},
			"name":     &graphql.Field{Type: graphql.String},
			"post_id":  &graphql.Field{Type: graphql.Int},
			"inv_type": &graphql.Field{Type: graphql.String},
			"color":    &graphql.Field{Type: graphql.String},
			"distance": &graphql.Field{Type: graphql.Float, Description: "Meters, nearby queries only"},
			"geo": &graphql.Field{
				Type: graphql.NewList(geoPointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rec, ok := p.Source.(domain.ItemRecord)
					if !ok {
						return nil, nil
					}
					out := make([]map[string]interface{}, 0, len(rec.Geo))
					for _, g := range rec.Geo {
						if g.Valid() {
							out = append(out, map[string]interface{}{"lat": *g.Lat, "lng": *g.Lng})
						}
					}
					return out, nil
				},
			},
		},
	})

	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"lat":   &graphql.Field{Type: graphql.Float},
			"lng":   &graphql.Field{Type: graphql.Float},
			"type":  &graphql.Field{Type: graphql.String},
			"human": &graphql.Field{Type: graphql.String},
		},
	})

	typeStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TypeStats",
		Fields: graphql.Fields{
			"inv_type":  &graphql.Field{Type: graphql.String},
			"items":     &graphql.Field{Type: graphql.Int},
			"located":   &graphql.Field{Type: graphql.Int},
			"last_sync": &graphql.Field{Type: graphql.DateTime},
		},
	})

	nearbyArgs := func(withType bool) graphql.FieldConfigArgument {
		args := graphql.FieldConfigArgument{
			"lat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lng":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
			"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
		}
		if withType {
			args["type"] = &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}
		}
		return args
	}
	nearby := func(kind geolocate.NearbyKind) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (interface{}, error) {
			invType, _ := p.Args["type"].(string)
			recs, err := deps.Involvements.Nearby(p.Context, geolocate.NearbyQuery{
				Kind:    kind,
				Lat:     p.Args["lat"].(float64),
				Lng:     p.Args["lng"].(float64),
				InvType: invType,
				Limit:   p.Args["limit"].(int),
			})
			if err != nil {
				return nil, err
			}
			return recs, nil
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"involvementsNearby": &graphql.Field{
				Type:        graphql.NewList(itemType),
				Description: "Involvements of a type closest to a point",
				Args:        nearbyArgs(true),
				Resolve:     nearby(geolocate.NearbyInvolvements),
			},
			"smallGroupsNearby": &graphql.Field{
				Type:        graphql.NewList(itemType),
				Description: "Small groups closest to a point",
				Args:        nearbyArgs(false),
				Resolve:     nearby(geolocate.NearbySmallGroups),
			},
			"items": &graphql.Field{
				Type:        graphql.NewList(itemType),
				Description: "Every record of an involvement type",
				Args: graphql.FieldConfigArgument{
					"type": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Involvements.Items(p.Context, p.Args["type"].(string))
				},
			},
			"item": &graphql.Field{
				Type:        itemType,
				Description: "A record by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rec, err := deps.Involvements.GetByID(p.Context, int64(p.Args["id"].(int)))
					if err != nil {
						return nil, err
					}
					return *rec, nil
				},
			},
			"syncStatus": &graphql.Field{
				Type:        graphql.NewList(typeStatsType),
				Description: "Stored records per involvement type",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Involvements.Stats(p.Context)
				},
			},
			"geolocate": &graphql.Field{
				Type:        locationType,
				Description: "Approximate location of an address",
				Args: graphql.FieldConfigArgument{
					"ip": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Geolocate.Locate(p.Context, parseIP(p.Args["ip"].(string)))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
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
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
