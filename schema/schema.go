package schema

import (
	"errors"
	"fmt"

	"github.com/bhoriuchi/cf-graphql-server/contentful"
	"github.com/bhoriuchi/cf-graphql-server/spacegraph"
	"github.com/graphql-go/graphql"
)

// ErrNoLoader is returned by resolvers when the request context carries no
// contentful.Loader
var ErrNoLoader = errors.New("no entry loader found in the request context")

// ErrEmptyGraph is returned when the space has no content types
var ErrEmptyGraph = errors.New("space graph has no content types")

// builder holds the types created while compiling one graph
type builder struct {
	graph     spacegraph.Graph
	objects   map[string]*graphql.Object
	entry     *graphql.Interface
	entrySys  *graphql.Object
	asset     *graphql.Object
	assetSys  *graphql.Object
	location  *graphql.Object
	meta      *graphql.Object
	jsonValue *graphql.Scalar
}

// Create compiles a space graph into an executable schema. Resolvers read
// through the contentful.Loader attached to the request context.
func Create(graph spacegraph.Graph) (graphql.Schema, error) {
	if len(graph) == 0 {
		return graphql.Schema{}, ErrEmptyGraph
	}

	b := &builder{
		graph:   graph,
		objects: map[string]*graphql.Object{},
	}
	b.buildSharedTypes()

	types := []graphql.Type{b.asset, b.location}
	for _, ct := range graph {
		obj := b.buildContentType(ct)
		b.objects[ct.ID] = obj
		types = append(types, obj)
	}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: b.buildQuery(),
		Types: types,
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to compile schema: %w", err)
	}

	return schema, nil
}

func (b *builder) buildSharedTypes() {
	b.jsonValue = graphql.NewScalar(graphql.ScalarConfig{
		Name:         "JSON",
		Description:  "Arbitrary JSON value of an Object field",
		Serialize:    func(value interface{}) interface{} { return value },
		ParseValue:   func(value interface{}) interface{} { return value },
		ParseLiteral: parseLiteral,
	})

	b.entrySys = graphql.NewObject(graphql.ObjectConfig{
		Name: "EntrySys",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"createdAt":     &graphql.Field{Type: graphql.String},
			"updatedAt":     &graphql.Field{Type: graphql.String},
			"contentTypeId": &graphql.Field{Type: graphql.String},
		},
	})

	b.assetSys = graphql.NewObject(graphql.ObjectConfig{
		Name: "AssetSys",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"createdAt": &graphql.Field{Type: graphql.String},
			"updatedAt": &graphql.Field{Type: graphql.String},
		},
	})

	b.entry = graphql.NewInterface(graphql.InterfaceConfig{
		Name: "Entry",
		Fields: graphql.Fields{
			"sys": &graphql.Field{Type: graphql.NewNonNull(b.entrySys)},
		},
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			entry, ok := p.Value.(*contentful.Entry)
			if !ok {
				return nil
			}
			return b.objects[entry.ContentTypeID()]
		},
	})

	b.asset = graphql.NewObject(graphql.ObjectConfig{
		Name: "Asset",
		Fields: graphql.Fields{
			"sys": &graphql.Field{
				Type: graphql.NewNonNull(b.assetSys),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					asset := p.Source.(*contentful.Asset)
					return map[string]interface{}{
						"id":        asset.Sys.ID,
						"createdAt": asset.Sys.CreatedAt,
						"updatedAt": asset.Sys.UpdatedAt,
					}, nil
				},
			},
			"title": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*contentful.Asset).Fields.Title, nil
				},
			},
			"description": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*contentful.Asset).Fields.Description, nil
				},
			},
			"url": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*contentful.Asset).URL(), nil
				},
			},
		},
	})

	b.location = graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"lon": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	b.meta = graphql.NewObject(graphql.ObjectConfig{
		Name: "Meta",
		Fields: graphql.Fields{
			"count": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})
}

// buildContentType creates the object type of a content type. Fields are
// a thunk since link fields reference types created later.
func (b *builder) buildContentType(ct *spacegraph.ContentType) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name:       ct.Names.Type,
		Interfaces: []*graphql.Interface{b.entry},
		IsTypeOf: func(p graphql.IsTypeOfParams) bool {
			entry, ok := p.Value.(*contentful.Entry)
			return ok && entry.ContentTypeID() == ct.ID
		},
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			fields := graphql.Fields{
				"sys": &graphql.Field{
					Type:    graphql.NewNonNull(b.entrySys),
					Resolve: resolveEntrySys,
				},
			}

			for _, f := range ct.Fields {
				fields[f.ID] = b.buildField(f)
			}

			if len(ct.Backrefs) > 0 {
				fields[spacegraph.BackrefsFieldID] = &graphql.Field{
					Type: b.buildBackrefs(ct),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return p.Source, nil
					},
				}
			}

			return fields
		}),
	})
}

func (b *builder) buildField(f spacegraph.Field) *graphql.Field {
	field := &graphql.Field{
		Description: f.Name,
		Resolve:     resolveValue(f.ID),
	}

	switch f.Type {
	case spacegraph.TypeString:
		field.Type = graphql.String
	case spacegraph.TypeInt:
		field.Type = graphql.Int
	case spacegraph.TypeFloat:
		field.Type = graphql.Float
	case spacegraph.TypeBool:
		field.Type = graphql.Boolean
	case spacegraph.TypeLocation:
		field.Type = b.location
	case spacegraph.TypeObject:
		field.Type = b.jsonValue
	case spacegraph.TypeStringArray:
		field.Type = graphql.NewList(graphql.String)
	case spacegraph.TypeAssetLink:
		field.Type = b.asset
		field.Resolve = resolveAssetLink(f.ID)
	case spacegraph.TypeAssetLinkArray:
		field.Type = graphql.NewList(b.asset)
		field.Resolve = resolveAssetLinks(f.ID)
	case spacegraph.TypeEntryLink:
		field.Type = b.entryType(f.LinkedContentType)
		field.Resolve = b.resolveEntryLink(f.ID, f.LinkedContentType)
	case spacegraph.TypeEntryLinkArray:
		field.Type = graphql.NewList(b.entryType(f.LinkedContentType))
		field.Resolve = b.resolveEntryLinks(f.ID, f.LinkedContentType)
	default:
		field.Type = b.jsonValue
	}

	return field
}

// entryType returns the object type of a linked content type, or the
// Entry interface when the link is not restricted to a known type
func (b *builder) entryType(contentTypeID string) graphql.Output {
	if obj, ok := b.objects[contentTypeID]; ok && contentTypeID != "" {
		return obj
	}
	return b.entry
}

func (b *builder) buildBackrefs(ct *spacegraph.ContentType) *graphql.Object {
	fields := graphql.Fields{}

	for _, backref := range ct.Backrefs {
		backref := backref
		fields[backref.FieldName] = &graphql.Field{
			Type: graphql.NewList(b.objects[backref.ContentTypeID]),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				loader, err := loaderFrom(p)
				if err != nil {
					return nil, err
				}

				entry := p.Source.(*contentful.Entry)
				return loader.Backrefs(p.Context, backref.ContentTypeID, backref.FieldID, entry.Sys.ID)
			},
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name:   ct.Names.BackrefsType,
		Fields: fields,
	})
}

func (b *builder) buildQuery() *graphql.Object {
	fields := graphql.Fields{}

	for _, ct := range b.graph {
		ct := ct
		obj := b.objects[ct.ID]

		fields[ct.Names.Field] = &graphql.Field{
			Type: obj,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				loader, err := loaderFrom(p)
				if err != nil {
					return nil, err
				}

				id, _ := p.Args["id"].(string)
				entry, err := loader.Entry(p.Context, id)
				if err != nil || entry == nil || entry.ContentTypeID() != ct.ID {
					return nil, err
				}
				return entry, nil
			},
		}

		fields[ct.Names.CollectionField] = &graphql.Field{
			Type: graphql.NewList(obj),
			Args: graphql.FieldConfigArgument{
				"q":     &graphql.ArgumentConfig{Type: graphql.String},
				"skip":  &graphql.ArgumentConfig{Type: graphql.Int},
				"limit": &graphql.ArgumentConfig{Type: graphql.Int},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				loader, err := loaderFrom(p)
				if err != nil {
					return nil, err
				}

				params := contentful.QueryParams{}
				params.Q, _ = p.Args["q"].(string)
				if skip, ok := p.Args["skip"].(int); ok {
					params.Skip = &skip
				}
				if limit, ok := p.Args["limit"].(int); ok {
					params.Limit = &limit
				}

				return loader.Query(p.Context, ct.ID, params)
			},
		}

		fields[ct.Names.MetaField()] = &graphql.Field{
			Type: b.meta,
			Args: graphql.FieldConfigArgument{
				"q": &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				loader, err := loaderFrom(p)
				if err != nil {
					return nil, err
				}

				q, _ := p.Args["q"].(string)
				count, err := loader.Count(p.Context, ct.ID, q)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"count": count}, nil
			},
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: fields,
	})
}
