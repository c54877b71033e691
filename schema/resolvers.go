package schema

import (
	"strconv"

	"github.com/bhoriuchi/cf-graphql-server/contentful"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

func loaderFrom(p graphql.ResolveParams) (*contentful.Loader, error) {
	loader, ok := contentful.LoaderFromContext(p.Context)
	if !ok {
		return nil, ErrNoLoader
	}
	return loader, nil
}

func sourceEntry(p graphql.ResolveParams) (*contentful.Entry, bool) {
	entry, ok := p.Source.(*contentful.Entry)
	return entry, ok && entry != nil
}

func resolveEntrySys(p graphql.ResolveParams) (interface{}, error) {
	entry, ok := sourceEntry(p)
	if !ok {
		return nil, nil
	}

	return map[string]interface{}{
		"id":            entry.Sys.ID,
		"createdAt":     entry.Sys.CreatedAt,
		"updatedAt":     entry.Sys.UpdatedAt,
		"contentTypeId": entry.ContentTypeID(),
	}, nil
}

func resolveValue(fieldID string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		entry, ok := sourceEntry(p)
		if !ok {
			return nil, nil
		}
		return entry.Fields[fieldID], nil
	}
}

func resolveAssetLink(fieldID string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		entry, ok := sourceEntry(p)
		if !ok {
			return nil, nil
		}

		id, ok := contentful.LinkID(entry.Fields[fieldID])
		if !ok {
			return nil, nil
		}

		loader, err := loaderFrom(p)
		if err != nil {
			return nil, err
		}

		asset, err := loader.Asset(p.Context, id)
		if err != nil || asset == nil {
			return nil, err
		}
		return asset, nil
	}
}

func resolveAssetLinks(fieldID string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		entry, ok := sourceEntry(p)
		if !ok {
			return nil, nil
		}

		ids := contentful.LinkIDs(entry.Fields[fieldID])
		if ids == nil {
			return nil, nil
		}

		loader, err := loaderFrom(p)
		if err != nil {
			return nil, err
		}
		return loader.Assets(p.Context, ids)
	}
}

// resolveEntryLink resolves a single entry link. Entries of another content
// type than the linked one, or of a type missing from the schema, resolve
// to null.
func (b *builder) resolveEntryLink(fieldID, linkedContentType string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		entry, ok := sourceEntry(p)
		if !ok {
			return nil, nil
		}

		id, ok := contentful.LinkID(entry.Fields[fieldID])
		if !ok {
			return nil, nil
		}

		loader, err := loaderFrom(p)
		if err != nil {
			return nil, err
		}

		linked, err := loader.Entry(p.Context, id)
		if err != nil || linked == nil || !b.accepts(linked, linkedContentType) {
			return nil, err
		}
		return linked, nil
	}
}

func (b *builder) resolveEntryLinks(fieldID, linkedContentType string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		entry, ok := sourceEntry(p)
		if !ok {
			return nil, nil
		}

		ids := contentful.LinkIDs(entry.Fields[fieldID])
		if ids == nil {
			return nil, nil
		}

		loader, err := loaderFrom(p)
		if err != nil {
			return nil, err
		}

		linked, err := loader.Entries(p.Context, ids)
		if err != nil {
			return nil, err
		}

		accepted := make([]*contentful.Entry, 0, len(linked))
		for _, e := range linked {
			if b.accepts(e, linkedContentType) {
				accepted = append(accepted, e)
			}
		}
		return accepted, nil
	}
}

func (b *builder) accepts(entry *contentful.Entry, linkedContentType string) bool {
	ctID := entry.ContentTypeID()
	if _, ok := b.objects[linkedContentType]; ok {
		return ctID == linkedContentType
	}
	_, ok := b.objects[ctID]
	return ok
}

// parseLiteral converts an inline JSON argument value into its Go form
func parseLiteral(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.EnumValue:
		return v.Value
	case *ast.IntValue:
		if i, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return i
		}
		return nil
	case *ast.FloatValue:
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return nil
	case *ast.ListValue:
		values := make([]interface{}, 0, len(v.Values))
		for _, item := range v.Values {
			values = append(values, parseLiteral(item))
		}
		return values
	case *ast.ObjectValue:
		obj := map[string]interface{}{}
		for _, f := range v.Fields {
			obj[f.Name.Value] = parseLiteral(f.Value)
		}
		return obj
	}
	return nil
}
