// Package spacegraph turns the content types of a space into the graph the
// GraphQL schema is compiled from. Every content type becomes a node with
// derived GraphQL names, typed fields and the back references other content
// types hold to it.
package spacegraph

import (
	"fmt"
	"strings"

	"github.com/bhoriuchi/cf-graphql-server/contentful"
	"github.com/gertd/go-pluralize"
	"github.com/iancoleman/strcase"
)

// FieldType is the normalized type of a content type field
type FieldType string

const (
	TypeString         FieldType = "String"
	TypeInt            FieldType = "Int"
	TypeFloat          FieldType = "Float"
	TypeBool           FieldType = "Bool"
	TypeLocation       FieldType = "Location"
	TypeObject         FieldType = "Object"
	TypeStringArray    FieldType = "Array<String>"
	TypeEntryLink      FieldType = "Link<Entry>"
	TypeAssetLink      FieldType = "Link<Asset>"
	TypeEntryLinkArray FieldType = "Array<Link<Entry>>"
	TypeAssetLinkArray FieldType = "Array<Link<Asset>>"
)

const (
	// BackrefsFieldID is the field holding the back references of an entry
	BackrefsFieldID = "_backrefs"

	backrefsFieldInfix = "__via__"
)

// reservedTypeNames are the names of the types every schema defines
var reservedTypeNames = map[string]bool{
	"Query":    true,
	"Entry":    true,
	"EntrySys": true,
	"Asset":    true,
	"AssetSys": true,
	"Location": true,
	"Sys":      true,
	"JSON":     true,
	"Meta":     true,
	"String":   true,
	"Int":      true,
	"Float":    true,
	"Boolean":  true,
	"ID":       true,
}

var reservedFieldIDs = map[string]bool{
	"sys":           true,
	BackrefsFieldID: true,
}

var scalarTypes = map[string]FieldType{
	contentful.FieldTypeSymbol:   TypeString,
	contentful.FieldTypeText:     TypeString,
	contentful.FieldTypeDate:     TypeString,
	contentful.FieldTypeNumber:   TypeFloat,
	contentful.FieldTypeInteger:  TypeInt,
	contentful.FieldTypeBoolean:  TypeBool,
	contentful.FieldTypeLocation: TypeLocation,
	contentful.FieldTypeObject:   TypeObject,
	contentful.FieldTypeRichText: TypeObject,
}

var plural = pluralize.NewClient()

// Names are the GraphQL names derived from a content type
type Names struct {
	// Type is the object type name, e.g. BlogPost
	Type string
	// Field is the root field returning one entry, e.g. blogPost
	Field string
	// CollectionField is the root field returning a list, e.g. blogPosts
	CollectionField string
	// BackrefsType is the type holding back references, e.g. BlogPostBackrefs
	BackrefsType string
}

// MetaField is the root field returning collection metadata
func (n Names) MetaField() string {
	return "_" + n.CollectionField + "Meta"
}

type Field struct {
	ID   string
	Name string
	Type FieldType
	// LinkedContentType is set for entry links restricted to exactly one
	// content type
	LinkedContentType string
}

// Backref is a field of another content type linking to this one
type Backref struct {
	ContentTypeID string
	FieldID       string
	// FieldName is the name of the field on the backrefs type
	FieldName string
}

type ContentType struct {
	ID       string
	Names    Names
	Fields   []Field
	Backrefs []Backref
}

// Graph is the prepared space graph, in content type order
type Graph []*ContentType

// Get returns the node of a content type by id
func (g Graph) Get(id string) (*ContentType, bool) {
	for _, ct := range g {
		if ct.ID == id {
			return ct, true
		}
	}
	return nil, false
}

// TypeNames returns the GraphQL type names of the graph in order
func (g Graph) TypeNames() []string {
	names := make([]string, 0, len(g))
	for _, ct := range g {
		names = append(names, ct.Names.Type)
	}
	return names
}

// Prepare builds the space graph from content types
func Prepare(contentTypes []contentful.ContentType) (Graph, error) {
	graph := make(Graph, 0, len(contentTypes))
	seenTypes := map[string]string{}
	seenFields := map[string]string{}

	for _, ct := range contentTypes {
		node, err := prepareContentType(ct)
		if err != nil {
			return nil, err
		}

		for _, t := range []string{node.Names.Type, node.Names.BackrefsType} {
			if other, ok := seenTypes[t]; ok {
				return nil, fmt.Errorf("content types %q and %q both map to type %q", other, ct.Sys.ID, t)
			}
			seenTypes[t] = ct.Sys.ID
		}

		for _, f := range []string{node.Names.Field, node.Names.CollectionField} {
			if other, ok := seenFields[f]; ok {
				return nil, fmt.Errorf("content types %q and %q both map to query field %q", other, ct.Sys.ID, f)
			}
			seenFields[f] = ct.Sys.ID
		}

		graph = append(graph, node)
	}

	addBackrefs(graph)
	return graph, nil
}

func prepareContentType(ct contentful.ContentType) (*ContentType, error) {
	if ct.Sys.ID == "" {
		return nil, fmt.Errorf("content type %q has no id", ct.Name)
	}

	names, err := deriveNames(ct)
	if err != nil {
		return nil, err
	}

	node := &ContentType{
		ID:     ct.Sys.ID,
		Names:  names,
		Fields: []Field{},
	}

	for _, f := range ct.Fields {
		if f.Omitted {
			continue
		}

		if reservedFieldIDs[f.ID] {
			return nil, fmt.Errorf("content type %q: field id %q is reserved", ct.Sys.ID, f.ID)
		}

		if strings.HasPrefix(f.ID, "__") {
			return nil, fmt.Errorf("content type %q: field id %q must not start with __", ct.Sys.ID, f.ID)
		}

		fieldType, err := mapFieldType(f)
		if err != nil {
			return nil, fmt.Errorf("content type %q: %w", ct.Sys.ID, err)
		}

		node.Fields = append(node.Fields, Field{
			ID:                f.ID,
			Name:              f.Name,
			Type:              fieldType,
			LinkedContentType: linkedContentType(f, fieldType),
		})
	}

	return node, nil
}

func deriveNames(ct contentful.ContentType) (Names, error) {
	name := strings.TrimSpace(ct.Name)
	if name == "" {
		name = ct.Sys.ID
	}

	typeName := strcase.ToCamel(name)
	if typeName == "" || !isNameStart(typeName[0]) {
		return Names{}, fmt.Errorf("content type %q: cannot derive a type name from %q", ct.Sys.ID, ct.Name)
	}

	if reservedTypeNames[typeName] || strings.HasPrefix(typeName, "__") {
		return Names{}, fmt.Errorf("content type %q: type name %q is reserved", ct.Sys.ID, typeName)
	}

	field := strcase.ToLowerCamel(name)
	collection := pluralizeCamel(field)
	if collection == field {
		collection = field + "Collection"
	}

	return Names{
		Type:            typeName,
		Field:           field,
		CollectionField: collection,
		BackrefsType:    typeName + "Backrefs",
	}, nil
}

// pluralizeCamel pluralizes the last word of a lowerCamelCase name
func pluralizeCamel(name string) string {
	i := strings.LastIndexFunc(name, func(r rune) bool { return r >= 'A' && r <= 'Z' })
	if i <= 0 {
		return plural.Plural(name)
	}

	last := plural.Plural(strings.ToLower(name[i:]))
	return name[:i] + strings.ToUpper(last[:1]) + last[1:]
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func mapFieldType(f contentful.Field) (FieldType, error) {
	if t, ok := scalarTypes[f.Type]; ok {
		return t, nil
	}

	switch f.Type {
	case contentful.FieldTypeLink:
		switch f.LinkType {
		case contentful.LinkTypeEntry:
			return TypeEntryLink, nil
		case contentful.LinkTypeAsset:
			return TypeAssetLink, nil
		}
		return "", fmt.Errorf("field %q: unknown link type %q", f.ID, f.LinkType)

	case contentful.FieldTypeArray:
		if f.Items == nil {
			return "", fmt.Errorf("field %q: array field without items", f.ID)
		}

		switch f.Items.Type {
		case contentful.FieldTypeSymbol:
			return TypeStringArray, nil
		case contentful.FieldTypeLink:
			switch f.Items.LinkType {
			case contentful.LinkTypeEntry:
				return TypeEntryLinkArray, nil
			case contentful.LinkTypeAsset:
				return TypeAssetLinkArray, nil
			}
			return "", fmt.Errorf("field %q: unknown link type %q", f.ID, f.Items.LinkType)
		}
		return "", fmt.Errorf("field %q: unsupported array item type %q", f.ID, f.Items.Type)
	}

	return "", fmt.Errorf("field %q: unsupported type %q", f.ID, f.Type)
}

// linkedContentType finds a linkContentType validation naming exactly one
// content type
func linkedContentType(f contentful.Field, t FieldType) string {
	var validations []contentful.Validation

	switch t {
	case TypeEntryLink:
		validations = f.Validations
	case TypeEntryLinkArray:
		validations = f.Items.Validations
	default:
		return ""
	}

	for _, v := range validations {
		if len(v.LinkContentType) == 1 {
			return v.LinkContentType[0]
		}
	}
	return ""
}

func addBackrefs(graph Graph) {
	for _, source := range graph {
		for _, f := range source.Fields {
			if f.LinkedContentType == "" {
				continue
			}

			target, ok := graph.Get(f.LinkedContentType)
			if !ok {
				continue
			}

			target.Backrefs = append(target.Backrefs, Backref{
				ContentTypeID: source.ID,
				FieldID:       f.ID,
				FieldName:     source.Names.CollectionField + backrefsFieldInfix + f.ID,
			})
		}
	}
}
