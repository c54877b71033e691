package contentful

import "encoding/json"

// Field types reported by the content model
const (
	FieldTypeSymbol   = "Symbol"
	FieldTypeText     = "Text"
	FieldTypeRichText = "RichText"
	FieldTypeInteger  = "Integer"
	FieldTypeNumber   = "Number"
	FieldTypeDate     = "Date"
	FieldTypeBoolean  = "Boolean"
	FieldTypeLocation = "Location"
	FieldTypeObject   = "Object"
	FieldTypeArray    = "Array"
	FieldTypeLink     = "Link"

	LinkTypeEntry = "Entry"
	LinkTypeAsset = "Asset"
)

// Sys is the system metadata block carried by every CMS resource
type Sys struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	LinkType    string `json:"linkType,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
	Revision    int    `json:"revision,omitempty"`
	Locale      string `json:"locale,omitempty"`
	ContentType *Link  `json:"contentType,omitempty"`
}

// Link is a reference to another resource
type Link struct {
	Sys Sys `json:"sys"`
}

// ContentType describes one category of entries in a space
type ContentType struct {
	Sys          Sys     `json:"sys"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	DisplayField string  `json:"displayField,omitempty"`
	Fields       []Field `json:"fields"`
}

// Field is a single field of a content type
type Field struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	LinkType    string       `json:"linkType,omitempty"`
	Items       *FieldItems  `json:"items,omitempty"`
	Required    bool         `json:"required,omitempty"`
	Localized   bool         `json:"localized,omitempty"`
	Disabled    bool         `json:"disabled,omitempty"`
	Omitted     bool         `json:"omitted,omitempty"`
	Validations []Validation `json:"validations,omitempty"`
}

// FieldItems describes the element type of an Array field
type FieldItems struct {
	Type        string       `json:"type"`
	LinkType    string       `json:"linkType,omitempty"`
	Validations []Validation `json:"validations,omitempty"`
}

// Validation holds the validation rules the schema cares about. All other
// rules are ignored when decoding.
type Validation struct {
	LinkContentType []string `json:"linkContentType,omitempty"`
}

// Entry is a delivered entry. Fields hold the values for the requested locale.
type Entry struct {
	Sys    Sys                    `json:"sys"`
	Fields map[string]interface{} `json:"fields"`
}

// ContentTypeID returns the id of the entry's content type
func (e *Entry) ContentTypeID() string {
	if e == nil || e.Sys.ContentType == nil {
		return ""
	}
	return e.Sys.ContentType.Sys.ID
}

// Asset is a delivered asset
type Asset struct {
	Sys    Sys         `json:"sys"`
	Fields AssetFields `json:"fields"`
}

type AssetFields struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	File        *AssetFile `json:"file,omitempty"`
}

type AssetFile struct {
	URL         string                 `json:"url,omitempty"`
	FileName    string                 `json:"fileName,omitempty"`
	ContentType string                 `json:"contentType,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// URL returns the file url of the asset or an empty string
func (a *Asset) URL() string {
	if a == nil || a.Fields.File == nil {
		return ""
	}
	return a.Fields.File.URL
}

// includes are the linked resources delivered alongside a collection
type includes struct {
	Entry []*Entry `json:"Entry"`
	Asset []*Asset `json:"Asset"`
}

type collection[T any] struct {
	Total    int      `json:"total"`
	Skip     int      `json:"skip"`
	Limit    int      `json:"limit"`
	Items    []T      `json:"items"`
	Includes includes `json:"includes"`
}

func decodeCollection[T any](body []byte) (*collection[T], error) {
	c := &collection[T]{}
	if err := json.Unmarshal(body, c); err != nil {
		return nil, err
	}
	return c, nil
}

// LinkID extracts the target id from a raw link value as found in entry
// fields, e.g. {"sys": {"type": "Link", "linkType": "Entry", "id": "abc"}}
func LinkID(value interface{}) (string, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		sys, ok := v["sys"].(map[string]interface{})
		if !ok {
			return "", false
		}
		id, ok := sys["id"].(string)
		return id, ok && id != ""
	case *Link:
		if v == nil || v.Sys.ID == "" {
			return "", false
		}
		return v.Sys.ID, true
	case Link:
		return v.Sys.ID, v.Sys.ID != ""
	}
	return "", false
}

// LinkIDs extracts the target ids from a raw array of links, skipping
// anything that is not a link
func LinkIDs(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := LinkID(item); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
