package jsonapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a JSON:API top-level document. Primary data is kept raw and
// exposed through Resource and Resources.
type Document struct {
	Data     json.RawMessage        `json:"data,omitempty"     yaml:"-"`
	Included []ResourceObject       `json:"included,omitempty" yaml:"included,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"     yaml:"meta,omitempty"`
	Links    Links                  `json:"links,omitempty"    yaml:"links,omitempty"`
	JSONAPI  map[string]interface{} `json:"jsonapi,omitempty"  yaml:"jsonapi,omitempty"`
}

// ResourceObject is a single JSON:API resource object.
type ResourceObject struct {
	Type          string                     `json:"type"                    yaml:"type"`
	ID            string                     `json:"id,omitempty"            yaml:"id,omitempty"`
	Attributes    map[string]interface{}     `json:"attributes,omitempty"    yaml:"attributes,omitempty"`
	Relationships map[string]json.RawMessage `json:"relationships,omitempty" yaml:"-"`
	Links         Links                      `json:"links,omitempty"         yaml:"links,omitempty"`
	Meta          map[string]interface{}     `json:"meta,omitempty"          yaml:"meta,omitempty"`
}

// Links represents a links object.
type Links map[string]Link

// Link is either a bare URL or an object with an href.
type Link struct {
	Href string                 `json:"href"           yaml:"href"`
	Meta map[string]interface{} `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// UnmarshalJSON accepts both the string and the object link forms.
func (l *Link) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = Link{}

		return nil
	}

	var href string
	if err := json.Unmarshal(data, &href); err == nil {
		*l = Link{Href: href}

		return nil
	}

	type plain Link

	var object plain
	if err := json.Unmarshal(data, &object); err != nil {
		return fmt.Errorf("failed to unmarshal link: %w", err)
	}

	*l = Link(object)

	return nil
}

// Next returns the href of the "next" link, or "".
func (l Links) Next() string {
	return l["next"].Href
}

// ParseDocument decodes a response body. An empty body yields an empty
// document.
func ParseDocument(body []byte) (*Document, error) {
	doc := &Document{}
	if len(bytes.TrimSpace(body)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return doc, nil
}

// IsCollection reports whether primary data is an array.
func (d *Document) IsCollection() bool {
	trimmed := bytes.TrimSpace(d.Data)

	return len(trimmed) > 0 && trimmed[0] == '['
}

// Resource returns the primary data as a single resource object.
func (d *Document) Resource() (*ResourceObject, error) {
	trimmed := bytes.TrimSpace(d.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyDocument
	}

	if d.IsCollection() {
		return nil, ErrNotSingleResource
	}

	var resource ResourceObject
	if err := json.Unmarshal(trimmed, &resource); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resource: %w", err)
	}

	return &resource, nil
}

// Resources returns the primary data as a list of resource objects.
func (d *Document) Resources() ([]ResourceObject, error) {
	trimmed := bytes.TrimSpace(d.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []ResourceObject{}, nil
	}

	if !d.IsCollection() {
		return nil, ErrNotResourceCollection
	}

	var resources []ResourceObject
	if err := json.Unmarshal(trimmed, &resources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resources: %w", err)
	}

	return resources, nil
}
