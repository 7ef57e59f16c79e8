package jsonapi

import (
	"sort"
)

type fieldsKind int

const (
	fieldsNone fieldsKind = iota
	fieldsList
	fieldsGrouped
)

// TypeFields is the field list of one resource type.
type TypeFields struct {
	Type  string
	Names []string
}

// Fields is a validated sparse fieldset: either a plain list of field names
// for the primary resource type, or an ordered list of per-type field lists.
type Fields struct {
	kind   fieldsKind
	list   []string
	groups []TypeFields
}

// FieldList returns a fieldset for the primary resource type.
func FieldList(names ...string) Fields {
	return Fields{kind: fieldsList, list: append([]string(nil), names...)}
}

// FieldGroups returns a fieldset keyed by resource type, in the given order.
func FieldGroups(groups ...TypeFields) Fields {
	copied := make([]TypeFields, 0, len(groups))
	for _, group := range groups {
		copied = append(copied, TypeFields{Type: group.Type, Names: append([]string(nil), group.Names...)})
	}

	return Fields{kind: fieldsGrouped, groups: copied}
}

// IsList reports whether the fieldset targets the primary resource type only.
func (f Fields) IsList() bool {
	return f.kind == fieldsList
}

// Resolve returns the per-type field lists, keying a plain list under
// primaryType.
func (f Fields) Resolve(primaryType string) []TypeFields {
	switch f.kind {
	case fieldsList:
		return []TypeFields{{Type: primaryType, Names: f.list}}
	case fieldsGrouped:
		return f.groups
	default:
		return nil
	}
}

// ParseFields validates a dynamically shaped fieldset argument.
//
// Accepted shapes are []string, []interface{} of strings, map[string][]string,
// map[string][]interface{} and map[string]interface{} whose values are lists of
// strings, or a Fields value. Plain maps are registered in lexical type order.
func ParseFields(spec interface{}) (Fields, error) {
	switch value := spec.(type) {
	case Fields:
		if value.kind == fieldsNone {
			return Fields{}, &InvalidFieldsError{Value: spec}
		}

		return value, nil
	case []string:
		return FieldList(value...), nil
	case []interface{}:
		names, ok := stringList(value)
		if !ok {
			return Fields{}, &InvalidFieldsError{Value: spec}
		}

		return FieldList(names...), nil
	case map[string][]string:
		groups := make([]TypeFields, 0, len(value))
		for _, resourceType := range sortedKeys(value) {
			groups = append(groups, TypeFields{Type: resourceType, Names: value[resourceType]})
		}

		return FieldGroups(groups...), nil
	case map[string][]interface{}:
		generic := make(map[string]interface{}, len(value))
		for key, names := range value {
			generic[key] = names
		}

		return parseFieldMap(generic, spec)
	case map[string]interface{}:
		return parseFieldMap(value, spec)
	default:
		return Fields{}, &InvalidFieldsError{Value: spec}
	}
}

func parseFieldMap(value map[string]interface{}, spec interface{}) (Fields, error) {
	groups := make([]TypeFields, 0, len(value))

	for _, resourceType := range sortedKeys(value) {
		var (
			names []string
			ok    bool
		)

		switch raw := value[resourceType].(type) {
		case []string:
			names, ok = raw, true
		case []interface{}:
			names, ok = stringList(raw)
		}

		if !ok {
			return Fields{}, &InvalidFieldsError{Value: spec}
		}

		groups = append(groups, TypeFields{Type: resourceType, Names: names})
	}

	return FieldGroups(groups...), nil
}

func stringList(values []interface{}) ([]string, bool) {
	names := make([]string, 0, len(values))

	for _, raw := range values {
		name, ok := raw.(string)
		if !ok {
			return nil, false
		}

		names = append(names, name)
	}

	return names, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
