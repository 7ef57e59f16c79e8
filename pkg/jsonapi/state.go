package jsonapi

import (
	"fmt"
	"strconv"
)

// Reserved filter keys used by SetLimit and SetOffset.
const (
	FilterLimit  = "limit"
	FilterOffset = "offset"
)

type filterEntry struct {
	group    string
	key      string
	value    string
	hasValue bool
}

// top returns the name the entry is bucketed under at serialization time.
func (e filterEntry) top() string {
	if e.group != "" {
		return e.group
	}

	return e.key
}

// Pagination is a page size / page number pair.
type Pagination struct {
	Size   int
	Number int
}

// QueryState accumulates the query intent of a single chain. It is not safe
// for concurrent use.
type QueryState struct {
	primaryType string
	includes    []string
	sorts       []sortKey
	fields      []TypeFields
	filters     []filterEntry
	pagination  *Pagination
}

// NewQueryState creates an empty state for the given primary resource type.
func NewQueryState(primaryType string) *QueryState {
	return &QueryState{primaryType: primaryType}
}

// PrimaryType returns the resource type plain field lists are keyed under.
func (s *QueryState) PrimaryType() string {
	return s.primaryType
}

// AddInclude appends a relationship path.
func (s *QueryState) AddInclude(path string) *QueryState {
	s.includes = append(s.includes, path)

	return s
}

// AddSort appends a sort key.
func (s *QueryState) AddSort(field string, direction SortDirection) *QueryState {
	s.sorts = append(s.sorts, sortKey{field: field, direction: direction})

	return s
}

// SetFields registers sparse fieldsets. A type that is already registered
// keeps its position and has its names replaced.
func (s *QueryState) SetFields(fields Fields) *QueryState {
	for _, group := range fields.Resolve(s.primaryType) {
		names := append([]string(nil), group.Names...)

		replaced := false

		for i := range s.fields {
			if s.fields[i].Type == group.Type {
				s.fields[i].Names = names
				replaced = true

				break
			}
		}

		if !replaced {
			s.fields = append(s.fields, TypeFields{Type: group.Type, Names: names})
		}
	}

	return s
}

// AddFilter appends a presence filter.
func (s *QueryState) AddFilter(key string) *QueryState {
	s.filters = append(s.filters, filterEntry{key: key})

	return s
}

// AddFilterValue appends a key/value filter.
func (s *QueryState) AddFilterValue(key string, value interface{}) *QueryState {
	s.filters = append(s.filters, filterEntry{key: key, value: formatValue(value), hasValue: true})

	return s
}

// AddGroupFilter appends a key/value filter nested under group.
func (s *QueryState) AddGroupFilter(group, key string, value interface{}) *QueryState {
	s.filters = append(s.filters, filterEntry{group: group, key: key, value: formatValue(value), hasValue: true})

	return s
}

// SetLimit sets the reserved limit filter.
func (s *QueryState) SetLimit(n int) *QueryState {
	return s.setReserved(FilterLimit, n)
}

// SetOffset sets the reserved offset filter.
func (s *QueryState) SetOffset(n int) *QueryState {
	return s.setReserved(FilterOffset, n)
}

// SetPagination sets the page size and number.
func (s *QueryState) SetPagination(size, number int) *QueryState {
	s.pagination = &Pagination{Size: size, Number: number}

	return s
}

// Limit returns the limit, if set.
func (s *QueryState) Limit() (int, bool) {
	return s.reserved(FilterLimit)
}

// Offset returns the offset, if set.
func (s *QueryState) Offset() (int, bool) {
	return s.reserved(FilterOffset)
}

// Pagination returns the page size and number, if set.
func (s *QueryState) Pagination() (Pagination, bool) {
	if s.pagination == nil {
		return Pagination{}, false
	}

	return *s.pagination, true
}

// IsEmpty reports whether the state would encode to an empty query string.
func (s *QueryState) IsEmpty() bool {
	return s.Encode() == ""
}

// Clone returns a deep copy of the state.
func (s *QueryState) Clone() *QueryState {
	clone := &QueryState{
		primaryType: s.primaryType,
		includes:    append([]string(nil), s.includes...),
		sorts:       append([]sortKey(nil), s.sorts...),
		filters:     append([]filterEntry(nil), s.filters...),
	}

	for _, group := range s.fields {
		clone.fields = append(clone.fields, TypeFields{Type: group.Type, Names: append([]string(nil), group.Names...)})
	}

	if s.pagination != nil {
		pagination := *s.pagination
		clone.pagination = &pagination
	}

	return clone
}

func (s *QueryState) setReserved(key string, n int) *QueryState {
	value := strconv.Itoa(n)

	for i := range s.filters {
		if s.filters[i].group == "" && s.filters[i].key == key {
			s.filters[i].value = value
			s.filters[i].hasValue = true

			return s
		}
	}

	s.filters = append(s.filters, filterEntry{key: key, value: value, hasValue: true})

	return s
}

func (s *QueryState) reserved(key string) (int, bool) {
	for _, entry := range s.filters {
		if entry.group == "" && entry.key == key && entry.hasValue {
			n, err := strconv.Atoi(entry.value)
			if err != nil {
				return 0, false
			}

			return n, true
		}
	}

	return 0, false
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
