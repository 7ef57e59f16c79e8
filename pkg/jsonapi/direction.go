package jsonapi

// SortDirection is the direction of a single sort key.
type SortDirection int

const (
	// Ascending emits the field name bare.
	Ascending SortDirection = iota
	// Descending emits the field name with a leading "-".
	Descending
)

// String returns "asc" or "desc".
func (d SortDirection) String() string {
	if d == Descending {
		return "desc"
	}

	return "asc"
}

// ParseSortDirection turns a caller-supplied direction into a SortDirection.
// Only "asc" and "desc" are accepted; omit the direction to sort ascending.
func ParseSortDirection(direction string) (SortDirection, error) {
	switch direction {
	case "asc":
		return Ascending, nil
	case "desc":
		return Descending, nil
	default:
		return Ascending, &InvalidSortDirectionError{Direction: direction}
	}
}

// sortKey is one validated entry of the sort parameter.
type sortKey struct {
	field     string
	direction SortDirection
}

func (k sortKey) token() string {
	if k.direction == Descending {
		return "-" + k.field
	}

	return k.field
}
