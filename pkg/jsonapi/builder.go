package jsonapi

import (
	"context"
	"fmt"
	"strings"
)

// Builder issues queries against one resource type. It holds no query state:
// every chain method starts a fresh Query, so a Builder may be shared across
// goroutines.
type Builder struct {
	baseURL      string
	resourceType string
	transport    Transport
	logger       Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger sets the logger used for dispatch debug logs.
func WithBuilderLogger(logger Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a builder for resourceType under baseURL.
func NewBuilder(baseURL, resourceType string, transport Transport, opts ...BuilderOption) (*Builder, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}

	if resourceType == "" {
		return nil, ErrResourceTypeRequired
	}

	builder := &Builder{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		resourceType: strings.Trim(resourceType, "/"),
		transport:    transport,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder, nil
}

// ResourceType returns the primary resource type.
func (b *Builder) ResourceType() string {
	return b.resourceType
}

// CollectionURL returns the collection endpoint, with its trailing slash.
func (b *Builder) CollectionURL() string {
	return b.baseURL + "/" + b.resourceType + "/"
}

// ResourceURL returns the endpoint of a single resource.
func (b *Builder) ResourceURL(id interface{}) string {
	return b.baseURL + "/" + b.resourceType + "/" + formatValue(id)
}

// Query starts a new, empty chain.
func (b *Builder) Query() *Query {
	return &Query{
		builder: b,
		state:   NewQueryState(b.resourceType),
	}
}

// With starts a chain that includes the given relationship paths.
func (b *Builder) With(paths ...string) *Query {
	return b.Query().With(paths...)
}

// OrderBy starts a chain sorted by field.
func (b *Builder) OrderBy(field string, direction ...string) *Query {
	return b.Query().OrderBy(field, direction...)
}

// OrderByDesc starts a chain sorted by field, descending.
func (b *Builder) OrderByDesc(field string) *Query {
	return b.Query().OrderByDesc(field)
}

// Select starts a chain with a sparse fieldset.
func (b *Builder) Select(spec interface{}) *Query {
	return b.Query().Select(spec)
}

// Filter starts a chain with a presence filter.
func (b *Builder) Filter(key string) *Query {
	return b.Query().Filter(key)
}

// Where starts a chain with a key/value filter.
func (b *Builder) Where(key string, value interface{}, group ...string) *Query {
	return b.Query().Where(key, value, group...)
}

// Limit starts a chain with a limit.
func (b *Builder) Limit(n int) *Query {
	return b.Query().Limit(n)
}

// Offset starts a chain with an offset.
func (b *Builder) Offset(n int) *Query {
	return b.Query().Offset(n)
}

// All fetches the collection without query parameters.
func (b *Builder) All(ctx context.Context) (*Document, error) {
	return b.Query().All(ctx)
}

// Get is an alias of All.
func (b *Builder) Get(ctx context.Context) (*Document, error) {
	return b.Query().Get(ctx)
}

// Find fetches a single resource without query parameters.
func (b *Builder) Find(ctx context.Context, id interface{}) (*Document, error) {
	return b.Query().Find(ctx, id)
}

// Paginate fetches one page of the collection.
func (b *Builder) Paginate(ctx context.Context, size, number int) (*Document, error) {
	return b.Query().Paginate(ctx, size, number)
}

// Query is the context of a single chain. Validation failures are recorded
// at the failing call; later chain calls are ignored and the terminal call
// returns the error without dispatching. A Query is not safe for concurrent
// use.
type Query struct {
	builder *Builder
	state   *QueryState
	err     error
}

// Err returns the first validation error of the chain.
func (q *Query) Err() error {
	return q.err
}

// State returns the accumulated state.
func (q *Query) State() *QueryState {
	return q.state
}

// With appends relationship include paths.
func (q *Query) With(paths ...string) *Query {
	if q.err != nil {
		return q
	}

	for _, path := range paths {
		q.state.AddInclude(path)
	}

	return q
}

// OrderBy appends a sort key. The optional direction must be "asc" or
// "desc".
func (q *Query) OrderBy(field string, direction ...string) *Query {
	if q.err != nil {
		return q
	}

	parsed := Ascending

	if len(direction) > 0 {
		var err error

		parsed, err = ParseSortDirection(direction[0])
		if err != nil {
			q.err = err

			return q
		}
	}

	q.state.AddSort(field, parsed)

	return q
}

// OrderByDesc appends a descending sort key.
func (q *Query) OrderByDesc(field string) *Query {
	if q.err != nil {
		return q
	}

	q.state.AddSort(field, Descending)

	return q
}

// Select sets sparse fieldsets; see ParseFields for accepted shapes.
func (q *Query) Select(spec interface{}) *Query {
	if q.err != nil {
		return q
	}

	fields, err := ParseFields(spec)
	if err != nil {
		q.err = err

		return q
	}

	q.state.SetFields(fields)

	return q
}

// Filter appends a presence filter.
func (q *Query) Filter(key string) *Query {
	if q.err != nil {
		return q
	}

	q.state.AddFilter(key)

	return q
}

// Where appends a key/value filter, nested under group when one is given.
func (q *Query) Where(key string, value interface{}, group ...string) *Query {
	if q.err != nil {
		return q
	}

	if len(group) > 0 && group[0] != "" {
		q.state.AddGroupFilter(group[0], key, value)
	} else {
		q.state.AddFilterValue(key, value)
	}

	return q
}

// Limit sets filter[limit].
func (q *Query) Limit(n int) *Query {
	if q.err != nil {
		return q
	}

	q.state.SetLimit(n)

	return q
}

// Offset sets filter[offset].
func (q *Query) Offset(n int) *Query {
	if q.err != nil {
		return q
	}

	q.state.SetOffset(n)

	return q
}

// CollectionRequest returns the collection request descriptor for the
// current state without dispatching it.
func (q *Query) CollectionRequest() (Request, error) {
	if q.err != nil {
		return Request{}, q.err
	}

	return newGetRequest(withQuery(q.builder.CollectionURL(), q.state)), nil
}

// ResourceRequest returns the single-resource request descriptor for the
// current state without dispatching it.
func (q *Query) ResourceRequest(id interface{}) (Request, error) {
	if q.err != nil {
		return Request{}, q.err
	}

	return newGetRequest(withQuery(q.builder.ResourceURL(id), q.state)), nil
}

// All fetches the collection.
func (q *Query) All(ctx context.Context) (*Document, error) {
	return q.dispatch(ctx, q.CollectionRequest)
}

// Get fetches the collection. It behaves exactly like All.
func (q *Query) Get(ctx context.Context) (*Document, error) {
	return q.dispatch(ctx, q.CollectionRequest)
}

// Find fetches a single resource by id.
func (q *Query) Find(ctx context.Context, id interface{}) (*Document, error) {
	return q.dispatch(ctx, func() (Request, error) {
		return q.ResourceRequest(id)
	})
}

// Paginate sets the page size and number, then fetches the collection.
func (q *Query) Paginate(ctx context.Context, size, number int) (*Document, error) {
	if q.err == nil {
		q.state.SetPagination(size, number)
	}

	return q.dispatch(ctx, q.CollectionRequest)
}

// dispatch builds the descriptor, resets the chain and sends exactly once.
func (q *Query) dispatch(ctx context.Context, build func() (Request, error)) (*Document, error) {
	req, err := build()

	q.reset()

	if err != nil {
		return nil, err
	}

	if q.builder.logger != nil {
		q.builder.logger.Debug("Dispatching query", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL,
			"resource": q.builder.resourceType,
		})
	}

	return q.builder.transport.Send(ctx, req)
}

func (q *Query) reset() {
	q.state = NewQueryState(q.builder.resourceType)
	q.err = nil
}

func withQuery(endpoint string, state *QueryState) string {
	query := state.Encode()
	if query == "" {
		return endpoint
	}

	return fmt.Sprintf("%s?%s", endpoint, query)
}
