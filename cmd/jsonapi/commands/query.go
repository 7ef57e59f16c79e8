package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/jsonapi-client/internal/constants"
	"github.com/fivetwenty-io/jsonapi-client/pkg/apiclient"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/spf13/cobra"
)

// whereClause is one --where condition.
type whereClause struct {
	Group string
	Key   string
	Value interface{}
}

// queryOptions is a parsed query, from flags or from a saved definition.
type queryOptions struct {
	Include     []string
	Sort        []string
	Fields      *jsonapi.Fields
	Filters     []string
	Where       []whereClause
	Limit       *int
	Offset      *int
	PageSize    int
	PageNumber  int
	AllPages    bool
	DryRun      bool
	Concurrency int
}

// queryFlags holds the raw flag values of the query command.
type queryFlags struct {
	include     []string
	sort        []string
	fields      []string
	filters     []string
	where       []string
	limit       int
	offset      int
	pageSize    int
	pageNumber  int
	allPages    bool
	dryRun      bool
	concurrency int
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query RESOURCE [ID...]",
		Short: "Query a resource collection or a single resource",
		Long: `Fetch a JSON:API collection, or single resources when IDs are given.
Several IDs are fetched concurrently.

Examples:
  jsonapi query posts --include author,comments --sort -published_at
  jsonapi query posts --fields posts=title,body --fields comments=body
  jsonapi query posts --where author.name=alice --filter published
  jsonapi query posts --page-size 10 --page-number 2
  jsonapi query posts 1 --include author --dry-run
  jsonapi query posts 1 2 3 --concurrency 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}

			return executeQuery(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.include, "include", "i", nil, "relationship paths to include")
	cmd.Flags().StringSliceVarP(&flags.sort, "sort", "s", nil, "sort fields, prefix with - for descending")
	cmd.Flags().StringArrayVarP(&flags.fields, "fields", "f", nil, "sparse fieldset: type=a,b or a,b for the primary type")
	cmd.Flags().StringArrayVar(&flags.filters, "filter", nil, "bare filter key")
	cmd.Flags().StringArrayVarP(&flags.where, "where", "w", nil, "filter condition: key=value or group.key=value")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "filter[limit] value")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "filter[offset] value")
	cmd.Flags().IntVar(&flags.pageSize, "page-size", 0, "page size")
	cmd.Flags().IntVar(&flags.pageNumber, "page-number", 0, "page number (requires --page-size)")
	cmd.Flags().BoolVar(&flags.allPages, "all-pages", false, "follow next links from the first page and print every page")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the request instead of sending it")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", constants.DefaultConcurrencyLimit, "parallel lookups when several IDs are given")

	return cmd
}

// options converts the flag values into query options.
func (f *queryFlags) options(cmd *cobra.Command) (*queryOptions, error) {
	opts := &queryOptions{
		Include:     f.include,
		Sort:        f.sort,
		Filters:     f.filters,
		PageSize:    f.pageSize,
		PageNumber:  f.pageNumber,
		AllPages:    f.allPages,
		DryRun:      f.dryRun,
		Concurrency: f.concurrency,
	}

	if len(f.fields) > 0 {
		fields, err := parseFieldsFlags(f.fields)
		if err != nil {
			return nil, err
		}

		opts.Fields = &fields
	}

	for _, raw := range f.where {
		clause, err := parseWhereFlag(raw)
		if err != nil {
			return nil, err
		}

		opts.Where = append(opts.Where, clause)
	}

	if cmd.Flags().Changed("limit") {
		opts.Limit = &f.limit
	}

	if cmd.Flags().Changed("offset") {
		opts.Offset = &f.offset
	}

	return opts, nil
}

// parseFieldsFlags turns --fields values into a fieldset. Either every value
// names its type (type=a,b) or every value lists primary fields (a,b).
func parseFieldsFlags(values []string) (jsonapi.Fields, error) {
	var (
		groups []jsonapi.TypeFields
		list   []string
	)

	for _, value := range values {
		resourceType, names, grouped := strings.Cut(value, "=")
		if !grouped {
			names = value
		}

		parsed := splitList(names)
		if len(parsed) == 0 || (grouped && strings.TrimSpace(resourceType) == "") {
			return jsonapi.Fields{}, fmt.Errorf("%w: %q", constants.ErrInvalidFieldsFlag, value)
		}

		if grouped {
			groups = append(groups, jsonapi.TypeFields{Type: strings.TrimSpace(resourceType), Names: parsed})
		} else {
			list = append(list, parsed...)
		}
	}

	switch {
	case len(groups) > 0 && len(list) > 0:
		return jsonapi.Fields{}, fmt.Errorf("%w: cannot mix type=a,b and a,b", constants.ErrInvalidFieldsFlag)
	case len(groups) > 0:
		return jsonapi.FieldGroups(groups...), nil
	default:
		return jsonapi.FieldList(list...), nil
	}
}

// parseWhereFlag parses key=value or group.key=value.
func parseWhereFlag(value string) (whereClause, error) {
	left, right, ok := strings.Cut(value, "=")
	if !ok {
		return whereClause{}, fmt.Errorf("%w: %q", constants.ErrInvalidWhereFlag, value)
	}

	clause := whereClause{Key: left, Value: right}

	if group, key, grouped := strings.Cut(left, "."); grouped {
		clause.Group = group
		clause.Key = key

		if group == "" {
			return whereClause{}, fmt.Errorf("%w: %q", constants.ErrInvalidWhereFlag, value)
		}
	}

	if clause.Key == "" {
		return whereClause{}, fmt.Errorf("%w: %q", constants.ErrInvalidWhereFlag, value)
	}

	return clause, nil
}

func splitList(value string) []string {
	var items []string

	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}

	return items
}

// validate rejects option combinations that cannot be expressed as one
// request.
func (o *queryOptions) validate(ids []string) error {
	if o.PageNumber > 0 && o.PageSize <= 0 {
		return constants.ErrPageSizeRequired
	}

	if o.AllPages && len(ids) > 0 {
		return constants.ErrIDWithAllPages
	}

	if o.AllPages && o.PageNumber > 0 {
		return constants.ErrPageNumberAllPages
	}

	return nil
}

// apply builds the query chain on query. Errors are reported by the
// terminal call.
func (o *queryOptions) apply(query *jsonapi.Query) *jsonapi.Query {
	if len(o.Include) > 0 {
		query.With(o.Include...)
	}

	for _, field := range o.Sort {
		if name, descending := strings.CutPrefix(field, "-"); descending {
			query.OrderByDesc(name)
		} else {
			query.OrderBy(field)
		}
	}

	if o.Fields != nil {
		query.Select(*o.Fields)
	}

	for _, key := range o.Filters {
		query.Filter(key)
	}

	for _, clause := range o.Where {
		if clause.Group != "" {
			query.Where(clause.Key, clause.Value, clause.Group)
		} else {
			query.Where(clause.Key, clause.Value)
		}
	}

	if o.Limit != nil {
		query.Limit(*o.Limit)
	}

	if o.Offset != nil {
		query.Offset(*o.Offset)
	}

	return query
}

// executeQuery creates a client and runs the query.
func executeQuery(cmd *cobra.Command, resource string, ids []string, opts *queryOptions) error {
	err := opts.validate(ids)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	return runQuery(ctx, cmd, client, resource, ids, opts)
}

func runQuery(ctx context.Context, cmd *cobra.Command, client *apiclient.Client, resource string, ids []string, opts *queryOptions) error {
	builder, err := client.Resource(resource)
	if err != nil {
		return err
	}

	query := opts.apply(builder.Query())

	if opts.DryRun {
		return dryRun(cmd, query, ids, opts)
	}

	if len(ids) > 1 {
		return findMany(ctx, cmd, builder, ids, opts)
	}

	id := ""
	if len(ids) == 1 {
		id = ids[0]
	}

	if opts.AllPages {
		resources, err := fetchPages(ctx, query, opts.PageSize)
		if err != nil {
			return err
		}

		return renderResources(cmd, resources)
	}

	var doc *jsonapi.Document

	switch {
	case id != "":
		doc, err = query.Find(ctx, id)
	case opts.PageSize > 0:
		doc, err = query.Paginate(ctx, opts.PageSize, pageNumber(opts))
	default:
		doc, err = query.All(ctx)
	}

	if err != nil {
		return fmt.Errorf("failed to query %s: %w", resource, err)
	}

	return renderDocument(cmd, doc)
}

// dryRun prints the requests a query would send.
func dryRun(cmd *cobra.Command, query *jsonapi.Query, ids []string, opts *queryOptions) error {
	if len(ids) <= 1 {
		id := ""
		if len(ids) == 1 {
			id = ids[0]
		}

		req, err := describeQuery(query, id, opts)
		if err != nil {
			return err
		}

		return renderRequest(cmd, req)
	}

	requests := make([]jsonapi.Request, 0, len(ids))

	for _, id := range ids {
		req, err := query.ResourceRequest(id)
		if err != nil {
			return err
		}

		requests = append(requests, req)
	}

	return renderRequests(cmd, requests)
}

// findMany fetches several resources concurrently. Every resource that was
// found is printed; failures are returned together.
func findMany(ctx context.Context, cmd *cobra.Command, builder *jsonapi.Builder, ids []string, opts *queryOptions) error {
	finder := jsonapi.NewBatchFinder(builder, opts.apply, opts.Concurrency)

	var (
		resources []jsonapi.ResourceObject
		failures  []error
	)

	for _, result := range finder.Find(ctx, ids) {
		if !result.Success() {
			failures = append(failures, fmt.Errorf("%s %s: %w", builder.ResourceType(), result.ID, result.Error))

			continue
		}

		resource, err := result.Document.Resource()
		if err != nil {
			failures = append(failures, fmt.Errorf("%s %s: %w", builder.ResourceType(), result.ID, err))

			continue
		}

		if resource != nil {
			resources = append(resources, *resource)
		}
	}

	err := renderResources(cmd, resources)
	if err != nil {
		return err
	}

	return errors.Join(failures...)
}

// describeQuery returns the request a query would send.
func describeQuery(query *jsonapi.Query, id string, opts *queryOptions) (jsonapi.Request, error) {
	if id != "" {
		return query.ResourceRequest(id)
	}

	if opts.PageSize > 0 || opts.AllPages {
		size := opts.PageSize
		if size <= 0 {
			size = constants.DefaultPageSize
		}

		query.State().SetPagination(size, pageNumber(opts))
	}

	return query.CollectionRequest()
}

// fetchPages follows pages until the collection ends, stopping with an
// error after constants.MaxPages pages.
func fetchPages(ctx context.Context, query *jsonapi.Query, size int) ([]jsonapi.ResourceObject, error) {
	if size <= 0 {
		size = constants.DefaultPageSize
	}

	iterator := jsonapi.NewPageIterator(ctx, query, size)
	all := make([]jsonapi.ResourceObject, 0)

	for iterator.HasNext() {
		if iterator.PageNumber() > constants.MaxPages {
			return nil, fmt.Errorf("%w: %d", constants.ErrTooManyPages, constants.MaxPages)
		}

		doc, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", iterator.PageNumber(), err)
		}

		resources, err := doc.Resources()
		if err != nil {
			return nil, err
		}

		all = append(all, resources...)
	}

	return all, nil
}

func pageNumber(opts *queryOptions) int {
	if opts.PageNumber > 0 {
		return opts.PageNumber
	}

	return 1
}
