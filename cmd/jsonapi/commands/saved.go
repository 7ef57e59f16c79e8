package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/jsonapi-client/internal/constants"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// savedQuery is a named query from the queries section of the config file:
//
//	queries:
//	  recent-posts:
//	    resource: posts
//	    include: [author]
//	    sort: [-published_at]
//	    fields:
//	      posts: [title, published_at]
//	      users: [name]
//	    where:
//	      status: published
//	      author:
//	        name: alice
//	    page_size: 10
type savedQuery struct {
	Name     string
	Resource string
	IDs      []string
	Options  *queryOptions
}

// NewSavedCommand creates the saved command group.
func NewSavedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "saved",
		Aliases: []string{"queries"},
		Short:   "Run queries saved in the config file",
		Long:    "List and run the named queries defined under 'queries' in the config file",
	}

	cmd.AddCommand(newSavedListCommand())
	cmd.AddCommand(newSavedRunCommand())

	return cmd
}

func newSavedListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		Long:  "List the named queries defined in the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			if format != FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, config.Queries)
			}

			if len(config.Queries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No saved queries found")

				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Name", "Resource", "Include", "Sort")

			for _, name := range sortedKeys(config.Queries) {
				definition := config.Queries[name]
				include, _ := stringsOf(definition["include"])
				sort, _ := stringsOf(definition["sort"])

				_ = table.Append(name, fmt.Sprint(definition["resource"]), strings.Join(include, ","), strings.Join(sort, ","))
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newSavedRunCommand() *cobra.Command {
	var (
		dryRun   bool
		allPages bool
	)

	cmd := &cobra.Command{
		Use:   "run NAME [ID...]",
		Short: "Run a saved query",
		Long:  "Run a named query from the config file. IDs override the saved resource ids.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			definition, ok := config.Queries[args[0]]
			if !ok {
				return fmt.Errorf("%w: %s", constants.ErrSavedQueryNotFound, args[0])
			}

			saved, err := parseSavedQuery(args[0], definition)
			if err != nil {
				return err
			}

			if len(args) > 1 {
				saved.IDs = args[1:]
			}

			saved.Options.DryRun = saved.Options.DryRun || dryRun
			saved.Options.AllPages = saved.Options.AllPages || allPages

			return executeQuery(cmd, saved.Resource, saved.IDs, saved.Options)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the request instead of sending it")
	cmd.Flags().BoolVar(&allPages, "all-pages", false, "follow next links and print every page")

	return cmd
}

// parseSavedQuery decodes a saved query definition.
func parseSavedQuery(name string, definition map[string]interface{}) (*savedQuery, error) {
	invalid := func(key string) error {
		return fmt.Errorf("%w: %s: bad %q", constants.ErrInvalidSavedQuery, name, key)
	}

	resource, ok := definition["resource"].(string)
	if !ok || resource == "" {
		return nil, invalid("resource")
	}

	saved := &savedQuery{
		Name:     name,
		Resource: resource,
		Options:  &queryOptions{Concurrency: constants.DefaultConcurrencyLimit},
	}
	opts := saved.Options

	for _, key := range sortedKeys(definition) {
		raw := definition[key]

		var err error

		switch key {
		case "resource":
			continue
		case "id", "ids":
			saved.IDs, err = idsOf(raw)
		case "include":
			opts.Include, err = stringsOf(raw)
		case "sort":
			opts.Sort, err = stringsOf(raw)
		case "filter":
			opts.Filters, err = stringsOf(raw)
		case "fields":
			var fields jsonapi.Fields

			fields, err = jsonapi.ParseFields(raw)
			opts.Fields = &fields
		case "where":
			opts.Where, err = whereClauses(raw)
		case "limit":
			opts.Limit, err = intPointer(raw)
		case "offset":
			opts.Offset, err = intPointer(raw)
		case "page_size":
			opts.PageSize, err = intOf(raw)
		case "page_number":
			opts.PageNumber, err = intOf(raw)
		case "all_pages":
			opts.AllPages, ok = raw.(bool)
			if !ok {
				return nil, invalid(key)
			}
		default:
			return nil, invalid(key)
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", invalid(key), err)
		}
	}

	return saved, nil
}

// whereClauses decodes a where map. Scalar values are plain conditions and
// nested maps are groups; both are applied in lexical key order.
func whereClauses(raw interface{}) ([]whereClause, error) {
	conditions, ok := raw.(map[string]interface{})
	if !ok {
		return nil, constants.ErrInvalidWhereFlag
	}

	var clauses []whereClause

	for _, key := range sortedKeys(conditions) {
		group, grouped := conditions[key].(map[string]interface{})
		if !grouped {
			clauses = append(clauses, whereClause{Key: key, Value: conditions[key]})

			continue
		}

		for _, groupKey := range sortedKeys(group) {
			clauses = append(clauses, whereClause{Group: key, Key: groupKey, Value: group[groupKey]})
		}
	}

	return clauses, nil
}

// stringsOf accepts a list of strings or a comma-separated string.
func stringsOf(raw interface{}) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return splitList(value), nil
	case []string:
		return value, nil
	case []interface{}:
		items := make([]string, 0, len(value))

		for _, item := range value {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %v", constants.ErrInvalidSavedQuery, item)
			}

			items = append(items, text)
		}

		return items, nil
	default:
		return nil, fmt.Errorf("%w: %v", constants.ErrInvalidSavedQuery, raw)
	}
}

// idsOf accepts a single id or a list of ids.
func idsOf(raw interface{}) ([]string, error) {
	switch value := raw.(type) {
	case string, int, int64, float64:
		return []string{fmt.Sprint(value)}, nil
	case []interface{}:
		ids := make([]string, 0, len(value))
		for _, item := range value {
			ids = append(ids, fmt.Sprint(item))
		}

		return ids, nil
	default:
		return nil, fmt.Errorf("%w: %v", constants.ErrInvalidSavedQuery, raw)
	}
}

func intOf(raw interface{}) (int, error) {
	switch value := raw.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		return int(value), nil
	case string:
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", constants.ErrInvalidSavedQuery, err)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("%w: %v", constants.ErrInvalidSavedQuery, raw)
	}
}

func intPointer(raw interface{}) (*int, error) {
	n, err := intOf(raw)
	if err != nil {
		return nil, err
	}

	return &n, nil
}
