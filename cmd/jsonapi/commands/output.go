package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fivetwenty-io/jsonapi-client/internal/constants"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatTable = constants.FormatTable
	FormatJSON  = constants.FormatJSON
	FormatYAML  = constants.FormatYAML

	defaultJSONIndent = 2
)

// documentView is the structured rendering of a fetched document. Data is a
// single resource or a list.
type documentView struct {
	Data     interface{}              `json:"data"               yaml:"data"`
	Included []jsonapi.ResourceObject `json:"included,omitempty" yaml:"included,omitempty"`
	Meta     map[string]interface{}   `json:"meta,omitempty"     yaml:"meta,omitempty"`
	Links    jsonapi.Links            `json:"links,omitempty"    yaml:"links,omitempty"`
}

// requestView is the structured rendering of a request descriptor.
type requestView struct {
	Method  string            `json:"method"  yaml:"method"`
	URL     string            `json:"url"     yaml:"url"`
	Headers map[string]string `json:"headers" yaml:"headers"`
}

// outputFormat resolves --output. Without an explicit format, terminals get
// a table and everything else gets JSON.
func outputFormat(cmd *cobra.Command) (string, error) {
	format := strings.ToLower(viper.GetString("output"))

	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return format, nil
	case "":
		if isTerminal(cmd.OutOrStdout()) {
			return FormatTable, nil
		}

		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", constants.ErrUnsupportedFormat, format)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)

	return ok && term.IsTerminal(int(file.Fd()))
}

// writeStructured encodes value as JSON or YAML.
func writeStructured(w io.Writer, format string, value interface{}) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", strings.Repeat(" ", defaultJSONIndent))

		return encoder.Encode(value)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(defaultJSONIndent)

		defer func() { _ = encoder.Close() }()

		return encoder.Encode(value)
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnsupportedFormat, format)
	}
}

// renderDocument prints a fetched document in the selected format.
func renderDocument(cmd *cobra.Command, doc *jsonapi.Document) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	view := documentView{
		Included: doc.Included,
		Meta:     doc.Meta,
		Links:    doc.Links,
	}

	var resources []jsonapi.ResourceObject

	if doc.IsCollection() {
		resources, err = doc.Resources()
		if err != nil {
			return err
		}

		view.Data = resources
	} else {
		resource, err := doc.Resource()
		if err != nil {
			return err
		}

		if resource != nil {
			resources = []jsonapi.ResourceObject{*resource}
		}

		view.Data = resource
	}

	if format != FormatTable {
		return writeStructured(cmd.OutOrStdout(), format, view)
	}

	return renderResourcesTable(cmd.OutOrStdout(), resources)
}

// renderResources prints resources gathered from several pages.
func renderResources(cmd *cobra.Command, resources []jsonapi.ResourceObject) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	if format != FormatTable {
		return writeStructured(cmd.OutOrStdout(), format, documentView{Data: resources})
	}

	return renderResourcesTable(cmd.OutOrStdout(), resources)
}

// renderResourcesTable prints one row per resource with a column per
// attribute name seen in any of them.
func renderResourcesTable(w io.Writer, resources []jsonapi.ResourceObject) error {
	if len(resources) == 0 {
		_, _ = io.WriteString(w, "No resources found\n")

		return nil
	}

	attributes := attributeNames(resources)

	header := []string{"Type", "ID"}
	for _, name := range attributes {
		header = append(header, headerTitle(name))
	}

	table := tablewriter.NewWriter(w)
	table.Header(header)

	for _, resource := range resources {
		row := []string{resource.Type, resource.ID}

		for _, name := range attributes {
			value, ok := resource.Attributes[name]
			if !ok {
				row = append(row, constants.NotAvailable)

				continue
			}

			row = append(row, truncate(formatCell(value), constants.MaxCellWidth))
		}

		_ = table.Append(row)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderRequest prints a request descriptor without sending it.
func renderRequest(cmd *cobra.Command, req jsonapi.Request) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	view := newRequestView(req)

	if format != FormatTable {
		return writeStructured(cmd.OutOrStdout(), format, view)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Property", "Value")
	_ = table.Append("Method", view.Method)
	_ = table.Append("URL", view.URL)

	for _, key := range sortedKeys(view.Headers) {
		_ = table.Append(key, view.Headers[key])
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderRequests prints several request descriptors.
func renderRequests(cmd *cobra.Command, requests []jsonapi.Request) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	views := make([]requestView, 0, len(requests))
	for _, req := range requests {
		views = append(views, newRequestView(req))
	}

	if format != FormatTable {
		return writeStructured(cmd.OutOrStdout(), format, views)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Method", "URL")

	for _, view := range views {
		_ = table.Append(view.Method, view.URL)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func newRequestView(req jsonapi.Request) requestView {
	view := requestView{
		Method:  req.Method,
		URL:     req.URL,
		Headers: make(map[string]string, len(req.Header)),
	}

	for key := range req.Header {
		view.Headers[key] = req.Header.Get(key)
	}

	return view
}

func attributeNames(resources []jsonapi.ResourceObject) []string {
	seen := make(map[string]struct{})

	for _, resource := range resources {
		for name := range resource.Attributes {
			seen[name] = struct{}{}
		}
	}

	return sortedKeys(seen)
}

// headerTitle turns an attribute name such as "published_at" into
// "Published At".
func headerTitle(name string) string {
	words := strings.NewReplacer("_", " ", "-", " ").Replace(name)

	return cases.Title(language.English).String(words)
}

func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return constants.NotAvailable
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}

	return string(runes[:limit-3]) + "..."
}

// maskSecret keeps the first few characters of a secret.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	if len(secret) <= constants.StringTruncationLimit {
		return constants.MaskedSecret
	}

	return secret[:constants.StringTruncationLimit] + constants.MaskedSecret
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
