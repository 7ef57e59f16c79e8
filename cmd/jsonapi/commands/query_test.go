package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/jsonapi-client/internal/constants"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()
	assert.Equal(t, "query RESOURCE [ID...]", cmd.Use)
	assert.Equal(t, "Query a resource collection or a single resource", cmd.Short)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Args)

	flags := []string{
		"include", "sort", "fields", "filter", "where", "limit", "offset",
		"page-size", "page-number", "all-pages", "dry-run", "concurrency",
	}
	for _, flagName := range flags {
		flag := cmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "Flag %s should exist", flagName)
	}

	assert.Equal(t, "i", cmd.Flags().Lookup("include").Shorthand)
	assert.Equal(t, "false", cmd.Flags().Lookup("dry-run").DefValue)
	assert.Equal(t, "5", cmd.Flags().Lookup("concurrency").DefValue)
}

func TestParseFieldsFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		values  []string
		want    jsonapi.Fields
		wantErr bool
	}{
		{
			name:   "primary list",
			values: []string{"title, body"},
			want:   jsonapi.FieldList("title", "body"),
		},
		{
			name:   "repeated lists are merged",
			values: []string{"title", "body"},
			want:   jsonapi.FieldList("title", "body"),
		},
		{
			name:   "groups keep flag order",
			values: []string{"posts=title,body", "comments=body"},
			want: jsonapi.FieldGroups(
				jsonapi.TypeFields{Type: "posts", Names: []string{"title", "body"}},
				jsonapi.TypeFields{Type: "comments", Names: []string{"body"}},
			),
		},
		{name: "mixed forms", values: []string{"posts=title", "body"}, wantErr: true},
		{name: "empty names", values: []string{"posts="}, wantErr: true},
		{name: "empty type", values: []string{"=title"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseFieldsFlags(tt.values)
			if tt.wantErr {
				require.ErrorIs(t, err, constants.ErrInvalidFieldsFlag)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.Resolve("posts"), got.Resolve("posts"))
			assert.Equal(t, tt.want.IsList(), got.IsList())
		})
	}
}

func TestParseWhereFlag(t *testing.T) {
	t.Parallel()

	clause, err := parseWhereFlag("status=published")
	require.NoError(t, err)
	assert.Equal(t, whereClause{Key: "status", Value: "published"}, clause)

	clause, err = parseWhereFlag("author.name=a=b")
	require.NoError(t, err)
	assert.Equal(t, whereClause{Group: "author", Key: "name", Value: "a=b"}, clause)

	for _, value := range []string{"status", "=x", ".name=x", "author.=x"} {
		_, err := parseWhereFlag(value)
		require.ErrorIs(t, err, constants.ErrInvalidWhereFlag, value)
	}
}

func TestQueryCommand_DryRun(t *testing.T) {
	resetViper(t)
	viper.Set("api", "https://sarala-demo.app/api/")

	output, err := executeCommand(t, NewQueryCommand(), "posts",
		"--include", "author,comments",
		"--sort", "-published_at,title",
		"--fields", "posts=title",
		"--fields", "comments=body",
		"--filter", "archived",
		"--where", "popular.likes-above=100",
		"--limit", "5",
		"--page-size", "10",
		"--page-number", "3",
		"--dry-run",
	)
	require.NoError(t, err)

	var view requestView
	require.NoError(t, json.Unmarshal([]byte(output), &view))

	assert.Equal(t, http.MethodGet, view.Method)
	assert.Equal(t, jsonapi.MediaType, view.Headers["Accept"])
	assert.Equal(t,
		"https://sarala-demo.app/api/posts/?include=author,comments&page[size]=10&page[number]=3"+
			"&sort=-published_at,title&fields[posts]=title&fields[comments]=body"+
			"&filter[archived]&filter[popular][likes-above]=100&filter[limit]=5",
		view.URL)
}

func TestQueryCommand_DryRunSingleResource(t *testing.T) {
	resetViper(t)
	viper.Set("api", "https://sarala-demo.app/api")

	output, err := executeCommand(t, NewQueryCommand(), "posts", "1", "--include", "author", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, output, `"url": "https://sarala-demo.app/api/posts/1?include=author"`)
}

func TestQueryCommand_MixedFieldsRejected(t *testing.T) {
	resetViper(t)
	viper.Set("api", "https://sarala-demo.app/api")

	_, err := executeCommand(t, NewQueryCommand(), "posts", "--fields", "a,b", "--fields", "posts=c", "--dry-run")
	require.ErrorIs(t, err, constants.ErrInvalidFieldsFlag)
}

func TestQueryCommand_Validation(t *testing.T) {
	resetViper(t)
	viper.Set("api", "https://sarala-demo.app/api")

	_, err := executeCommand(t, NewQueryCommand(), "posts", "--page-number", "2")
	require.ErrorIs(t, err, constants.ErrPageSizeRequired)

	_, err = executeCommand(t, NewQueryCommand(), "posts", "1", "--all-pages")
	require.ErrorIs(t, err, constants.ErrIDWithAllPages)

	_, err = executeCommand(t, NewQueryCommand(), "posts", "--all-pages", "--page-size", "5", "--page-number", "3")
	require.ErrorIs(t, err, constants.ErrPageNumberAllPages)

	viper.Set("api", "")

	_, err = executeCommand(t, NewQueryCommand(), "posts")
	require.ErrorIs(t, err, constants.ErrNoAPIConfigured)
}

func TestQueryCommand_Fetch(t *testing.T) {
	resetViper(t)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/api/posts/", request.URL.Path)
		assert.Equal(t, "include=author&sort=-published_at", request.URL.RawQuery)
		assert.Equal(t, "Bearer static-token", request.Header.Get("Authorization"))

		writer.Header().Set("Content-Type", jsonapi.MediaType)
		_, _ = writer.Write([]byte(`{
			"data": [
				{"type": "posts", "id": "1", "attributes": {"title": "Hello", "published_at": "2018-01-01"}},
				{"type": "posts", "id": "2", "attributes": {"title": "World"}}
			],
			"meta": {"total": 2}
		}`))
	}))
	defer server.Close()

	viper.Set("api", server.URL+"/api")
	viper.Set("token", "static-token")

	output, err := executeCommand(t, NewQueryCommand(), "posts", "--include", "author", "--sort", "-published_at")
	require.NoError(t, err)

	var view struct {
		Data []jsonapi.ResourceObject `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &view))

	require.Len(t, view.Data, 2)
	assert.Equal(t, "1", view.Data[0].ID)
	assert.Equal(t, "Hello", view.Data[0].Attributes["title"])
	assert.InDelta(t, 2, view.Meta["total"], 0)

	viper.Set("output", FormatTable)

	output, err = executeCommand(t, NewQueryCommand(), "posts", "--include", "author", "--sort", "-published_at")
	require.NoError(t, err)
	assert.Contains(t, output, "Hello")
	assert.Contains(t, output, "World")
	assert.Contains(t, output, constants.NotAvailable)

	viper.Set("output", FormatYAML)

	output, err = executeCommand(t, NewQueryCommand(), "posts", "--include", "author", "--sort", "-published_at")
	require.NoError(t, err)
	assert.Contains(t, output, "title: Hello")
}

func TestQueryCommand_NotFound(t *testing.T) {
	resetViper(t)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	viper.Set("api", server.URL)

	_, err := executeCommand(t, NewQueryCommand(), "posts", "99")
	require.Error(t, err)
	assert.True(t, jsonapi.IsNotFound(err))
	assert.Contains(t, err.Error(), "failed to query posts")
}

func TestQueryCommand_AllPages(t *testing.T) {
	resetViper(t)

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requests.Add(1)

		number := request.URL.Query().Get("page[number]")
		assert.Equal(t, "2", request.URL.Query().Get("page[size]"))
		assert.Equal(t, "published", request.URL.Query().Get("filter[status]"))

		next := ""
		if number == "1" {
			next = fmt.Sprintf(`,"links":{"next":"%s/posts/?page[number]=2"}`, "http://"+request.Host)
		}

		writer.Header().Set("Content-Type", jsonapi.MediaType)
		_, _ = fmt.Fprintf(writer, `{"data":[{"type":"posts","id":"p%s-a"},{"type":"posts","id":"p%s-b"}]%s}`, number, number, next)
	}))
	defer server.Close()

	viper.Set("api", server.URL)

	output, err := executeCommand(t, NewQueryCommand(), "posts", "--all-pages", "--page-size", "2", "--where", "status=published")
	require.NoError(t, err)

	assert.Equal(t, int32(2), requests.Load())

	var view struct {
		Data []jsonapi.ResourceObject `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &view))

	ids := make([]string, 0, len(view.Data))
	for _, resource := range view.Data {
		ids = append(ids, resource.ID)
	}

	assert.Equal(t, "p1-a,p1-b,p2-a,p2-b", strings.Join(ids, ","))
}

func TestQueryCommand_UnsupportedOutput(t *testing.T) {
	resetViper(t)
	viper.Set("api", "https://sarala-demo.app/api")
	viper.Set("output", "xml")

	_, err := executeCommand(t, NewQueryCommand(), "posts", "--dry-run")
	require.ErrorIs(t, err, constants.ErrUnsupportedFormat)
}

func TestQueryCommand_DryRunSeveralResources(t *testing.T) {
	resetViper(t)
	viper.Set("api", "https://sarala-demo.app/api")

	output, err := executeCommand(t, NewQueryCommand(), "posts", "1", "2", "--include", "author", "--dry-run")
	require.NoError(t, err)

	var views []requestView
	require.NoError(t, json.Unmarshal([]byte(output), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "https://sarala-demo.app/api/posts/1?include=author", views[0].URL)
	assert.Equal(t, "https://sarala-demo.app/api/posts/2?include=author", views[1].URL)
}

func TestQueryCommand_SeveralResources(t *testing.T) {
	resetViper(t)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "include=author", request.URL.RawQuery)

		id := strings.TrimPrefix(request.URL.Path, "/posts/")
		if id == "404" {
			writer.WriteHeader(http.StatusNotFound)

			return
		}

		writer.Header().Set("Content-Type", jsonapi.MediaType)
		_, _ = fmt.Fprintf(writer, `{"data":{"type":"posts","id":"%s"}}`, id)
	}))
	defer server.Close()

	viper.Set("api", server.URL)

	output, err := executeCommand(t, NewQueryCommand(), "posts", "3", "404", "1", "--include", "author", "--concurrency", "2")
	require.Error(t, err)
	assert.True(t, jsonapi.IsNotFound(err))
	assert.Contains(t, err.Error(), "posts 404")

	var view struct {
		Data []jsonapi.ResourceObject `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &view))
	require.Len(t, view.Data, 2)
	assert.Equal(t, "3", view.Data[0].ID)
	assert.Equal(t, "1", view.Data[1].ID)
}
