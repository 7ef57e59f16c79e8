package jsonapi_test

import (
	"testing"

	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec interface{}
		want []jsonapi.TypeFields
	}{
		{
			name: "string slice",
			spec: []string{"title", "subtitle"},
			want: []jsonapi.TypeFields{{Type: "posts", Names: []string{"title", "subtitle"}}},
		},
		{
			name: "interface slice",
			spec: []interface{}{"title"},
			want: []jsonapi.TypeFields{{Type: "posts", Names: []string{"title"}}},
		},
		{
			name: "string map in lexical order",
			spec: map[string][]string{"tags": {"name"}, "posts": {"title"}},
			want: []jsonapi.TypeFields{
				{Type: "posts", Names: []string{"title"}},
				{Type: "tags", Names: []string{"name"}},
			},
		},
		{
			name: "decoded map",
			spec: map[string]interface{}{
				"posts":    []interface{}{"title", "body"},
				"comments": []string{"body"},
			},
			want: []jsonapi.TypeFields{
				{Type: "comments", Names: []string{"body"}},
				{Type: "posts", Names: []string{"title", "body"}},
			},
		},
		{
			name: "interface slice map",
			spec: map[string][]interface{}{"posts": {"title"}},
			want: []jsonapi.TypeFields{{Type: "posts", Names: []string{"title"}}},
		},
		{
			name: "field list value",
			spec: jsonapi.FieldList("title"),
			want: []jsonapi.TypeFields{{Type: "posts", Names: []string{"title"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fields, err := jsonapi.ParseFields(tt.spec)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, fields.Resolve("posts")); diff != "" {
				t.Errorf("resolved fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFields_Invalid(t *testing.T) {
	t.Parallel()

	invalid := []interface{}{
		"crap",
		42,
		nil,
		[]interface{}{"title", 3},
		map[string]interface{}{"posts": "title"},
		map[string]interface{}{"posts": []interface{}{1}},
		map[string]int{"posts": 1},
		jsonapi.Fields{},
	}

	for _, spec := range invalid {
		_, err := jsonapi.ParseFields(spec)
		require.Error(t, err, "spec %#v", spec)
		require.ErrorIs(t, err, jsonapi.ErrInvalidArgument)
		assert.Equal(t, "Invalid fields list.", err.Error())
	}
}

func TestFields_IsList(t *testing.T) {
	t.Parallel()

	assert.True(t, jsonapi.FieldList("a").IsList())
	assert.False(t, jsonapi.FieldGroups(jsonapi.TypeFields{Type: "a"}).IsList())
	assert.Nil(t, jsonapi.Fields{}.Resolve("posts"))
}

func TestFieldGroups_CopiesInput(t *testing.T) {
	t.Parallel()

	names := []string{"title"}
	fields := jsonapi.FieldGroups(jsonapi.TypeFields{Type: "posts", Names: names})
	names[0] = "changed"

	assert.Equal(t, []string{"title"}, fields.Resolve("posts")[0].Names)
}
