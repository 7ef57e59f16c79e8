package jsonapi

import (
	"net/url"
	"strconv"
	"strings"
)

// Encode serializes the state into a canonical query string without the
// leading "?". Parameter groups are emitted in the fixed order include, page,
// sort, fields, filter; empty groups contribute nothing.
func (s *QueryState) Encode() string {
	params := make([]string, 0)

	if len(s.includes) > 0 {
		params = append(params, "include="+joinEscaped(s.includes))
	}

	if s.pagination != nil {
		params = append(params,
			"page[size]="+strconv.Itoa(s.pagination.Size),
			"page[number]="+strconv.Itoa(s.pagination.Number),
		)
	}

	if len(s.sorts) > 0 {
		tokens := make([]string, 0, len(s.sorts))
		for _, key := range s.sorts {
			tokens = append(tokens, key.token())
		}

		params = append(params, "sort="+joinEscaped(tokens))
	}

	for _, group := range s.fields {
		if len(group.Names) == 0 {
			continue
		}

		params = append(params, "fields["+escape(group.Type)+"]="+joinEscaped(group.Names))
	}

	params = append(params, s.encodeFilters()...)

	return strings.Join(params, "&")
}

// encodeFilters buckets filters by their top-level name in first-seen order;
// entries keep insertion order inside a bucket.
func (s *QueryState) encodeFilters() []string {
	order := make([]string, 0)
	buckets := make(map[string][]filterEntry)

	for _, entry := range s.filters {
		top := entry.top()
		if _, seen := buckets[top]; !seen {
			order = append(order, top)
		}

		buckets[top] = append(buckets[top], entry)
	}

	params := make([]string, 0, len(s.filters))

	for _, top := range order {
		for _, entry := range buckets[top] {
			var param strings.Builder

			param.WriteString("filter[")

			if entry.group != "" {
				param.WriteString(escape(entry.group))
				param.WriteString("][")
			}

			param.WriteString(escape(entry.key))
			param.WriteString("]")

			if entry.hasValue {
				param.WriteString("=")
				param.WriteString(escape(entry.value))
			}

			params = append(params, param.String())
		}
	}

	return params
}

func joinEscaped(tokens []string) string {
	escaped := make([]string, 0, len(tokens))
	for _, token := range tokens {
		escaped = append(escaped, escape(token))
	}

	return strings.Join(escaped, ",")
}

func escape(token string) string {
	return url.QueryEscape(token)
}
