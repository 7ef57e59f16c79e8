// Package jsonapi builds JSON:API read queries with a fluent API and
// dispatches them through a pluggable Transport.
//
// # Overview
//
// A Builder is bound to one resource type of one API. Every chain started on
// it gets its own Query, which accumulates includes, sort keys, sparse
// fieldsets, filters and pagination, and is consumed by a terminal call:
//
//	posts, _ := jsonapi.NewBuilder("https://example.com/api", "posts", transport)
//
//	doc, err := posts.
//	  With("tags", "author", "comments.author").
//	  OrderByDesc("published_at").
//	  Select([]string{"title", "subtitle"}).
//	  Where("likes-above", 100, "popular").
//	  Paginate(ctx, 10, 1)
//
// sends
//
//	GET https://example.com/api/posts/?include=tags,author,comments.author&page[size]=10&page[number]=1&sort=-published_at&fields[posts]=title,subtitle&filter[popular][likes-above]=100
//	Accept: application/vnd.api+json
//
// Parameter groups are always emitted in the order include, page, sort,
// fields, filter.
//
// # Errors
//
// An invalid sort direction or fieldset is recorded on the Query at the call
// that received it (see Query.Err) and returned by the terminal call, which
// then sends nothing. Both errors unwrap to ErrInvalidArgument. Transport
// errors are returned unchanged; HTTP transports report non-2xx responses as
// *HTTPError.
//
// # Transports, interceptors and caching
//
// The apiclient package wires a retrying HTTP transport with interceptors
// (logging, headers, bearer auth, metrics) and an optional response Cache
// (memory, NATS KV, or a chain of both). Tests and dry runs can use any
// TransportFunc.
package jsonapi
