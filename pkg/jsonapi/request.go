package jsonapi

import (
	"context"
	"net/http"
)

// MediaType is the JSON:API media type sent in the Accept header.
const MediaType = "application/vnd.api+json"

// Request is the request descriptor produced once per terminal call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Metadata carries interceptor state; it is never sent.
	Metadata map[string]interface{}
}

// Clone returns a copy whose header and metadata can be modified freely.
func (r Request) Clone() Request {
	clone := r
	clone.Header = r.Header.Clone()

	if r.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(r.Metadata))
		for key, value := range r.Metadata {
			clone.Metadata[key] = value
		}
	}

	return clone
}

// Response is a transport-level response as seen by interceptors.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
	Cached     bool
}

// Transport sends a request descriptor and returns the parsed document.
type Transport interface {
	Send(ctx context.Context, req Request) (*Document, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req Request) (*Document, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, req Request) (*Document, error) {
	return f(ctx, req)
}

func newGetRequest(url string) Request {
	header := make(http.Header)
	header.Set("Accept", MediaType)

	return Request{
		Method: http.MethodGet,
		URL:    url,
		Header: header,
	}
}
