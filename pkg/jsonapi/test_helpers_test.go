package jsonapi_test

import (
	"context"
	"sync"
	"testing"

	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://sarala-demo.app/api"

// recordingTransport records every request it is given and answers with a
// fixed document.
type recordingTransport struct {
	mu       sync.Mutex
	requests []jsonapi.Request
	doc      *jsonapi.Document
	err      error
}

func (r *recordingTransport) Send(_ context.Context, req jsonapi.Request) (*jsonapi.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = append(r.requests, req)

	if r.err != nil {
		return nil, r.err
	}

	if r.doc != nil {
		return r.doc, nil
	}

	return &jsonapi.Document{}, nil
}

func (r *recordingTransport) Requests() []jsonapi.Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]jsonapi.Request(nil), r.requests...)
}

func (r *recordingTransport) Last(t *testing.T) jsonapi.Request {
	t.Helper()

	requests := r.Requests()
	require.NotEmpty(t, requests, "no request was dispatched")

	return requests[len(requests)-1]
}

func newPostsBuilder(t *testing.T) (*jsonapi.Builder, *recordingTransport) {
	t.Helper()

	transport := &recordingTransport{}

	builder, err := jsonapi.NewBuilder(testBaseURL, "posts", transport)
	require.NoError(t, err)

	return builder, transport
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type testLogger struct {
	mu   sync.Mutex
	logs []capturedLog
}

func (l *testLogger) record(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logs = append(l.logs, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *testLogger) Debug(msg string, fields map[string]interface{}) { l.record("debug", msg, fields) }
func (l *testLogger) Info(msg string, fields map[string]interface{})  { l.record("info", msg, fields) }
func (l *testLogger) Warn(msg string, fields map[string]interface{})  { l.record("warn", msg, fields) }
func (l *testLogger) Error(msg string, fields map[string]interface{}) { l.record("error", msg, fields) }

func (l *testLogger) Logs() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]capturedLog(nil), l.logs...)
}
