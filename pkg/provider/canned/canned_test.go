package canned

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/getmockd/vhostd/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(method, uri string, headers map[string]string) *message.Request {
	return message.NewRequest(&message.RequestInfo{Method: method, URI: uri, Headers: headers, Host: "api.example.com"})
}

func TestNew(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "teapot.html"), []byte("<h1>teapot</h1>"), 0o644))

	routes := []Route{
		{
			Pattern: "/health",
			Cases:   []Case{{ContentType: message.ContentTypeApplicationJSON, Body: `{"ok":true}`}},
		},
		{
			Pattern: "/api/.*",
			Cases: []Case{
				{When: `method == "DELETE"`, Status: 405, Body: "no deletes"},
				{When: `headers["X-Mode"] == "teapot"`, Status: 418, BodyFile: "teapot.html", ContentType: message.ContentTypeTextHTML},
				{When: `host == "other.example.com"`, Status: 200, Body: "other"},
			},
		},
	}
	pages := map[int]Page{404: {Body: "nothing here"}}

	r, err := New(dir, routes, pages)
	require.NoError(t, err)
	assert.Equal(t, []string{"/health", "/api/.*"}, r.Routes())

	t.Run("plain case", func(t *testing.T) {
		resp := r.Dispatch(request("GET", "/health", nil))
		assert.Equal(t, 200, resp.StatusCode())
		assert.Equal(t, message.ContentTypeApplicationJSON, resp.ContentType())
	})

	t.Run("first true condition answers", func(t *testing.T) {
		resp := r.Dispatch(request("DELETE", "/api/users", nil))
		assert.Equal(t, 405, resp.StatusCode())
		assert.Equal(t, "no deletes", string(resp.Body()))
	})

	t.Run("body file and header condition", func(t *testing.T) {
		resp := r.Dispatch(request("GET", "/api/users", map[string]string{"X-Mode": "teapot"}))
		assert.Equal(t, 418, resp.StatusCode())
		assert.Equal(t, "<h1>teapot</h1>", string(resp.Body()))
	})

	t.Run("no case matches falls back to error page", func(t *testing.T) {
		resp := r.Dispatch(request("GET", "/api/users", nil))
		assert.Equal(t, 404, resp.StatusCode())
		assert.Equal(t, "nothing here", string(resp.Body()))
	})

	t.Run("unrouted uri uses error page", func(t *testing.T) {
		resp := r.Dispatch(request("GET", "/elsewhere", nil))
		assert.Equal(t, "nothing here", string(resp.Body()))
	})
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		routes []Route
		pages  map[int]Page
	}{
		{"no cases", []Route{{Pattern: "/x"}}, nil},
		{"bad expression", []Route{{Pattern: "/x", Cases: []Case{{When: "method =="}}}}, nil},
		{"non-bool expression", []Route{{Pattern: "/x", Cases: []Case{{When: "port + 1"}}}}, nil},
		{"bad pattern", []Route{{Pattern: "/(", Cases: []Case{{Body: "x"}}}}, nil},
		{"missing body file", []Route{{Pattern: "/x", Cases: []Case{{BodyFile: "nope.txt"}}}}, nil},
		{"missing page file", nil, map[int]Page{500: {BodyFile: "nope.html"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(t.TempDir(), tt.routes, tt.pages)
			assert.Error(t, err)
		})
	}
}
