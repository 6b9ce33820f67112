package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected Method
	}{
		{"GET", MethodGET},
		{"POST", MethodPOST},
		{"PUT", MethodPUT},
		{"DELETE", MethodDELETE},
		{"HEAD", MethodHEAD},
		{"OPTIONS", MethodOPTIONS},
		{"TRACE", MethodTRACE},
		{"CONNECT", MethodCONNECT},
		{"get", MethodUnknown},
		{"PATCH", MethodUnknown},
		{"", MethodUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseMethod(tt.input))
		})
	}

	assert.Equal(t, "UNKNOWN", Method(42).String())
}

func TestNewRequest(t *testing.T) {
	t.Parallel()

	t.Run("copies the listener record", func(t *testing.T) {
		t.Parallel()
		info := &RequestInfo{
			ID:          "abc",
			Method:      "POST",
			URI:         "/submit",
			HTTPVersion: "1.1",
			QueryString: "a=1",
			Body:        []byte("payload"),
			RemoteIP:    "10.0.0.2",
			RemotePort:  51515,
			Headers:     map[string]string{"X-Trace": "1"},
			Host:        "a.example.com:8080",
			LocalPort:   80,
		}

		req := NewRequest(info)
		info.Body[0] = 'X'
		info.Headers["X-Trace"] = "2"

		assert.Equal(t, "abc", req.ID())
		assert.Equal(t, MethodPOST, req.Method())
		assert.Equal(t, "POST", req.MethodName())
		assert.Equal(t, "/submit", req.URI())
		assert.Equal(t, "a=1", req.QueryString())
		assert.Equal(t, []byte("payload"), req.Body())
		assert.Equal(t, "1", req.Header("x-trace"))
		assert.Equal(t, "a.example.com", req.HostDomain())
		assert.Equal(t, 8080, req.HostPort())
	})

	t.Run("host without port falls back to local port", func(t *testing.T) {
		t.Parallel()
		req := NewRequest(&RequestInfo{Host: "example.com", LocalPort: 8443})
		assert.Equal(t, "example.com", req.HostDomain())
		assert.Equal(t, 8443, req.HostPort())
	})

	t.Run("host header used when host field empty", func(t *testing.T) {
		t.Parallel()
		req := NewRequest(&RequestInfo{Headers: map[string]string{"Host": "b.example.com:81"}})
		assert.Equal(t, "b.example.com", req.HostDomain())
		assert.Equal(t, 81, req.HostPort())
	})

	t.Run("ipv6 host", func(t *testing.T) {
		t.Parallel()
		req := NewRequest(&RequestInfo{Host: "[::1]:9000"})
		assert.Equal(t, "::1", req.HostDomain())
		assert.Equal(t, 9000, req.HostPort())
	})

	t.Run("invalid host yields empty domain", func(t *testing.T) {
		t.Parallel()
		req := NewRequest(&RequestInfo{Host: "bad host\x00", LocalPort: 80})
		assert.Empty(t, req.HostDomain())
		assert.Equal(t, 80, req.HostPort())
	})

	t.Run("derived host values are stable", func(t *testing.T) {
		t.Parallel()
		req := NewRequest(&RequestInfo{Host: "c.example.com:90"})
		for range 3 {
			assert.Equal(t, "c.example.com", req.HostDomain())
			assert.Equal(t, 90, req.HostPort())
		}
	})

	t.Run("nil info", func(t *testing.T) {
		t.Parallel()
		req := NewRequest(nil)
		require.NotNil(t, req)
		assert.Equal(t, MethodUnknown, req.Method())
		assert.NotNil(t, req.Headers())
	})
}

func TestResponse(t *testing.T) {
	t.Parallel()

	t.Run("header block", func(t *testing.T) {
		t.Parallel()
		resp := NewString(200, ContentTypeTextPlain, "hi")

		header := resp.Header()
		assert.True(t, strings.HasPrefix(header, "HTTP/1.1 200 OK\r\n"))
		assert.Contains(t, header, "Content-Type: text/plain\r\n")
		assert.Contains(t, header, "Content-Length: 2\r\n")
		assert.True(t, strings.HasSuffix(header, "\r\n\r\n"))
	})

	t.Run("output is header plus body", func(t *testing.T) {
		t.Parallel()
		resp := New(201, ContentTypeApplicationJSON, []byte(`{}`))
		assert.Equal(t, resp.Header()+`{}`, string(resp.Output()))
	})

	t.Run("non-standard status accepted", func(t *testing.T) {
		t.Parallel()
		resp := NewString(799, ContentTypeTextPlain, "")
		assert.Equal(t, 799, resp.StatusCode())
		assert.Contains(t, resp.Header(), "HTTP/1.1 799 Unknown\r\n")
		assert.Contains(t, resp.Header(), "Content-Length: 0\r\n")
	})

	t.Run("head advertises length without body", func(t *testing.T) {
		t.Parallel()
		resp := NewHead(200, ContentTypeTextCSS, 42)
		assert.Empty(t, resp.Body())
		assert.Equal(t, 42, resp.ContentLength())
		assert.Contains(t, resp.Header(), "Content-Length: 42\r\n")
		assert.Equal(t, resp.Header(), string(resp.Output()))
	})

	t.Run("body is not shared", func(t *testing.T) {
		t.Parallel()
		body := []byte("abc")
		resp := New(200, ContentTypeTextPlain, body)
		body[0] = 'z'
		got := resp.Body()
		got[1] = 'z'
		assert.Equal(t, []byte("abc"), resp.Body())
	})
}
