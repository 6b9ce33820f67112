package provider

import (
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/getmockd/vhostd/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(uri string) *message.Request {
	return message.NewRequest(&message.RequestInfo{Method: "GET", URI: uri})
}

func text(code int, body string) *message.Response {
	return message.NewString(code, message.ContentTypeTextPlain, body)
}

func fixed(body string) HandlerFunc {
	return func(*message.Request) *message.Response { return text(200, body) }
}

func TestRouter_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("first match wins", func(t *testing.T) {
		t.Parallel()
		r := NewRouter()
		require.NoError(t, r.AddRoute("/a.*", fixed("first")))
		require.NoError(t, r.AddRoute("/ab", fixed("second")))

		resp := r.Dispatch(newRequest("/ab"))
		assert.Equal(t, "first", string(resp.Body()))
	})

	t.Run("pattern must match the full uri", func(t *testing.T) {
		t.Parallel()
		r := NewRouter()
		require.NoError(t, r.AddRoute("/a", fixed("a")))

		assert.Equal(t, 404, r.Dispatch(newRequest("/ab")).StatusCode())
		assert.Equal(t, 404, r.Dispatch(newRequest("/x/a")).StatusCode())
		assert.Equal(t, 200, r.Dispatch(newRequest("/a")).StatusCode())
	})

	t.Run("alternation stays anchored", func(t *testing.T) {
		t.Parallel()
		r := NewRouter()
		require.NoError(t, r.AddRoute("/x|/y", fixed("xy")))

		assert.Equal(t, 200, r.Dispatch(newRequest("/y")).StatusCode())
		assert.Equal(t, 404, r.Dispatch(newRequest("/yz")).StatusCode())
	})

	t.Run("unmatched uri yields generic 404", func(t *testing.T) {
		t.Parallel()
		r := NewRouter()

		resp := r.Dispatch(newRequest("/nonexistent"))
		assert.Equal(t, 404, resp.StatusCode())
		assert.Equal(t, message.ContentTypeTextPlain, resp.ContentType())
		assert.Contains(t, string(resp.Body()), "/nonexistent")
		assert.Contains(t, string(resp.Body()), "404")
	})

	t.Run("invalid pattern rejected", func(t *testing.T) {
		t.Parallel()
		r := NewRouter()
		assert.Error(t, r.AddRoute("/(", fixed("x")))
		assert.Error(t, r.AddRoute("/ok", nil))
		assert.Empty(t, r.Routes())
	})
}

func TestRouter_ErrorHandlers(t *testing.T) {
	t.Parallel()

	t.Run("custom 404 preferred over generic", func(t *testing.T) {
		t.Parallel()
		r := NewRouter()
		r.HandleErrorFunc(404, func(code int, req *message.Request) *message.Response {
			return text(code, "custom "+req.URI())
		})

		resp := r.Dispatch(newRequest("/missing"))
		assert.Equal(t, 404, resp.StatusCode())
		assert.Equal(t, "custom /missing", string(resp.Body()))

		assert.True(t, r.RemoveErrorHandler(404))
		resp = r.Dispatch(newRequest("/missing"))
		assert.Contains(t, string(resp.Body()), "Not Found")
		assert.False(t, r.RemoveErrorHandler(404))
	})

	t.Run("second handler for a code replaces the first", func(t *testing.T) {
		t.Parallel()
		r := NewRouter()
		r.HandleErrorFunc(500, func(code int, _ *message.Request) *message.Response { return text(code, "one") })
		r.HandleErrorFunc(500, func(code int, _ *message.Request) *message.Response { return text(code, "two") })

		resp := r.DispatchError(500, newRequest("/"))
		assert.Equal(t, "two", string(resp.Body()))

		assert.True(t, r.RemoveErrorHandler(500))
		resp = r.DispatchError(500, newRequest("/"))
		assert.Equal(t, "500 Internal Server Error: /", string(resp.Body()))
	})

	t.Run("generic page for arbitrary codes", func(t *testing.T) {
		t.Parallel()
		resp := NewRouter().DispatchError(418, newRequest("/tea"))
		assert.Equal(t, 418, resp.StatusCode())
		assert.Contains(t, string(resp.Body()), "/tea")
	})
}

func TestRouter_RemoveRoute(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	require.NoError(t, r.AddRoute("/dup", fixed("one")))
	require.NoError(t, r.AddRoute("/other", fixed("other")))
	require.NoError(t, r.AddRoute("/dup", fixed("two")))

	assert.Equal(t, []string{"/dup", "/other", "/dup"}, r.Routes())

	assert.True(t, r.RemoveRoute("/dup"))
	assert.Equal(t, []string{"/other", "/dup"}, r.Routes())
	assert.Equal(t, "two", string(r.Dispatch(newRequest("/dup")).Body()))

	assert.True(t, r.RemoveRoute("/dup"))
	assert.False(t, r.RemoveRoute("/dup"))
	assert.Equal(t, 404, r.Dispatch(newRequest("/dup")).StatusCode())
}

func TestRouter_ConcurrentDispatch(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	require.NoError(t, r.HandleFunc(`/item/(\d+)`, func(req *message.Request) *message.Response {
		return text(200, req.URI())
	}))

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uri := "/item/" + strconv.Itoa(i)
			resp := r.Dispatch(newRequest(uri))
			if got := string(resp.Body()); got != uri {
				errs <- fmt.Errorf("request %s got %s", uri, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestNotConfigured(t *testing.T) {
	t.Parallel()

	resp := NotConfigured(newRequest("/x"))
	assert.Equal(t, 404, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "/x")
}
