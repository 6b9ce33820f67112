package provider

import (
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/getmockd/vhostd/pkg/message"
)

type route struct {
	pattern string
	re      *regexp.Regexp
	handler Handler
}

type errorRoute struct {
	code    int
	handler ErrorHandler
}

var _ Provider = (*Router)(nil)

// Router is the base data provider. Registration and dispatch may run
// concurrently.
type Router struct {
	mu     sync.RWMutex
	routes []route
	errors []errorRoute
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// AddRoute appends a route. The pattern must match the entire URI, so "/a.*"
// matches "/ab" but "/a" does not. Duplicate patterns are kept; only the
// earliest one is ever reached.
func (r *Router) AddRoute(pattern string, h Handler) error {
	if h == nil {
		return fmt.Errorf("route %q: nil handler", pattern)
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return fmt.Errorf("route %q: %w", pattern, err)
	}

	r.mu.Lock()
	r.routes = append(r.routes, route{pattern: pattern, re: re, handler: h})
	r.mu.Unlock()
	return nil
}

// HandleFunc registers fn for pattern.
func (r *Router) HandleFunc(pattern string, fn func(*message.Request) *message.Response) error {
	return r.AddRoute(pattern, HandlerFunc(fn))
}

// RemoveRoute removes the first route registered with exactly this pattern.
// It reports whether a route was removed.
func (r *Router) RemoveRoute(pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.routes, func(rt route) bool { return rt.pattern == pattern })
	if i < 0 {
		return false
	}
	r.routes = slices.Delete(r.routes, i, i+1)
	return true
}

// Routes returns the registered patterns in priority order.
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patterns := make([]string, len(r.routes))
	for i, rt := range r.routes {
		patterns[i] = rt.pattern
	}
	return patterns
}

// AddErrorHandler registers h for code, replacing any previous handler for
// the same code in place.
func (r *Router) AddErrorHandler(code int, h ErrorHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.errors {
		if r.errors[i].code == code {
			r.errors[i].handler = h
			return
		}
	}
	r.errors = append(r.errors, errorRoute{code: code, handler: h})
}

// HandleErrorFunc registers fn for code.
func (r *Router) HandleErrorFunc(code int, fn func(int, *message.Request) *message.Response) {
	r.AddErrorHandler(code, ErrorHandlerFunc(fn))
}

// RemoveErrorHandler removes the handler for code.
func (r *Router) RemoveErrorHandler(code int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.errors, func(er errorRoute) bool { return er.code == code })
	if i < 0 {
		return false
	}
	r.errors = slices.Delete(r.errors, i, i+1)
	return true
}

// Lookup returns the handler of the first route matching uri.
func (r *Router) Lookup(uri string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if rt.re.MatchString(uri) {
			return rt.handler, true
		}
	}
	return nil, false
}

// Dispatch answers req with the first matching route, or a 404 error page.
func (r *Router) Dispatch(req *message.Request) *message.Response {
	if h, ok := r.Lookup(req.URI()); ok {
		return h.Serve(req)
	}
	return r.DispatchError(404, req)
}

// DispatchError answers req with the handler registered for code, or with
// GenericError when none is.
func (r *Router) DispatchError(code int, req *message.Request) *message.Response {
	r.mu.RLock()
	var h ErrorHandler
	for _, er := range r.errors {
		if er.code == code {
			h = er.handler
			break
		}
	}
	r.mu.RUnlock()

	if h == nil {
		return GenericError(code, req)
	}
	return h.ServeError(code, req)
}
