package provider

import (
	"fmt"

	"github.com/getmockd/vhostd/pkg/message"
)

// Provider produces a response for every request. Implementations never fail:
// misses are answered with an error page.
type Provider interface {
	Dispatch(req *message.Request) *message.Response
	DispatchError(code int, req *message.Request) *message.Response
}

// Handler answers requests for a matched route.
type Handler interface {
	Serve(req *message.Request) *message.Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *message.Request) *message.Response

// Serve calls f(req).
func (f HandlerFunc) Serve(req *message.Request) *message.Response { return f(req) }

// ErrorHandler answers requests that resolved to an HTTP error code.
type ErrorHandler interface {
	ServeError(code int, req *message.Request) *message.Response
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(code int, req *message.Request) *message.Response

// ServeError calls f(code, req).
func (f ErrorHandlerFunc) ServeError(code int, req *message.Request) *message.Response {
	return f(code, req)
}

// GenericError is the fallback page for an error code: plain text naming the
// code and the requested URI.
func GenericError(code int, req *message.Request) *message.Response {
	uri := ""
	if req != nil {
		uri = req.URI()
	}
	return message.NewString(code, message.ContentTypeTextPlain,
		fmt.Sprintf("%d %s: %s", code, message.ReasonPhrase(code), uri))
}

// NotConfigured answers requests for which no provider could be resolved.
func NotConfigured(req *message.Request) *message.Response {
	uri := ""
	if req != nil {
		uri = req.URI()
	}
	return message.NewString(404, message.ContentTypeTextPlain,
		fmt.Sprintf("404 Not Found: no data provider configured for %s", uri))
}
