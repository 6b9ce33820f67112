// Package provider implements data providers: ordered route rules and error
// rules that turn a request into a response.
//
// A Router holds two ordered lists. Route rules pair a regular expression,
// matched against the whole request URI, with a Handler. Error rules pair a
// status code with an ErrorHandler. The first matching route wins; a miss is
// answered through DispatchError(404), and an error code without a registered
// handler gets a generic plain-text page.
//
// Concrete providers (see the fileserver and canned subpackages) wrap a Router
// and add their own lookup between route matching and the 404 fallback.
package provider
