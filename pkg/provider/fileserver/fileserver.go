// Package fileserver provides a data provider that serves files below a root
// directory. Explicit routes registered on its Router are consulted first.
package fileserver

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/getmockd/vhostd/pkg/message"
	"github.com/getmockd/vhostd/pkg/provider"
)

// DefaultIndexNames are tried, in order, for directory requests.
var DefaultIndexNames = []string{"index.htm", "default.htm", "index.html", "default.html"}

var contentTypes = map[string]string{
	".html": message.ContentTypeTextHTML,
	".htm":  message.ContentTypeTextHTML,
	".css":  message.ContentTypeTextCSS,
	".txt":  message.ContentTypeTextPlain,
	".jpg":  message.ContentTypeImageJPEG,
	".jpeg": message.ContentTypeImageJPEG,
	".gif":  message.ContentTypeImageGIF,
	".png":  message.ContentTypeImagePNG,
	".json": message.ContentTypeApplicationJSON,
}

// ContentTypeFor infers a content type from the file extension.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return message.ContentTypeOctetStream
}

// Option configures a Provider.
type Option func(*Provider)

// WithIndexNames replaces the index file names tried for directory requests.
func WithIndexNames(names ...string) Option {
	return func(p *Provider) {
		p.indexNames = append([]string(nil), names...)
	}
}

// WithDeny refuses (403) any path relative to the root that matches one of
// the doublestar patterns, e.g. "**/.*".
func WithDeny(patterns ...string) Option {
	return func(p *Provider) {
		p.deny = append(p.deny, patterns...)
	}
}

// WithRouter sets the router consulted before the filesystem.
func WithRouter(r *provider.Router) Option {
	return func(p *Provider) {
		if r != nil {
			p.Router = r
		}
	}
}

var _ provider.Provider = (*Provider)(nil)

// Provider serves files from Root.
type Provider struct {
	*provider.Router

	root       string
	indexNames []string
	deny       []string
}

// New returns a Provider rooted at root.
func New(root string, opts ...Option) *Provider {
	p := &Provider{
		Router:     provider.NewRouter(),
		root:       root,
		indexNames: DefaultIndexNames,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Root returns the directory files are served from.
func (p *Provider) Root() string { return p.root }

// IndexNames returns the index file names in lookup order.
func (p *Provider) IndexNames() []string {
	return append([]string(nil), p.indexNames...)
}

// ValidatePatterns reports the first malformed deny pattern.
func (p *Provider) ValidatePatterns() error {
	for _, pattern := range p.deny {
		if !doublestar.ValidatePattern(pattern) {
			return errors.New("invalid deny pattern: " + pattern)
		}
	}
	return nil
}

// Dispatch consults explicit routes, then the filesystem, then answers 404.
func (p *Provider) Dispatch(req *message.Request) *message.Response {
	if h, ok := p.Lookup(req.URI()); ok {
		return h.Serve(req)
	}

	switch req.Method() {
	case message.MethodGET, message.MethodHEAD:
	default:
		return p.DispatchError(405, req)
	}

	rel := strings.TrimPrefix(path.Clean("/"+req.URI()), "/")
	if p.denied(rel) {
		return p.DispatchError(403, req)
	}

	name, ok := p.resolve(filepath.Join(p.root, filepath.FromSlash(rel)))
	if !ok {
		return p.DispatchError(404, req)
	}

	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return p.DispatchError(403, req)
		}
		return p.DispatchError(404, req)
	}

	if req.Method() == message.MethodHEAD {
		return message.NewHead(200, ContentTypeFor(name), len(data))
	}
	return message.New(200, ContentTypeFor(name), data)
}

// resolve maps a filesystem path to a regular file, trying index names for
// directories.
func (p *Provider) resolve(name string) (string, bool) {
	info, err := os.Stat(name)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return name, true
	}

	for _, index := range p.indexNames {
		candidate := filepath.Join(name, index)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func (p *Provider) denied(rel string) bool {
	for _, pattern := range p.deny {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
