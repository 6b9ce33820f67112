// Package canned builds a data provider from declarative route definitions,
// typically loaded from a configuration file.
//
// Each route pairs a URI pattern with an ordered list of cases. A case may
// carry a "when" condition written in expr-lang; the first case whose
// condition is empty or true answers the request.
//
//	routes:
//	  - pattern: /health
//	    cases:
//	      - status: 200
//	        contentType: application/json
//	        body: '{"ok":true}'
//	  - pattern: /api/.*
//	    cases:
//	      - when: method == "DELETE"
//	        status: 405
//	      - status: 200
//	        body: ok
package canned

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/getmockd/vhostd/pkg/message"
	"github.com/getmockd/vhostd/pkg/provider"
)

// ErrNoCases is returned for a route without any case.
var ErrNoCases = errors.New("route has no cases")

// Route is a declarative route definition.
type Route struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Cases   []Case `json:"cases" yaml:"cases"`
}

// Case is one candidate answer for a route.
type Case struct {
	When        string `json:"when,omitempty" yaml:"when,omitempty"`
	Status      int    `json:"status,omitempty" yaml:"status,omitempty"`
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Body        string `json:"body,omitempty" yaml:"body,omitempty"`
	BodyFile    string `json:"bodyFile,omitempty" yaml:"bodyFile,omitempty"`
}

// Page is a declarative error page.
type Page struct {
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Body        string `json:"body,omitempty" yaml:"body,omitempty"`
	BodyFile    string `json:"bodyFile,omitempty" yaml:"bodyFile,omitempty"`
}

// Apply registers routes and error pages on r. Relative body files are
// resolved against baseDir.
func Apply(r *provider.Router, baseDir string, routes []Route, pages map[int]Page) error {
	for _, rt := range routes {
		h, err := compileRoute(r, baseDir, rt)
		if err != nil {
			return fmt.Errorf("route %q: %w", rt.Pattern, err)
		}
		if err := r.AddRoute(rt.Pattern, h); err != nil {
			return err
		}
	}

	for code, page := range pages {
		body, err := loadBody(baseDir, page.Body, page.BodyFile)
		if err != nil {
			return fmt.Errorf("error page %d: %w", code, err)
		}
		ct := contentTypeOr(page.ContentType)
		r.HandleErrorFunc(code, func(code int, _ *message.Request) *message.Response {
			return message.New(code, ct, body)
		})
	}

	return nil
}

// New returns a Router holding routes and pages.
func New(baseDir string, routes []Route, pages map[int]Page) (*provider.Router, error) {
	r := provider.NewRouter()
	if err := Apply(r, baseDir, routes, pages); err != nil {
		return nil, err
	}
	return r, nil
}

type compiledCase struct {
	cond        *vm.Program
	status      int
	contentType string
	body        []byte
}

func compileRoute(r *provider.Router, baseDir string, rt Route) (provider.Handler, error) {
	if len(rt.Cases) == 0 {
		return nil, ErrNoCases
	}

	cases := make([]compiledCase, 0, len(rt.Cases))
	for i, c := range rt.Cases {
		cc := compiledCase{
			status:      c.Status,
			contentType: contentTypeOr(c.ContentType),
		}
		if cc.status == 0 {
			cc.status = 200
		}

		if c.When != "" {
			program, err := expr.Compile(c.When, expr.Env(sampleEnv()), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("case %d: compile %q: %w", i, c.When, err)
			}
			cc.cond = program
		}

		body, err := loadBody(baseDir, c.Body, c.BodyFile)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
		cc.body = body
		cases = append(cases, cc)
	}

	return provider.HandlerFunc(func(req *message.Request) *message.Response {
		env := requestEnv(req)
		for _, c := range cases {
			if c.cond != nil {
				ok, err := expr.Run(c.cond, env)
				if err != nil || ok != true {
					continue
				}
			}
			return message.New(c.status, c.contentType, c.body)
		}
		return r.DispatchError(404, req)
	}), nil
}

func sampleEnv() map[string]any {
	return map[string]any{
		"method":   "",
		"uri":      "",
		"query":    "",
		"host":     "",
		"port":     0,
		"remoteIp": "",
		"headers":  map[string]string{},
		"body":     "",
	}
}

func requestEnv(req *message.Request) map[string]any {
	return map[string]any{
		"method":   req.MethodName(),
		"uri":      req.URI(),
		"query":    req.QueryString(),
		"host":     req.HostDomain(),
		"port":     req.HostPort(),
		"remoteIp": req.RemoteIP(),
		"headers":  req.Headers(),
		"body":     string(req.Body()),
	}
}

func loadBody(baseDir, body, bodyFile string) ([]byte, error) {
	if bodyFile == "" {
		return []byte(body), nil
	}
	if !filepath.IsAbs(bodyFile) {
		bodyFile = filepath.Join(baseDir, bodyFile)
	}
	data, err := os.ReadFile(bodyFile)
	if err != nil {
		return nil, fmt.Errorf("read body file: %w", err)
	}
	return data, nil
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return message.ContentTypeTextPlain
	}
	return ct
}
