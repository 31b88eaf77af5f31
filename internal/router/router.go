// Package router matches inbound (method, path) pairs against a built route
// table. A Router is an immutable snapshot: it is constructed from one table
// and replaced wholesale when the table is rebuilt.
package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/lambdalocal/gateway/internal/observability"
	"github.com/lambdalocal/gateway/internal/provider"
	"github.com/lambdalocal/gateway/internal/route"
	"github.com/lambdalocal/gateway/internal/util"
)

// Route priority bases. Higher priority patterns are tried first: exact
// paths, then parameterized paths with fewer parameters, then greedy
// catch-alls.
const (
	priorityExact  = 1000
	priorityParams = 500
	priorityGreedy = 100
)

// segment is one compiled piece of a path pattern.
type segment struct {
	literal string
	param   string
	greedy  bool
}

// pattern is a compiled path with its per-method route map.
type pattern struct {
	path     string
	segments []segment
	priority int
	methods  map[string]*route.Route
}

// Match is the result of a successful route resolution.
type Match struct {
	Route      *route.Route
	PathParams map[string]string
	// Pattern is the declared path the request matched, e.g. "/users/{id}".
	Pattern string
}

// Router resolves requests against compiled path patterns. The routeKeys map
// is the authoritative "path:method" index; the matcher and the map are
// built together and must never diverge.
type Router struct {
	patterns  []*pattern
	routeKeys map[string]*route.Route
	logger    observability.Logger
}

// New compiles a route table into a router.
func New(table *provider.Table, logger observability.Logger) *Router {
	if logger == nil {
		logger = observability.NopLogger()
	}
	r := &Router{routeKeys: make(map[string]*route.Route), logger: logger}

	byPath := make(map[string]*pattern)
	register := func(path string, methods []string, rt *route.Route, overwrite bool) {
		p, ok := byPath[path]
		if !ok {
			p = compilePattern(path)
			byPath[path] = p
			r.patterns = append(r.patterns, p)
		}
		for _, m := range methods {
			if _, claimed := p.methods[m]; claimed && !overwrite {
				continue
			}
			p.methods[m] = rt
			r.routeKeys[routeKey(path, m)] = rt
		}
	}

	var defaultRoute *route.Route
	for _, rt := range table.Routes {
		if rt.Path == route.DefaultPath || rt.IsDefaultRoute {
			defaultRoute = rt
			continue
		}
		register(rt.Path, rt.Methods, rt, true)
		// A CORS-enabled route must be able to answer preflight even when it
		// does not declare OPTIONS itself. Non-overwriting, so a route that
		// explicitly claims OPTIONS on the same path still wins.
		if rt.Cors != nil {
			register(rt.Path, []string{http.MethodOptions}, rt, false)
		}
	}

	// The reserved catch-all path becomes "/" plus a greedy pattern, for
	// every method not already claimed by a concrete route at "/".
	if defaultRoute != nil {
		methods := route.NormalizeMethods([]string{route.MethodAny})
		register("/", methods, defaultRoute, false)
		register("/{proxy+}", methods, defaultRoute, false)
	}

	sort.SliceStable(r.patterns, func(i, j int) bool {
		return r.patterns[i].priority > r.patterns[j].priority
	})
	return r
}

// Resolve matches a request path and method. A path no pattern recognizes is
// a not-found miss; a recognized path with an unlisted method is a
// method-not-allowed miss. A pattern match whose route key is absent from
// the index is an internal consistency failure and is returned as an opaque
// error.
func (r *Router) Resolve(method, path string) (*Match, error) {
	method = strings.ToUpper(method)
	pathMatched := false

	for _, p := range r.patterns {
		matched, params := p.match(path)
		if !matched {
			continue
		}
		rt, ok := p.methods[method]
		if !ok {
			pathMatched = true
			continue
		}
		indexed, ok := r.routeKeys[routeKey(p.path, method)]
		if !ok || indexed != rt {
			return nil, fmt.Errorf("router and route-key index diverged for %s %s", method, p.path)
		}
		return &Match{Route: rt, PathParams: params, Pattern: p.path}, nil
	}

	if pathMatched {
		return nil, util.ErrMethodNotAllowed
	}
	return nil, util.ErrRouteNotFound
}

// Len returns the number of distinct registered patterns.
func (r *Router) Len() int {
	return len(r.patterns)
}

// compilePattern splits a declared path into matchable segments and assigns
// its priority.
func compilePattern(path string) *pattern {
	p := &pattern{path: path, methods: make(map[string]*route.Route)}

	paramCount := 0
	greedy := false
	for _, part := range splitPath(path) {
		switch {
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "+}"):
			p.segments = append(p.segments, segment{param: part[1 : len(part)-2], greedy: true})
			greedy = true
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			p.segments = append(p.segments, segment{param: part[1 : len(part)-1]})
			paramCount++
		default:
			p.segments = append(p.segments, segment{literal: part})
		}
	}

	switch {
	case greedy:
		p.priority = priorityGreedy
	case paramCount > 0:
		p.priority = priorityParams + len(p.segments) - paramCount
	default:
		p.priority = priorityExact + len(p.segments)
	}
	return p
}

// match checks one request path against the pattern and extracts its path
// parameters.
func (p *pattern) match(path string) (bool, map[string]string) {
	parts := splitPath(path)
	var params map[string]string
	setParam := func(name, value string) {
		if params == nil {
			params = make(map[string]string)
		}
		params[name] = value
	}

	i := 0
	for _, seg := range p.segments {
		if seg.greedy {
			if i >= len(parts) {
				return false, nil
			}
			setParam(seg.param, strings.Join(parts[i:], "/"))
			return true, params
		}
		if i >= len(parts) {
			return false, nil
		}
		if seg.param != "" {
			setParam(seg.param, parts[i])
		} else if seg.literal != parts[i] {
			return false, nil
		}
		i++
	}
	if i != len(parts) {
		return false, nil
	}
	return true, params
}

// splitPath splits a path into its non-empty segments. "/" yields an empty
// slice, so the root pattern matches only the root path.
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// routeKey builds the "path:method" index key.
func routeKey(path, method string) string {
	return path + ":" + method
}
