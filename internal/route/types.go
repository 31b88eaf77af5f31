// Package route defines the value types shared by the template providers,
// the gateway router, and the event translator: routes, authorizers, and
// CORS settings.
package route

import (
	"sort"
	"strings"
)

// EventKind distinguishes the two gateway API flavors a route can belong to.
type EventKind string

// Supported event kinds.
const (
	// KindRest is a REST API route ("Api" function events, RestApi resources).
	KindRest EventKind = "Api"

	// KindHTTP is an HTTP API route ("HttpApi" function events, ApiGatewayV2
	// resources).
	KindHTTP EventKind = "HttpApi"
)

// Payload format versions for invocation events.
const (
	PayloadV1 = "1.0"
	PayloadV2 = "2.0"
)

// MethodAny is the pseudo-method that expands to all supported methods.
const MethodAny = "ANY"

// DefaultPath is the reserved catch-all path token of HTTP APIs.
const DefaultPath = "$default"

// anyExpansion is the fixed ordered set MethodAny expands to.
var anyExpansion = []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS", "PATCH"}

// Route binds a (path, methods) pair to a target function plus metadata.
// Identity for deduplication is (path, method, function name) only; all
// other fields are metadata.
type Route struct {
	Path                 string
	Methods              []string
	FunctionName         string
	EventKind            EventKind
	PayloadFormatVersion string
	Cors                 *Cors
	BinaryMediaTypes     []string
	AuthorizerName       string
	UseDefaultAuthorizer bool
	APIID                string
	StageName            string
	StageVariables       map[string]string
	OperationName        string
	IsDefaultRoute       bool
}

// NewRoute creates a route with its methods normalized.
func NewRoute(path string, methods []string, functionName string, kind EventKind) *Route {
	return &Route{
		Path:         path,
		Methods:      NormalizeMethods(methods),
		FunctionName: functionName,
		EventKind:    kind,
	}
}

// NormalizeMethods upper-cases methods and expands "ANY" into the fixed
// seven-method set. The result preserves declaration order and drops
// duplicates.
func NormalizeMethods(methods []string) []string {
	out := make([]string, 0, len(methods))
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		upper := strings.ToUpper(strings.TrimSpace(m))
		expansion := []string{upper}
		if upper == MethodAny {
			expansion = anyExpansion
		}
		for _, e := range expansion {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Key is the dedup identity of one (path, method) entry in the route table.
type Key struct {
	Path   string
	Method string
}

// Keys returns the identity keys for every normalized method of the route.
func (r *Route) Keys() []Key {
	keys := make([]Key, 0, len(r.Methods))
	for _, m := range r.Methods {
		keys = append(keys, Key{Path: r.Path, Method: m})
	}
	return keys
}

// IdentityEquals compares only the identity fields (path, methods, function
// name) of two routes. Used for deduplication decisions.
func (r *Route) IdentityEquals(other *Route) bool {
	if other == nil {
		return false
	}
	if r.Path != other.Path || r.FunctionName != other.FunctionName {
		return false
	}
	if len(r.Methods) != len(other.Methods) {
		return false
	}
	a := append([]string(nil), r.Methods...)
	b := append([]string(nil), other.Methods...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PayloadVersion returns the effective payload format version of the route:
// an explicit pin wins, otherwise REST routes use 1.0 and HTTP routes 2.0.
func (r *Route) PayloadVersion() string {
	if r.PayloadFormatVersion != "" {
		return r.PayloadFormatVersion
	}
	if r.EventKind == KindHTTP {
		return PayloadV2
	}
	return PayloadV1
}

// AuthorizerKind distinguishes the supported Lambda authorizer flavors.
type AuthorizerKind string

// Supported authorizer kinds. JWT and other types are skipped at parse time.
const (
	AuthorizerToken   AuthorizerKind = "TOKEN"
	AuthorizerRequest AuthorizerKind = "REQUEST"
)

// Authorizer describes a Lambda authorizer extracted from a document. It is
// metadata only; the emulator never executes authorizers.
type Authorizer struct {
	Name              string
	Kind              AuthorizerKind
	PayloadVersion    string
	FunctionName      string
	IdentitySources   []string
	ValidationPattern string
	SimpleResponses   bool
}

// Cors carries the CORS settings of an owning API.
type Cors struct {
	AllowOrigin  string
	AllowMethods string
	AllowHeaders string
	MaxAge       string
}

// Headers renders the CORS settings as response headers, omitting unset ones.
func (c *Cors) Headers() map[string]string {
	if c == nil {
		return nil
	}
	headers := make(map[string]string, 4)
	if c.AllowOrigin != "" {
		headers["Access-Control-Allow-Origin"] = c.AllowOrigin
	}
	if c.AllowMethods != "" {
		headers["Access-Control-Allow-Methods"] = c.AllowMethods
	}
	if c.AllowHeaders != "" {
		headers["Access-Control-Allow-Headers"] = c.AllowHeaders
	}
	if c.MaxAge != "" {
		headers["Access-Control-Max-Age"] = c.MaxAge
	}
	return headers
}

// NormalizeCorsMethods joins the allow-methods list, always including
// OPTIONS, preserving the declared order otherwise.
func NormalizeCorsMethods(methods []string) string {
	normalized := NormalizeMethods(methods)
	hasOptions := false
	for _, m := range normalized {
		if m == "OPTIONS" {
			hasOptions = true
			break
		}
	}
	if !hasOptions {
		normalized = append(normalized, "OPTIONS")
	}
	return strings.Join(normalized, ",")
}

// AllMethodsWithOptions is the allow-methods value used when CORS is
// declared as a bare origin string.
func AllMethodsWithOptions() string {
	return strings.Join(anyExpansion, ",")
}
