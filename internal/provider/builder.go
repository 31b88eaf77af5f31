package provider

import (
	"sort"

	"github.com/lambdalocal/gateway/internal/observability"
	"github.com/lambdalocal/gateway/internal/route"
	"github.com/lambdalocal/gateway/internal/template"
)

// Table is the built route table: an immutable snapshot handed to the
// router. It is rebuilt wholesale on every template load and swapped
// atomically, so concurrent readers never observe a partial table.
type Table struct {
	Routes      []*route.Route
	Authorizers map[string]map[string]*route.Authorizer
}

// Builder merges collected route fragments into one deduplicated,
// precedence-resolved route table. Configuration is passed in explicitly;
// the builder holds no process-wide state.
type Builder struct {
	registry                Registry
	logger                  observability.Logger
	defaultBinaryMediaTypes []string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDefaultBinaryMediaTypes sets the template-wide binary media types that
// true implicit routes (no RestApiId reference) fall back to.
func WithDefaultBinaryMediaTypes(types []string) BuilderOption {
	return func(b *Builder) {
		b.defaultBinaryMediaTypes = types
	}
}

// WithRegistry overrides the extractor registry.
func WithRegistry(registry Registry) BuilderOption {
	return func(b *Builder) {
		b.registry = registry
	}
}

// NewBuilder creates a Builder with the default extractor registry.
func NewBuilder(reader DocumentReader, logger observability.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = observability.NopLogger()
	}
	b := &Builder{
		registry: NewRegistry(reader, logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs every registered extractor over the template's resources in
// declaration order and merges the collected fragments. Any extractor error
// is fatal: no partial table is returned.
func (b *Builder) Build(tmpl *template.Template, cwd string) (*Table, error) {
	collector := NewCollector(b.logger)

	for _, resource := range tmpl.Resources {
		extractor, ok := b.registry[resource.Type]
		if !ok {
			continue
		}
		if err := extractor.Extract(resource.LogicalID, resource.Properties, collector, cwd); err != nil {
			return nil, err
		}
	}

	return b.merge(collector.Entries()), nil
}

// merge resolves the collected fragments into the final route set.
//
// Explicit fragments are written first and implicit fragments second into a
// map keyed by (path, normalized method), so on conflict the implicit
// declaration always wins, including an implicit ANY masking several
// explicit single-method routes on the same path. Within one partition,
// collection order decides: the last declared route wins.
func (b *Builder) merge(entries []Entry) *Table {
	var explicit, implicit []Entry
	for _, entry := range entries {
		if isImplicitAPI(entry.APIID) {
			implicit = append(implicit, entry)
		} else {
			explicit = append(explicit, entry)
		}
	}

	byKey := make(map[route.Key]*route.Route)
	order := make([]route.Key, 0)
	write := func(r *route.Route) {
		for _, key := range r.Keys() {
			if _, seen := byKey[key]; !seen {
				order = append(order, key)
			}
			byKey[key] = r
		}
	}

	authorizers := make(map[string]map[string]*route.Authorizer)
	for _, entry := range explicit {
		if len(entry.Authorizers) > 0 {
			authorizers[entry.APIID] = entry.Authorizers
		}
		for _, r := range entry.Routes {
			write(b.finalizeRoute(r, entry, entry.BinaryMediaTypes))
		}
	}
	for _, entry := range implicit {
		for _, r := range entry.Routes {
			write(b.finalizeRoute(r, entry, b.defaultBinaryMediaTypes))
		}
	}

	return &Table{
		Routes:      dedupeRoutes(byKey, order),
		Authorizers: authorizers,
	}
}

// finalizeRoute attaches the owning API's metadata to one route fragment
// without mutating the collected fragment.
func (b *Builder) finalizeRoute(r *route.Route, entry Entry, binaryTypes []string) *route.Route {
	final := *r
	final.Methods = append([]string(nil), r.Methods...)
	final.BinaryMediaTypes = append([]string(nil), binaryTypes...)
	if entry.Cors != nil {
		final.Cors = entry.Cors
	}
	if entry.StageName != "" {
		final.StageName = entry.StageName
	}
	if len(entry.StageVariables) > 0 {
		final.StageVariables = entry.StageVariables
	}
	if final.AuthorizerName == "" && final.UseDefaultAuthorizer {
		final.AuthorizerName = entry.DefaultAuth
	}
	return &final
}

// dedupeRoutes collapses the per-method map back into routes, re-merging
// methods that resolved to the same route value at the same path.
func dedupeRoutes(byKey map[route.Key]*route.Route, order []route.Key) []*route.Route {
	type groupKey struct {
		path     string
		function string
	}
	grouped := make(map[groupKey]*route.Route)
	var out []*route.Route
	for _, key := range order {
		r := byKey[key]
		gk := groupKey{path: key.Path, function: r.FunctionName}
		existing, ok := grouped[gk]
		if !ok {
			merged := *r
			merged.Methods = []string{key.Method}
			grouped[gk] = &merged
			out = append(out, &merged)
			continue
		}
		existing.Methods = append(existing.Methods, key.Method)
	}
	for _, r := range out {
		sort.Strings(r.Methods)
	}
	return out
}

// isImplicitAPI reports whether an owning API id is one of the reserved
// implicit identifiers.
func isImplicitAPI(apiID string) bool {
	return apiID == ImplicitRestAPIID || apiID == ImplicitHTTPAPIID
}
