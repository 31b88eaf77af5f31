// Package provider turns a normalized template into the gateway's route
// table. Resource extractors pull route fragments out of each resource kind
// into a collector; the builder then merges the fragments into one
// deduplicated, precedence-resolved table.
package provider

import (
	"sort"
	"strings"

	"github.com/lambdalocal/gateway/internal/observability"
	"github.com/lambdalocal/gateway/internal/route"
)

// apiFragments accumulates everything gathered for one owning API id.
type apiFragments struct {
	routes           []*route.Route
	binaryMediaTypes map[string]bool
	cors             *route.Cors
	stageName        string
	stageVariables   map[string]string
	authorizers      map[string]*route.Authorizer
	defaultAuth      string
}

// Collector accumulates route fragments keyed by owning API id during a
// single build pass. It is not safe for concurrent use and is discarded once
// the table is built.
type Collector struct {
	order  []string
	apis   map[string]*apiFragments
	logger observability.Logger
}

// NewCollector creates an empty collector.
func NewCollector(logger observability.Logger) *Collector {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Collector{apis: make(map[string]*apiFragments), logger: logger}
}

// fragments returns (creating if needed) the accumulator for an API id,
// preserving first-seen order for deterministic iteration.
func (c *Collector) fragments(apiID string) *apiFragments {
	f, ok := c.apis[apiID]
	if !ok {
		f = &apiFragments{
			binaryMediaTypes: make(map[string]bool),
			authorizers:      make(map[string]*route.Authorizer),
		}
		c.apis[apiID] = f
		c.order = append(c.order, apiID)
	}
	return f
}

// AddRoutes appends routes to an API's fragment list.
func (c *Collector) AddRoutes(apiID string, routes []*route.Route) {
	if len(routes) == 0 {
		return
	}
	f := c.fragments(apiID)
	f.routes = append(f.routes, routes...)
}

// AddBinaryMediaTypes unions binary media type declarations into an API's
// set. Values use the document form, where an escaped slash ("~1") stands
// for "/". Non-string entries, such as unresolved placeholder mappings, are
// skipped with a warning.
func (c *Collector) AddBinaryMediaTypes(apiID string, values []any) {
	if len(values) == 0 {
		return
	}
	f := c.fragments(apiID)
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			c.logger.Warn("skipping unresolved binary media type value",
				observability.String("api", apiID),
				observability.Any("value", v))
			continue
		}
		decoded := strings.ReplaceAll(s, "~1", "/")
		f.binaryMediaTypes[decoded] = true
	}
}

// AddCors records the CORS settings for an API. Last write wins.
func (c *Collector) AddCors(apiID string, cors *route.Cors) {
	if cors == nil {
		return
	}
	c.fragments(apiID).cors = cors
}

// AddStageName records the stage name for an API. Last write wins.
func (c *Collector) AddStageName(apiID, stageName string) {
	if stageName == "" {
		return
	}
	c.fragments(apiID).stageName = stageName
}

// AddStageVariables records the stage variables for an API. Last write wins.
func (c *Collector) AddStageVariables(apiID string, variables map[string]string) {
	if len(variables) == 0 {
		return
	}
	c.fragments(apiID).stageVariables = variables
}

// AddAuthorizers records the authorizers extracted from an API's document.
func (c *Collector) AddAuthorizers(apiID string, authorizers map[string]*route.Authorizer) {
	f := c.fragments(apiID)
	for name, a := range authorizers {
		f.authorizers[name] = a
	}
}

// SetDefaultAuthorizer records the document-level default authorizer name.
func (c *Collector) SetDefaultAuthorizer(apiID, name string) {
	if name == "" {
		return
	}
	c.fragments(apiID).defaultAuth = name
}

// Entry is one (owning API id, fragments) pair exposed to the builder.
type Entry struct {
	APIID            string
	Routes           []*route.Route
	BinaryMediaTypes []string
	Cors             *route.Cors
	StageName        string
	StageVariables   map[string]string
	Authorizers      map[string]*route.Authorizer
	DefaultAuth      string
}

// Entries returns the collected fragments in first-seen API order, with each
// API's binary media type set sorted.
func (c *Collector) Entries() []Entry {
	entries := make([]Entry, 0, len(c.order))
	for _, apiID := range c.order {
		f := c.apis[apiID]
		types := make([]string, 0, len(f.binaryMediaTypes))
		for t := range f.binaryMediaTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		entries = append(entries, Entry{
			APIID:            apiID,
			Routes:           f.routes,
			BinaryMediaTypes: types,
			Cors:             f.cors,
			StageName:        f.stageName,
			StageVariables:   f.stageVariables,
			Authorizers:      f.authorizers,
			DefaultAuth:      f.defaultAuth,
		})
	}
	return entries
}
