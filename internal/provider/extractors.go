package provider

import (
	"strconv"
	"strings"

	"github.com/lambdalocal/gateway/internal/observability"
	"github.com/lambdalocal/gateway/internal/openapi"
	"github.com/lambdalocal/gateway/internal/route"
	"github.com/lambdalocal/gateway/internal/template"
	"github.com/lambdalocal/gateway/internal/util"
)

// Reserved implicit API ids. Function events that do not target a declared
// API are hosted by one auto-created gateway per event kind.
const (
	ImplicitRestAPIID = "ServerlessRestApi"
	ImplicitHTTPAPIID = "ServerlessHttpApi"
)

// Resource type strings the registry dispatches on.
const (
	resourceServerlessFunction = "AWS::Serverless::Function"
	resourceServerlessAPI      = "AWS::Serverless::Api"
	resourceServerlessHTTPAPI  = "AWS::Serverless::HttpApi"
	resourceRestAPI            = "AWS::ApiGateway::RestApi"
	resourceHTTPAPI            = "AWS::ApiGatewayV2::Api"
)

// Extractor pulls route fragments out of one template resource into the
// collector. Implementations must not mutate the resource properties.
type Extractor interface {
	Extract(logicalID string, properties map[string]any, collector *Collector, cwd string) error
}

// Registry maps resource type strings to their extractor.
type Registry map[string]Extractor

// NewRegistry builds the extractor registry for all supported resource
// kinds.
func NewRegistry(reader DocumentReader, logger observability.Logger) Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return Registry{
		resourceServerlessFunction: &FunctionEventsExtractor{logger: logger},
		resourceServerlessAPI: &DeclaredAPIExtractor{
			kind: route.KindRest, reader: reader, logger: logger,
		},
		resourceServerlessHTTPAPI: &DeclaredAPIExtractor{
			kind: route.KindHTTP, reader: reader, logger: logger,
		},
		resourceRestAPI: &RawAPIExtractor{
			kind: route.KindRest, bodyKey: "Body", locationKey: "BodyS3Location",
			reader: reader, logger: logger,
		},
		resourceHTTPAPI: &RawAPIExtractor{
			kind: route.KindHTTP, bodyKey: "Body", locationKey: "BodyS3Location",
			reader: reader, logger: logger,
		},
	}
}

// FunctionEventsExtractor reads a function resource's event map and collects
// one route fragment per Api/HttpApi event.
type FunctionEventsExtractor struct {
	logger observability.Logger
}

// Extract implements Extractor.
func (e *FunctionEventsExtractor) Extract(logicalID string, properties map[string]any, collector *Collector, _ string) error {
	events, ok := template.MapProp(properties, "Events")
	if !ok {
		return nil
	}

	for eventID, rawEvent := range events {
		event, isMap := rawEvent.(map[string]any)
		if !isMap {
			continue
		}
		eventType, _ := template.StringProp(event, "Type")
		var kind route.EventKind
		switch eventType {
		case string(route.KindRest):
			kind = route.KindRest
		case string(route.KindHTTP):
			kind = route.KindHTTP
		default:
			continue
		}

		eventProps, _ := template.MapProp(event, "Properties")
		r, apiID, err := e.routeFromEvent(logicalID, eventID, kind, eventProps)
		if err != nil {
			return err
		}
		collector.AddRoutes(apiID, []*route.Route{r})
	}
	return nil
}

// routeFromEvent builds one route fragment from an Api/HttpApi event body.
func (e *FunctionEventsExtractor) routeFromEvent(functionID, eventID string, kind route.EventKind, props map[string]any) (*route.Route, string, error) {
	path, _ := template.StringProp(props, "Path")
	method, _ := template.StringProp(props, "Method")

	// An HttpApi event with no path catches everything on the API.
	isDefault := false
	if kind == route.KindHTTP && path == "" {
		path = route.DefaultPath
		method = route.MethodAny
		isDefault = true
	}
	if path == "" || method == "" {
		return nil, "", util.NewInvalidDocumentError(functionID,
			"event "+eventID+" must declare both Path and Method")
	}

	apiID, err := e.resolveAPIID(functionID, kind, props)
	if err != nil {
		return nil, "", err
	}

	r := route.NewRoute(path, []string{method}, functionID, kind)
	r.APIID = apiID
	r.IsDefaultRoute = isDefault
	r.PayloadFormatVersion, _ = template.StringProp(props, "PayloadFormatVersion")
	if auth, ok := template.MapProp(props, "Auth"); ok {
		r.AuthorizerName, _ = template.StringProp(auth, "Authorizer")
	}
	return r, apiID, nil
}

// resolveAPIID resolves an event's owning API from a literal string or a
// single-key Ref mapping. Any other shape is a fatal template error. Events
// that name no API belong to the reserved implicit API of their kind.
func (e *FunctionEventsExtractor) resolveAPIID(functionID string, kind route.EventKind, props map[string]any) (string, error) {
	key := "RestApiId"
	implicit := ImplicitRestAPIID
	if kind == route.KindHTTP {
		key = "ApiId"
		implicit = ImplicitHTTPAPIID
	}

	raw, ok := props[key]
	if !ok {
		return implicit, nil
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case map[string]any:
		if ref, isString := v["Ref"].(string); isString && len(v) == 1 {
			return ref, nil
		}
	}
	return "", util.NewInvalidDocumentError(functionID, key+" must be a string or a Ref to an API resource")
}

// DeclaredAPIExtractor reads a declared serverless API resource: an inline
// definition body or an external definition URI, plus stage and CORS
// settings carried directly on the resource.
type DeclaredAPIExtractor struct {
	kind   route.EventKind
	reader DocumentReader
	logger observability.Logger
}

// Extract implements Extractor.
func (e *DeclaredAPIExtractor) Extract(logicalID string, properties map[string]any, collector *Collector, cwd string) error {
	doc, err := resolveBody(properties, "DefinitionBody", "DefinitionUri", e.reader, cwd)
	if err != nil {
		return err
	}
	if doc == nil {
		e.logger.Info("API resource has no definition body or uri, skipping",
			observability.String("api", logicalID))
	} else if err := collectDocument(doc, logicalID, e.kind, collector, e.logger); err != nil {
		return err
	}

	collector.AddBinaryMediaTypes(logicalID, binaryTypeValues(properties))
	if stageName, ok := template.StringProp(properties, "StageName"); ok {
		collector.AddStageName(logicalID, stageName)
	}
	if variables, ok := template.StringMapProp(properties, "Variables"); ok {
		collector.AddStageVariables(logicalID, variables)
	} else if variables, ok := template.StringMapProp(properties, "StageVariables"); ok {
		collector.AddStageVariables(logicalID, variables)
	}
	if cors := e.resolveCors(properties); cors != nil {
		collector.AddCors(logicalID, cors)
	}
	return nil
}

// resolveCors reads the resource-level CORS declaration. A bare string is an
// AllowOrigin with every standard method allowed; a mapping uses the
// structured fields. HTTP APIs use the CorsConfiguration property name and
// list-valued fields.
func (e *DeclaredAPIExtractor) resolveCors(properties map[string]any) *route.Cors {
	raw, ok := properties["Cors"]
	if !ok {
		raw, ok = properties["CorsConfiguration"]
	}
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case string:
		return &route.Cors{
			AllowOrigin:  unquote(v),
			AllowMethods: route.AllMethodsWithOptions(),
		}
	case bool:
		if v {
			return &route.Cors{AllowOrigin: "*", AllowMethods: route.AllMethodsWithOptions()}
		}
		return nil
	case map[string]any:
		cors := &route.Cors{}
		cors.AllowOrigin = corsValue(v, "AllowOrigin", "AllowOrigins")
		cors.AllowHeaders = corsValue(v, "AllowHeaders", "AllowHeaders")
		cors.MaxAge = corsValue(v, "MaxAge", "MaxAge")
		if methods := corsMethodList(v); methods != nil {
			cors.AllowMethods = route.NormalizeCorsMethods(methods)
		} else {
			cors.AllowMethods = route.AllMethodsWithOptions()
		}
		return cors
	default:
		return nil
	}
}

// RawAPIExtractor reads a raw gateway API resource. It carries no native
// CORS support and uses different property names for the document body.
type RawAPIExtractor struct {
	kind        route.EventKind
	bodyKey     string
	locationKey string
	reader      DocumentReader
	logger      observability.Logger
}

// Extract implements Extractor.
func (e *RawAPIExtractor) Extract(logicalID string, properties map[string]any, collector *Collector, cwd string) error {
	doc, err := resolveBody(properties, e.bodyKey, e.locationKey, e.reader, cwd)
	if err != nil {
		return err
	}
	if doc == nil {
		e.logger.Info("API resource has no definition body or uri, skipping",
			observability.String("api", logicalID))
	} else if err := collectDocument(doc, logicalID, e.kind, collector, e.logger); err != nil {
		return err
	}

	collector.AddBinaryMediaTypes(logicalID, binaryTypeValues(properties))
	return nil
}

// resolveBody returns the inline document body, or loads the external one
// when only a location is declared. Both absent yields (nil, nil).
func resolveBody(properties map[string]any, bodyKey, locationKey string, reader DocumentReader, cwd string) (map[string]any, error) {
	if body, ok := template.MapProp(properties, bodyKey); ok {
		return body, nil
	}
	location, ok := properties[locationKey]
	if !ok || reader == nil {
		return nil, nil
	}
	return reader.Read(location, cwd)
}

// collectDocument parses one OpenAPI document and feeds everything it
// declares into the collector.
func collectDocument(doc map[string]any, apiID string, kind route.EventKind, collector *Collector, logger observability.Logger) error {
	parser := openapi.NewParser(doc, apiID, logger)

	routes, err := parser.Routes(kind)
	if err != nil {
		return err
	}
	collector.AddRoutes(apiID, routes)
	collector.AddBinaryMediaTypes(apiID, parser.BinaryMediaTypes())

	authorizers, err := parser.Authorizers()
	if err != nil {
		return err
	}
	collector.AddAuthorizers(apiID, authorizers)

	defaultAuth, err := parser.DefaultAuthorizer(kind)
	if err != nil {
		return err
	}
	collector.SetDefaultAuthorizer(apiID, defaultAuth)
	return nil
}

// binaryTypeValues reads the resource-level binary media type list.
func binaryTypeValues(properties map[string]any) []any {
	values, _ := template.SliceProp(properties, "BinaryMediaTypes")
	return values
}

// corsValue reads a CORS field that may be a quoted string, a number, or a
// list of strings.
func corsValue(props map[string]any, stringKey, listKey string) string {
	if raw, ok := props[stringKey]; ok {
		switch v := raw.(type) {
		case string:
			return unquote(v)
		case int:
			return strconv.Itoa(v)
		case []any:
			return joinStrings(v, ",")
		}
	}
	if stringKey != listKey {
		if raw, ok := props[listKey]; ok {
			if list, isList := raw.([]any); isList {
				return joinStrings(list, ",")
			}
		}
	}
	return ""
}

// corsMethodList reads the allow-methods field as a list, accepting both the
// list form and a comma separated quoted string.
func corsMethodList(props map[string]any) []string {
	raw, ok := props["AllowMethods"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		parts := strings.Split(unquote(v), ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, isString := item.(string); isString {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// unquote strips one level of surrounding single quotes, the form template
// authors use for literal CORS values.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

func joinStrings(values []any, sep string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

