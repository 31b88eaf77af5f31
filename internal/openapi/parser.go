// Package openapi parses OpenAPI/Swagger documents into gateway routes,
// Lambda authorizers, and binary media type declarations. Only the gateway
// vendor extensions relevant to proxy integrations are interpreted; the rest
// of the document is ignored.
package openapi

import (
	"strings"

	"github.com/lambdalocal/gateway/internal/observability"
	"github.com/lambdalocal/gateway/internal/route"
	"github.com/lambdalocal/gateway/internal/template"
	"github.com/lambdalocal/gateway/internal/util"
)

// Gateway vendor extension keys.
const (
	extensionIntegration = "x-amazon-apigateway-integration"
	extensionAnyMethod   = "x-amazon-apigateway-any-method"
	extensionBinaryTypes = "x-amazon-apigateway-binary-media-types"
	extensionAuthorizer  = "x-amazon-apigateway-authorizer"

	integrationTypeProxy = "aws_proxy"
)

// Document version families.
const (
	versionSwagger2 = "2."
	versionOpenAPI3 = "3."
)

// Parser reads one decoded OpenAPI/Swagger document.
type Parser struct {
	doc    map[string]any
	apiID  string
	logger observability.Logger
}

// NewParser creates a parser over an already decoded document. apiID is the
// logical id of the owning API resource and is only used for logging and
// route attribution.
func NewParser(doc map[string]any, apiID string, logger observability.Logger) *Parser {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Parser{doc: doc, apiID: apiID, logger: logger}
}

// version returns "2" or "3" for recognized documents, or an error.
func (p *Parser) version() (string, error) {
	if v, ok := template.StringProp(p.doc, "swagger"); ok && strings.HasPrefix(v, versionSwagger2) {
		return "2", nil
	}
	if v, ok := template.StringProp(p.doc, "openapi"); ok && strings.HasPrefix(v, versionOpenAPI3) {
		return "3", nil
	}
	declared, _ := template.StringProp(p.doc, "swagger")
	if declared == "" {
		declared, _ = template.StringProp(p.doc, "openapi")
	}
	return "", &util.InvalidOasVersionError{Version: declared}
}

// Routes extracts one route per path and method carrying a recognized
// aws_proxy integration. Methods without one are skipped.
func (p *Parser) Routes(kind route.EventKind) ([]*route.Route, error) {
	paths, ok := template.MapProp(p.doc, "paths")
	if !ok {
		return nil, nil
	}

	var routes []*route.Route
	for path, rawMethods := range paths {
		methods, isMap := rawMethods.(map[string]any)
		if !isMap {
			continue
		}
		for methodKey, rawDef := range methods {
			def, isMap := rawDef.(map[string]any)
			if !isMap {
				continue
			}
			method := methodKey
			if strings.EqualFold(methodKey, extensionAnyMethod) {
				method = route.MethodAny
			}

			integration, ok := template.MapProp(def, extensionIntegration)
			if !ok {
				p.logger.Debug("method has no proxy integration, skipping",
					observability.String("api", p.apiID),
					observability.String("path", path),
					observability.String("method", method))
				continue
			}
			if integrationType, _ := template.StringProp(integration, "type"); !strings.EqualFold(integrationType, integrationTypeProxy) {
				continue
			}

			functionName := FunctionNameFromURI(integration["uri"])
			if functionName == "" {
				p.logger.Warn("could not resolve function from integration uri, skipping",
					observability.String("api", p.apiID),
					observability.String("path", path),
					observability.String("method", method))
				continue
			}

			authorizerName, err := methodAuthorizer(def)
			if err != nil {
				if multiple, isMultiple := err.(*util.MultipleAuthorizersError); isMultiple {
					multiple.Path = path
					multiple.Method = method
				}
				return nil, err
			}

			r := route.NewRoute(path, []string{method}, functionName, kind)
			r.APIID = p.apiID
			r.AuthorizerName = authorizerName
			r.UseDefaultAuthorizer = authorizerName == ""
			r.PayloadFormatVersion, _ = template.StringProp(integration, "payloadFormatVersion")
			r.OperationName, _ = template.StringProp(def, "operationId")
			if path == route.DefaultPath {
				r.IsDefaultRoute = true
			}
			routes = append(routes, r)
		}
	}
	return routes, nil
}

// methodAuthorizer resolves a method's security requirement to at most one
// authorizer name.
func methodAuthorizer(def map[string]any) (string, error) {
	security, ok := template.SliceProp(def, "security")
	if !ok || len(security) == 0 {
		return "", nil
	}
	if len(security) > 1 {
		return "", &util.MultipleAuthorizersError{}
	}
	entry, isMap := security[0].(map[string]any)
	if !isMap || len(entry) != 1 {
		return "", util.NewInvalidDocumentError("", "security requirement must be a single-key mapping")
	}
	for name := range entry {
		return name, nil
	}
	return "", nil
}

// Authorizers extracts the Lambda authorizers declared in the document's
// security definitions. Unsupported authorizer types and unparsable URIs are
// skipped with a warning rather than failing the build.
func (p *Parser) Authorizers() (map[string]*route.Authorizer, error) {
	version, err := p.version()
	if err != nil {
		return nil, err
	}

	var definitions map[string]any
	if version == "2" {
		definitions, _ = template.MapProp(p.doc, "securityDefinitions")
	} else {
		if components, ok := template.MapProp(p.doc, "components"); ok {
			definitions, _ = template.MapProp(components, "securitySchemes")
		}
	}

	authorizers := make(map[string]*route.Authorizer)
	for name, rawDef := range definitions {
		def, isMap := rawDef.(map[string]any)
		if !isMap {
			continue
		}
		properties, ok := template.MapProp(def, extensionAuthorizer)
		if !ok {
			continue
		}

		kindValue, _ := template.StringProp(properties, "type")
		var kind route.AuthorizerKind
		switch strings.ToUpper(kindValue) {
		case string(route.AuthorizerToken):
			kind = route.AuthorizerToken
		case string(route.AuthorizerRequest):
			kind = route.AuthorizerRequest
		default:
			p.logger.Warn("unsupported authorizer type, skipping",
				observability.String("api", p.apiID),
				observability.String("authorizer", name),
				observability.String("type", kindValue))
			continue
		}

		functionName := FunctionNameFromURI(properties["authorizerUri"])
		if functionName == "" {
			p.logger.Warn("could not resolve function from authorizer uri, skipping",
				observability.String("api", p.apiID),
				observability.String("authorizer", name))
			continue
		}

		authorizer := &route.Authorizer{
			Name:         name,
			Kind:         kind,
			FunctionName: functionName,
		}
		authorizer.PayloadVersion, _ = template.StringProp(properties, "authorizerPayloadFormatVersion")
		authorizer.ValidationPattern, _ = template.StringProp(properties, "identityValidationExpression")
		if simple, isBool := properties["enableSimpleResponses"].(bool); isBool {
			authorizer.SimpleResponses = simple
		}
		if source, ok := template.StringProp(properties, "identitySource"); ok {
			for _, part := range strings.Split(source, ",") {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					authorizer.IdentitySources = append(authorizer.IdentitySources, trimmed)
				}
			}
		}
		authorizers[name] = authorizer
	}
	return authorizers, nil
}

// DefaultAuthorizer reads the document's root-level security array. A default
// authorizer is only valid for OpenAPI 3.x documents backing HTTP APIs.
func (p *Parser) DefaultAuthorizer(kind route.EventKind) (string, error) {
	security, ok := template.SliceProp(p.doc, "security")
	if !ok || len(security) == 0 {
		return "", nil
	}

	version, err := p.version()
	if err != nil {
		return "", err
	}
	if version != "3" || kind != route.KindHTTP {
		declared, _ := template.StringProp(p.doc, "swagger")
		if declared == "" {
			declared, _ = template.StringProp(p.doc, "openapi")
		}
		return "", &util.DefaultAuthorizerVersionError{Version: declared}
	}
	if len(security) > 1 {
		return "", &util.MultipleAuthorizersError{}
	}

	entry, isMap := security[0].(map[string]any)
	if !isMap || len(entry) != 1 {
		return "", util.NewInvalidDocumentError("", "default security requirement must be a single-key mapping")
	}
	for name := range entry {
		return name, nil
	}
	return "", nil
}

// BinaryMediaTypes reads the document-level binary media type extension.
// Entries are returned raw; normalization happens at collection time.
func (p *Parser) BinaryMediaTypes() []any {
	values, _ := template.SliceProp(p.doc, extensionBinaryTypes)
	return values
}
