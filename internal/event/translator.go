package event

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"github.com/lambdalocal/gateway/internal/route"
	"github.com/lambdalocal/gateway/internal/util"
)

// Emulated account and API identifiers, mirrored from the cloud event shape.
const (
	emulatedAccountID = "123456789012"
	emulatedAPIID     = "1234567890"
)

// Translator builds invocation events for matched routes.
type Translator struct{}

// NewTranslator creates a Translator.
func NewTranslator() *Translator {
	return &Translator{}
}

// Build constructs the invocation event for the route's effective payload
// format version.
func (t *Translator) Build(req *Request, rt *route.Route, resourcePath string, pathParams map[string]string) ([]byte, error) {
	if rt.PayloadVersion() == route.PayloadV2 {
		return t.buildV2(req, rt, pathParams)
	}
	return t.buildV1(req, rt, resourcePath, pathParams)
}

// encodeBody applies the binary-encoding rule: the body is base64-encoded
// iff the request content type matches a declared binary media type. A text
// body that is not valid text is a translation failure; the function is
// never invoked for it.
func encodeBody(req *Request, rt *route.Route) (body string, isBase64 bool, err error) {
	if len(req.Body) == 0 {
		return "", false, nil
	}
	if RequestIsBinary(req.ContentType(), rt.BinaryMediaTypes) {
		return base64.StdEncoding.EncodeToString(req.Body), true, nil
	}
	if !utf8.Valid(req.Body) {
		return "", false, fmt.Errorf("%w: body is not valid text and content type %q is not binary",
			util.ErrBodyDecode, req.ContentType())
	}
	return string(req.Body), false, nil
}

// buildV1 constructs the 1.0 event shape used by REST routes and HTTP routes
// pinned to payload version 1.0.
func (t *Translator) buildV1(req *Request, rt *route.Route, resourcePath string, pathParams map[string]string) ([]byte, error) {
	body, isBase64, err := encodeBody(req, rt)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(req.Headers))
	multiHeaders := make(map[string][]string, len(req.Headers))
	for name, values := range req.Headers {
		if len(values) == 0 {
			continue
		}
		headers[name] = values[len(values)-1]
		multiHeaders[name] = append([]string(nil), values...)
	}

	var query map[string]string
	var multiQuery map[string][]string
	if len(req.Query) > 0 {
		query = make(map[string]string, len(req.Query))
		multiQuery = make(map[string][]string, len(req.Query))
		for name, values := range req.Query {
			if len(values) == 0 {
				continue
			}
			query[name] = values[len(values)-1]
			multiQuery[name] = append([]string(nil), values...)
		}
	}

	stage := rt.StageName
	if stage == "" {
		stage = "Prod"
	}

	ev := events.APIGatewayProxyRequest{
		Resource:                        resourcePath,
		Path:                            req.Path,
		HTTPMethod:                      req.Method,
		Headers:                         headers,
		MultiValueHeaders:               multiHeaders,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: multiQuery,
		PathParameters:                  pathParams,
		StageVariables:                  rt.StageVariables,
		Body:                            body,
		IsBase64Encoded:                 isBase64,
		RequestContext: events.APIGatewayProxyRequestContext{
			AccountID:    emulatedAccountID,
			APIID:        emulatedAPIID,
			ResourceID:   "123456",
			Stage:        stage,
			RequestID:    req.RequestID,
			ResourcePath: resourcePath,
			HTTPMethod:   req.Method,
			Protocol:     req.Protocol,
			DomainName:   req.Host,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP: req.SourceIP,
			},
			RequestTimeEpoch: req.Time.UnixMilli(),
		},
	}
	return json.Marshal(ev)
}

// buildV2 constructs the flatter 2.0 event shape, the default for HTTP
// routes.
func (t *Translator) buildV2(req *Request, rt *route.Route, pathParams map[string]string) ([]byte, error) {
	body, isBase64, err := encodeBody(req, rt)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(req.Headers))
	for name, values := range req.Headers {
		if len(values) == 0 {
			continue
		}
		headers[name] = strings.Join(values, ",")
	}

	var query map[string]string
	if len(req.Query) > 0 {
		query = make(map[string]string, len(req.Query))
		for name, values := range req.Query {
			query[name] = strings.Join(values, ",")
		}
	}

	routeKey := route.DefaultPath
	if !rt.IsDefaultRoute {
		routeKey = req.Method + " " + rt.Path
	}

	stage := rt.StageName
	if stage == "" {
		stage = "$default"
	}
	domainPrefix, _, _ := strings.Cut(req.Host, ".")

	ev := events.APIGatewayV2HTTPRequest{
		Version:               route.PayloadV2,
		RouteKey:              routeKey,
		RawPath:               req.Path,
		RawQueryString:        req.RawQueryString,
		Cookies:               req.Cookies,
		Headers:               headers,
		QueryStringParameters: query,
		PathParameters:        pathParams,
		StageVariables:        rt.StageVariables,
		Body:                  body,
		IsBase64Encoded:       isBase64,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			AccountID:    emulatedAccountID,
			APIID:        emulatedAPIID,
			RouteKey:     routeKey,
			Stage:        stage,
			RequestID:    req.RequestID,
			DomainName:   req.Host,
			DomainPrefix: domainPrefix,
			Time:         req.Time.Format("02/Jan/2006:15:04:05 -0700"),
			TimeEpoch:    req.Time.UnixMilli(),
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:    req.Method,
				Path:      req.Path,
				Protocol:  req.Protocol,
				SourceIP:  req.SourceIP,
				UserAgent: req.UserAgent,
			},
		},
	}
	return json.Marshal(ev)
}

// coerceStatusCode turns a decoded statusCode value into a positive integer.
func coerceStatusCode(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		code := int(v)
		if float64(code) != v || code <= 0 {
			return 0, fmt.Errorf("statusCode %v is not a positive integer", v)
		}
		return code, nil
	case string:
		code, err := strconv.Atoi(v)
		if err != nil || code <= 0 {
			return 0, fmt.Errorf("statusCode %q is not a positive integer", v)
		}
		return code, nil
	default:
		return 0, fmt.Errorf("statusCode of type %T is not a positive integer", raw)
	}
}
