package event

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lambdalocal/gateway/internal/route"
	"github.com/lambdalocal/gateway/internal/util"
)

// Response is a parsed, validated function response ready to be written back
// to the HTTP client. Body holds the final bytes after any base64 decoding.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Allowed response keys per payload format version. A response carrying a
// statusCode alongside any key outside its version's set is rejected.
var (
	allowedKeysV1 = map[string]bool{
		"statusCode":        true,
		"body":              true,
		"headers":           true,
		"multiValueHeaders": true,
		"isBase64Encoded":   true,
	}
	allowedKeysV2 = map[string]bool{
		"statusCode":      true,
		"body":            true,
		"headers":         true,
		"cookies":         true,
		"isBase64Encoded": true,
	}
)

// ParseResponse validates and converts a function's returned JSON payload
// into an HTTP response. version selects the allowed response shape.
// binaryTypes and acceptHeader drive the final base64 body decoding rule.
func ParseResponse(payload []byte, version, functionName string, binaryTypes []string, acceptHeader string) (*Response, error) {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &util.ResponseParseError{
			FunctionName: functionName,
			Message:      "payload is not valid JSON",
			Cause:        err,
		}
	}

	object, isObject := decoded.(map[string]any)
	if version == route.PayloadV2 {
		// A bare value, or an object with no statusCode, is a "simple
		// response": the payload itself is the already-serialized body.
		if !isObject {
			return simpleResponse(payload), nil
		}
		if _, hasStatus := object["statusCode"]; !hasStatus {
			return simpleResponse(payload), nil
		}
	} else if !isObject {
		return nil, util.NewResponseParseError(functionName, "payload must be a JSON object")
	}

	return parseStructured(object, version, functionName, binaryTypes, acceptHeader)
}

// simpleResponse wraps an already-serialized body with status 200.
func simpleResponse(payload []byte) *Response {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       []byte(strings.TrimSpace(string(payload))),
	}
}

// parseStructured handles the full response object shape.
func parseStructured(object map[string]any, version, functionName string, binaryTypes []string, acceptHeader string) (*Response, error) {
	allowed := allowedKeysV1
	if version == route.PayloadV2 {
		allowed = allowedKeysV2
	}
	if _, hasStatus := object["statusCode"]; hasStatus {
		for key := range object {
			if !allowed[key] {
				return nil, util.NewResponseParseError(functionName,
					"unsupported response key \""+key+"\"")
			}
		}
	}

	statusCode := http.StatusOK
	if raw, ok := object["statusCode"]; ok {
		code, err := coerceStatusCode(raw)
		if err != nil {
			return nil, &util.ResponseParseError{FunctionName: functionName, Message: err.Error(), Cause: err}
		}
		statusCode = code
	}

	headers, err := mergeHeaders(object, version, functionName)
	if err != nil {
		return nil, err
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}

	body, err := extractBody(object, functionName, binaryTypes, acceptHeader)
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: statusCode, Headers: headers, Body: body}, nil
}

// mergeHeaders merges the multi-value and single-value header maps. Multi
// values win on duplicates; single values are appended only when the value
// is not already present for that key.
func mergeHeaders(object map[string]any, version, functionName string) (http.Header, error) {
	headers := http.Header{}

	if raw, ok := object["multiValueHeaders"]; ok {
		m, isMap := raw.(map[string]any)
		if !isMap {
			return nil, util.NewResponseParseError(functionName, "multiValueHeaders must be a mapping")
		}
		for name, rawValues := range m {
			values, isList := rawValues.([]any)
			if !isList {
				return nil, util.NewResponseParseError(functionName, "multiValueHeaders values must be lists")
			}
			for _, v := range values {
				headers.Add(name, headerValue(v))
			}
		}
	}

	if raw, ok := object["headers"]; ok {
		m, isMap := raw.(map[string]any)
		if !isMap {
			return nil, util.NewResponseParseError(functionName, "headers must be a mapping")
		}
		for name, rawValue := range m {
			value := headerValue(rawValue)
			if !containsValue(headers.Values(name), value) {
				headers.Add(name, value)
			}
		}
	}

	if version == route.PayloadV2 {
		if raw, ok := object["cookies"]; ok {
			cookies, isList := raw.([]any)
			if !isList {
				return nil, util.NewResponseParseError(functionName, "cookies must be a list")
			}
			for _, c := range cookies {
				headers.Add("Set-Cookie", headerValue(c))
			}
		}
	}

	return headers, nil
}

// extractBody pulls the body out of the response object and applies the
// final binary decoding rule: decode base64 only when the response says it
// is encoded and the client's best Accept match is a declared binary type
// (or the route declares the full wildcard).
func extractBody(object map[string]any, functionName string, binaryTypes []string, acceptHeader string) ([]byte, error) {
	var body string
	switch v := object["body"].(type) {
	case nil:
		return nil, nil
	case string:
		body = v
	default:
		serialized, err := json.Marshal(v)
		if err != nil {
			return nil, util.NewResponseParseError(functionName, "body is not serializable")
		}
		body = string(serialized)
	}

	isBase64 := false
	if raw, ok := object["isBase64Encoded"]; ok {
		b, isBool := raw.(bool)
		if !isBool {
			return nil, util.NewResponseParseError(functionName, "isBase64Encoded must be a boolean")
		}
		isBase64 = b
	}

	if isBase64 && AcceptsBinary(acceptHeader, binaryTypes) {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, &util.ResponseParseError{
				FunctionName: functionName,
				Message:      "body is not valid base64",
				Cause:        err,
			}
		}
		return decoded, nil
	}
	return []byte(body), nil
}

// headerValue renders a decoded JSON value as a header string.
func headerValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	serialized, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(serialized)
}

func containsValue(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
