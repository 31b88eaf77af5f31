package openapi

import "regexp"

// Integration URIs reference the target function either through a full
// gateway invocation ARN or through a substitution placeholder left in the
// document body, e.g.
//
//	arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:Hello/invocations
//	arn:aws:apigateway:${AWS::Region}:lambda:path/2015-03-31/functions/${Hello.Arn}/invocations
var (
	invocationArnPattern = regexp.MustCompile(`:function:([A-Za-z0-9_-]+)(:[$A-Za-z0-9_-]+)?/invocations`)
	substitutionPattern  = regexp.MustCompile(`\$\{([A-Za-z0-9]+)\.Arn\}`)
)

// FunctionNameFromURI extracts the target function identifier from an
// integration or authorizer URI. The URI may be a plain string, or the
// mapping form of a substitution intrinsic whose first element is the
// template string. Returns "" when no function reference can be found.
func FunctionNameFromURI(uri any) string {
	switch v := uri.(type) {
	case string:
		return functionNameFromString(v)
	case map[string]any:
		sub, ok := v["Fn::Sub"]
		if !ok {
			return ""
		}
		switch s := sub.(type) {
		case string:
			return functionNameFromString(s)
		case []any:
			if len(s) > 0 {
				if first, isString := s[0].(string); isString {
					return functionNameFromString(first)
				}
			}
		}
	}
	return ""
}

func functionNameFromString(uri string) string {
	if match := invocationArnPattern.FindStringSubmatch(uri); match != nil {
		return match[1]
	}
	if match := substitutionPattern.FindStringSubmatch(uri); match != nil {
		return match[1]
	}
	return ""
}
