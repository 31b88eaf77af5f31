package event

import (
	"mime"
	"strings"

	"github.com/munnerz/goautoneg"
)

// MediaTypeWildcard matches every media type.
const MediaTypeWildcard = "*/*"

// MatchesMediaType reports whether a concrete media type (no parameters)
// matches one of the declared binary media types. Declarations may use the
// "type/*" and "*/*" wildcard forms.
func MatchesMediaType(mediaType string, binaryTypes []string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" {
		return false
	}
	for _, declared := range binaryTypes {
		declared = strings.ToLower(strings.TrimSpace(declared))
		if declared == MediaTypeWildcard || declared == mediaType {
			return true
		}
		if prefix, found := strings.CutSuffix(declared, "/*"); found {
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
		}
	}
	return false
}

// RequestIsBinary reports whether the request body must be base64-encoded in
// the invocation event: its content type matches a declared binary media
// type.
func RequestIsBinary(contentType string, binaryTypes []string) bool {
	if contentType == "" {
		return false
	}
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = parsed
	}
	return MatchesMediaType(contentType, binaryTypes)
}

// AcceptsBinary reports whether the client's best-matching Accept media type
// is in the binary set. A route declaring the full wildcard always accepts.
// With no Accept header nothing matches: the response stays base64 text.
func AcceptsBinary(acceptHeader string, binaryTypes []string) bool {
	for _, declared := range binaryTypes {
		if strings.TrimSpace(declared) == MediaTypeWildcard {
			return true
		}
	}
	if acceptHeader == "" {
		return false
	}
	accepted := goautoneg.ParseAccept(acceptHeader)
	if len(accepted) == 0 {
		return false
	}
	best := accepted[0]
	mediaType := best.Type
	if best.SubType != "" {
		mediaType = best.Type + "/" + best.SubType
	}
	return MatchesMediaType(mediaType, binaryTypes)
}
