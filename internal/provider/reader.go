package provider

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lambdalocal/gateway/internal/observability"
)

// DocumentReader loads an external OpenAPI/Swagger document referenced by a
// template resource. Implementations decide which location forms they can
// serve; returning a nil document without error means the location is not
// loadable locally and the resource should be skipped.
type DocumentReader interface {
	Read(location any, cwd string) (map[string]any, error)
}

// LocalReader reads documents from the local filesystem. Bucket/key style
// locations cannot be fetched locally and are skipped with a log line.
type LocalReader struct {
	logger observability.Logger
}

// NewLocalReader creates a LocalReader.
func NewLocalReader(logger observability.Logger) *LocalReader {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LocalReader{logger: logger}
}

// Read loads and decodes a document. A string location is a local path,
// resolved against cwd when relative. A mapping location is a bucket/key
// reference, which has no local equivalent.
func (r *LocalReader) Read(location any, cwd string) (map[string]any, error) {
	switch loc := location.(type) {
	case string:
		path := loc
		if !filepath.IsAbs(path) && cwd != "" {
			path = filepath.Join(cwd, path)
		}
		data, err := os.ReadFile(path) //nolint:gosec // template-referenced document path
		if err != nil {
			return nil, fmt.Errorf("failed to read API definition %s: %w", loc, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode API definition %s: %w", loc, err)
		}
		return doc, nil
	case map[string]any:
		r.logger.Info("API definition is a remote bucket reference, skipping",
			observability.Any("location", loc))
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported API definition location of type %T", location)
	}
}
