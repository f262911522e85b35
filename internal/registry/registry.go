package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/gridmate/fieldsync/internal/fieldsync"
	"github.com/gridmate/fieldsync/internal/logger"
)

const catalogSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["fields"],
  "properties": {
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "displayName", "externalKey"],
        "properties": {
          "key": {"type": "string", "minLength": 1},
          "displayName": {"type": "string", "minLength": 1},
          "externalKey": {"type": "string", "minLength": 1},
          "category": {"type": "string"},
          "checked": {"type": "boolean"},
          "disabled": {"type": "boolean"},
          "mappedColumnId": {"type": "string"}
        }
      }
    }
  }
}`

type catalogDocument struct {
	Fields []fieldsync.FieldSpec `json:"fields" yaml:"fields"`
}

type Options struct {
	// DocURL is the configuration-document endpoint holding the catalog.
	DocURL string
	// LocalPath, when set, overrides the remote document. JSON or YAML by
	// extension.
	LocalPath  string
	HTTPClient *http.Client
	Log        *logger.Logger
}

// Registry loads the field catalog. Load never fails and never returns an
// empty catalog: any problem falls back to the built-in list.
type Registry struct {
	docURL     string
	localPath  string
	httpClient *http.Client
	log        *logger.Logger
	schema     *jsonschema.Schema

	mu       sync.RWMutex
	snapshot []fieldsync.FieldSpec
}

func New(opts Options) (*Registry, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(catalogSchema))
	if err != nil {
		return nil, fmt.Errorf("parsing catalog schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("registering catalog schema: %w", err)
	}
	schema, err := compiler.Compile("catalog.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling catalog schema: %w", err)
	}
	return &Registry{
		docURL:     strings.TrimRight(strings.TrimSpace(opts.DocURL), "/"),
		localPath:  strings.TrimSpace(opts.LocalPath),
		httpClient: httpClient,
		log:        log,
		schema:     schema,
	}, nil
}

// Load fetches, validates and normalizes the catalog, falling back to the
// built-in list on any failure. The result is cached for Snapshot.
func (r *Registry) Load(ctx context.Context) []fieldsync.FieldSpec {
	fields := r.load(ctx)
	r.mu.Lock()
	r.snapshot = fields
	r.mu.Unlock()
	return fields
}

// Snapshot returns the last loaded catalog, loading it first if needed.
func (r *Registry) Snapshot(ctx context.Context) []fieldsync.FieldSpec {
	r.mu.RLock()
	cached := r.snapshot
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}
	return r.Load(ctx)
}

func (r *Registry) load(ctx context.Context) []fieldsync.FieldSpec {
	if r.localPath != "" {
		fields, err := r.loadLocal()
		if err == nil {
			return r.normalize(fields)
		}
		r.log.Warnf("local catalog %s unusable (%v); trying remote document", r.localPath, err)
	}
	if r.docURL != "" {
		fields, err := r.loadRemote(ctx)
		if err == nil {
			return r.normalize(fields)
		}
		r.log.Warnf("catalog document unusable (%v); using built-in catalog", err)
	}
	return r.normalize(BuiltinCatalog())
}

func (r *Registry) loadRemote(ctx context.Context) ([]fieldsync.FieldSpec, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.docURL+"/v1/catalog", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("catalog document returned status %d", resp.StatusCode)
	}
	return r.parseJSON(payload)
}

func (r *Registry) loadLocal() ([]fieldsync.FieldSpec, error) {
	payload, err := os.ReadFile(r.localPath)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(r.localPath)) {
	case ".yaml", ".yml":
		var doc catalogDocument
		if err := yaml.Unmarshal(payload, &doc); err != nil {
			return nil, err
		}
		if len(doc.Fields) == 0 {
			return nil, fmt.Errorf("catalog file has no fields")
		}
		return doc.Fields, nil
	default:
		return r.parseJSON(payload)
	}
}

func (r *Registry) parseJSON(payload []byte) ([]fieldsync.FieldSpec, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("catalog is not valid json: %w", err)
	}
	if err := r.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("catalog failed schema validation: %w", err)
	}
	var doc catalogDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("catalog document has no fields")
	}
	return doc.Fields, nil
}

// normalize enforces the FieldSpec invariants: unique keys (first wins)
// and known categories (unknown coerces to basic with a warning). Entries
// missing required values are dropped.
func (r *Registry) normalize(fields []fieldsync.FieldSpec) []fieldsync.FieldSpec {
	out := make([]fieldsync.FieldSpec, 0, len(fields))
	seen := map[string]struct{}{}
	for _, spec := range fields {
		if spec.Key == "" || spec.DisplayName == "" || spec.ExternalKey == "" {
			r.log.Warnf("dropping catalog entry with missing key/name: %+v", spec)
			continue
		}
		if _, dup := seen[spec.Key]; dup {
			r.log.Warnf("dropping duplicate catalog key %q", spec.Key)
			continue
		}
		seen[spec.Key] = struct{}{}
		if !fieldsync.KnownCategory(spec.Category) {
			if spec.Category != "" {
				r.log.Warnf("unknown category %q for field %q; using %q", spec.Category, spec.Key, fieldsync.CategoryBasic)
			}
			spec.Category = fieldsync.CategoryBasic
		}
		out = append(out, spec)
	}
	if len(out) == 0 {
		// The built-in catalog always survives normalization, so this only
		// triggers when a loaded document was entirely invalid.
		return r.normalize(BuiltinCatalog())
	}
	return out
}
