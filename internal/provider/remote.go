package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	indexPath        = "index.json"
	assetsPath       = "assets"
	defaultUserAgent = "midibridge"
	indexSchemaURL   = "https://midibridge.invalid/schema/index.json"

	dialTimeout   = 30 * time.Second
	headerTimeout = 60 * time.Second
)

// indexSchema describes the document served at <base>/index.json.
const indexSchema = `{
  "type": "object",
  "required": ["instruments"],
  "properties": {
    "instruments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id":      {"type": "string", "minLength": 1},
          "name":    {"type": "string"},
          "locator": {"type": "string"},
          "size":    {"type": "integer", "minimum": 0},
          "sha256":  {"type": "string", "pattern": "^([0-9a-fA-F]{64})?$"}
        }
      }
    }
  }
}`

type remoteIndex struct {
	Instruments []contracts.Instrument `json:"instruments"`
}

// RemoteProvider lists and fetches instruments over HTTP.
//
// The index lives at <base>/index.json. An asset is fetched from its locator
// when the index supplied one (absolute, or relative to base), otherwise
// from <base>/assets/<id>.
type RemoteProvider struct {
	base       *url.URL
	httpClient *http.Client
	userAgent  string
	schema     *jsonschema.Schema

	mu       sync.RWMutex
	locators map[string]string
}

// RemoteOption customizes a RemoteProvider.
type RemoteOption func(*RemoteProvider)

// WithHTTPClient overrides the HTTP client. The default client times out
// connecting and waiting for headers, never while reading a body.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(p *RemoteProvider) {
		p.httpClient = c
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) RemoteOption {
	return func(p *RemoteProvider) {
		p.userAgent = ua
	}
}

// NewRemoteProvider creates a provider rooted at baseURL.
func NewRemoteProvider(baseURL string, opts ...RemoteOption) (*RemoteProvider, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing provider url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported provider url scheme %q", base.Scheme)
	}

	schema, err := compileIndexSchema()
	if err != nil {
		return nil, err
	}

	p := &RemoteProvider{
		base:       base,
		httpClient: newHTTPClient(headerTimeout),
		userAgent:  defaultUserAgent,
		schema:     schema,
		locators:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// newHTTPClient bounds connecting and waiting for response headers but not
// reading the body, so large assets are not cut off mid-download.
func newHTTPClient(header time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = header
	return &http.Client{Transport: transport}
}

func compileIndexSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(indexSchema))
	if err != nil {
		return nil, fmt.Errorf("parsing index schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(indexSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding index schema: %w", err)
	}
	schema, err := c.Compile(indexSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling index schema: %w", err)
	}
	return schema, nil
}

// Name implements contracts.Provider.
func (p *RemoteProvider) Name() string {
	return "remote:" + p.base.String()
}

// List downloads and validates the index.
func (p *RemoteProvider) List(ctx context.Context) ([]contracts.Instrument, error) {
	body, err := p.get(ctx, p.base.ResolveReference(&url.URL{Path: indexPath}))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading index: %v", contracts.ErrNetworkFailure, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing index: %v", contracts.ErrInvalidManifest, err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: invalid index: %v", contracts.ErrInvalidManifest, err)
	}

	var idx remoteIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: decoding index: %v", contracts.ErrInvalidManifest, err)
	}

	p.mu.Lock()
	for _, inst := range idx.Instruments {
		if inst.Locator != "" {
			p.locators[inst.ID] = inst.Locator
		}
	}
	p.mu.Unlock()

	return idx.Instruments, nil
}

// Fetch opens the asset stream for id. The caller closes it.
func (p *RemoteProvider) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	target, err := p.assetURL(id)
	if err != nil {
		return nil, err
	}
	return p.get(ctx, target)
}

func (p *RemoteProvider) assetURL(id string) (*url.URL, error) {
	p.mu.RLock()
	locator, ok := p.locators[id]
	p.mu.RUnlock()

	if !ok {
		return p.base.ResolveReference(&url.URL{Path: assetsPath + "/" + url.PathEscape(id)}), nil
	}
	ref, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: bad locator %q for %s: %v", contracts.ErrNotFound, locator, id, err)
	}
	return p.base.ResolveReference(ref), nil
}

func (p *RemoteProvider) get(ctx context.Context, target *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", contracts.ErrCancelled, ctxErr)
		}
		return nil, fmt.Errorf("%w: GET %s: %v", contracts.ErrNetworkFailure, target, err)
	}

	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	resp.Body.Close()
	return nil, statusError(target, resp.StatusCode)
}

func statusError(target *url.URL, code int) error {
	var kind error
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		kind = contracts.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = contracts.ErrPermissionDenied
	default:
		kind = contracts.ErrNetworkFailure
	}
	return fmt.Errorf("%w: GET %s returned status %d", kind, target, code)
}
