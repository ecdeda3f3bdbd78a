package midi

import (
	"net/http"

	"github.com/leandrodaf/midibridge/internal/provider"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// NewRemoteProvider returns a provider reading index.json and assets from
// an HTTP(S) base URL. A nil client selects a client that bounds dialing
// and response headers but not body reads.
func NewRemoteProvider(baseURL string, client *http.Client) (contracts.Provider, error) {
	var opts []provider.RemoteOption
	if client != nil {
		opts = append(opts, provider.WithHTTPClient(client))
	}
	p, err := provider.NewRemoteProvider(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewLocalProvider returns a provider over a directory, described by an
// instruments.yaml manifest when present.
func NewLocalProvider(dir string) (contracts.Provider, error) {
	p, err := provider.NewLocalProvider(dir)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewCachedProvider memoizes listings and assets of inner.
func NewCachedProvider(inner contracts.Provider) contracts.Provider {
	return provider.NewCachedProvider(inner)
}
