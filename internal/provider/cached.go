package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"golang.org/x/sync/singleflight"
)

// CachedProvider wraps another provider and memoizes successful List and
// Fetch results. Concurrent misses for the same key share one call to the
// inner provider. Errors are never cached.
type CachedProvider struct {
	inner contracts.Provider
	group singleflight.Group

	mu     sync.RWMutex
	list   []contracts.Instrument
	listed bool
	assets map[string][]byte
}

// NewCachedProvider wraps inner.
func NewCachedProvider(inner contracts.Provider) *CachedProvider {
	return &CachedProvider{inner: inner, assets: make(map[string][]byte)}
}

// Name implements contracts.Provider.
func (p *CachedProvider) Name() string {
	return "cached:" + p.inner.Name()
}

// List returns the memoized listing, calling the inner provider on first use.
func (p *CachedProvider) List(ctx context.Context) ([]contracts.Instrument, error) {
	p.mu.RLock()
	if p.listed {
		out := append([]contracts.Instrument(nil), p.list...)
		p.mu.RUnlock()
		return out, nil
	}
	p.mu.RUnlock()

	v, err, _ := p.group.Do("list", func() (any, error) {
		list, err := p.inner.List(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.list = append([]contracts.Instrument(nil), list...)
		p.listed = true
		p.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]contracts.Instrument(nil), v.([]contracts.Instrument)...), nil
}

// Fetch returns the memoized asset bytes, reading them from the inner provider on first use.
func (p *CachedProvider) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	p.mu.RLock()
	data, ok := p.assets[id]
	p.mu.RUnlock()
	if ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	v, err, _ := p.group.Do("fetch:"+id, func() (any, error) {
		rc, err := p.inner.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", contracts.ErrNetworkFailure, id, err)
		}
		p.mu.Lock()
		p.assets[id] = data
		p.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(v.([]byte))), nil
}

// Forget drops the memoized asset for id, e.g. after it failed verification.
func (p *CachedProvider) Forget(id string) {
	p.mu.Lock()
	delete(p.assets, id)
	p.mu.Unlock()
}

// Invalidate drops every memoized result.
func (p *CachedProvider) Invalidate() {
	p.mu.Lock()
	p.list = nil
	p.listed = false
	p.assets = make(map[string][]byte)
	p.mu.Unlock()
}
