package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// stubProvider is an in-memory provider that counts calls.
type stubProvider struct {
	name    string
	list    []contracts.Instrument
	listErr error
	assets  map[string][]byte

	mu         sync.Mutex
	listCalls  int
	fetchCalls map[string]int
}

func newStub(name string, assets map[string][]byte) *stubProvider {
	s := &stubProvider{name: name, assets: assets, fetchCalls: make(map[string]int)}
	for id, data := range assets {
		s.list = append(s.list, contracts.Instrument{ID: id, Name: id, Size: int64(len(data))})
	}
	return s
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) List(ctx context.Context) ([]contracts.Instrument, error) {
	s.mu.Lock()
	s.listCalls++
	s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]contracts.Instrument(nil), s.list...), nil
}

func (s *stubProvider) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.fetchCalls[id]++
	s.mu.Unlock()
	data, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNotFound, id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubProvider) fetches(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls[id]
}
