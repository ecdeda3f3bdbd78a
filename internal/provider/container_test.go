package provider

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

func TestRefreshCatalog(t *testing.T) {
	p := newStub("one", map[string][]byte{"a": []byte("1")})
	c := NewContainer(p, nil)

	if err := c.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("RefreshCatalog: %v", err)
	}
	list := c.Catalog()
	if len(list) != 1 || list[0].ID != "a" {
		t.Fatalf("Catalog() = %+v", list)
	}
}

func TestRefreshCatalogFailureKeepsCatalog(t *testing.T) {
	p := newStub("one", map[string][]byte{"a": []byte("1")})
	c := NewContainer(p, nil)
	if err := c.RefreshCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.listErr = contracts.ErrNetworkFailure
	err := c.RefreshCatalog(context.Background())
	if !errors.Is(err, contracts.ErrNetworkFailure) {
		t.Fatalf("err = %v, want ErrNetworkFailure", err)
	}
	if n := len(c.Catalog()); n != 1 {
		t.Fatalf("catalog has %d entries after failed refresh, want 1", n)
	}
}

func TestRefreshCatalogRejectsDuplicates(t *testing.T) {
	p := newStub("dup", nil)
	p.list = []contracts.Instrument{{ID: "a"}, {ID: "a"}}
	c := NewContainer(p, nil)

	if err := c.RefreshCatalog(context.Background()); !errors.Is(err, contracts.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if len(c.Catalog()) != 0 {
		t.Fatal("catalog modified by invalid listing")
	}
}

func TestSetProviderClearsCatalog(t *testing.T) {
	c := NewContainer(newStub("one", map[string][]byte{"a": nil}), nil)
	_ = c.RefreshCatalog(context.Background())

	gen := c.Generation()
	if err := c.SetProvider(newStub("two", nil)); err != nil {
		t.Fatalf("SetProvider: %v", err)
	}
	if c.CurrentProvider().Name() != "two" {
		t.Errorf("provider = %s, want two", c.CurrentProvider().Name())
	}
	if len(c.Catalog()) != 0 {
		t.Error("catalog not cleared on provider switch")
	}
	if c.Generation() != gen+1 {
		t.Errorf("generation = %d, want %d", c.Generation(), gen+1)
	}
}

func TestSetProviderRejectedDuringInstall(t *testing.T) {
	c := NewContainer(newStub("one", nil), nil)

	lease, err := c.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := c.SetProvider(newStub("two", nil)); !errors.Is(err, contracts.ErrInvalidState) {
		t.Fatalf("SetProvider during install err = %v, want ErrInvalidState", err)
	}

	lease.Release()
	lease.Release() // idempotent
	if err := c.SetProvider(newStub("two", nil)); err != nil {
		t.Fatalf("SetProvider after release: %v", err)
	}
}

func TestAcquireWithoutProvider(t *testing.T) {
	c := NewContainer(nil, nil)
	if _, err := c.Acquire(); !errors.Is(err, contracts.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if err := c.SetProvider(nil); !errors.Is(err, contracts.ErrInvalidState) {
		t.Fatalf("SetProvider(nil) err = %v, want ErrInvalidState", err)
	}
}

func TestContainerConcurrentAccess(t *testing.T) {
	c := NewContainer(newStub("one", map[string][]byte{"a": nil, "b": nil}), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.RefreshCatalog(context.Background())
			_ = c.Catalog()
		}()
		go func() {
			defer wg.Done()
			_ = c.SetProvider(newStub("other", map[string][]byte{"c": nil}))
		}()
	}
	wg.Wait()

	for _, inst := range c.Catalog() {
		if inst.ID != "c" {
			t.Fatalf("catalog holds %q from a replaced provider", inst.ID)
		}
	}
}
