package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the optional index of a local provider directory.
const ManifestFile = "instruments.yaml"

type localManifest struct {
	Instruments []contracts.Instrument `yaml:"instruments"`
}

// LocalProvider serves instruments from a directory. When the directory has
// an instruments.yaml manifest it is authoritative; otherwise every regular,
// non-hidden file is an instrument whose ID is the file name without
// extension.
type LocalProvider struct {
	root string
}

// NewLocalProvider creates a provider rooted at dir.
func NewLocalProvider(dir string) (*LocalProvider, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving provider directory %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapFSError(err, abs)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", contracts.ErrNotFound, abs)
	}
	return &LocalProvider{root: abs}, nil
}

// Name implements contracts.Provider.
func (p *LocalProvider) Name() string {
	return "local:" + p.root
}

// List reads the manifest or scans the directory.
func (p *LocalProvider) List(ctx context.Context) ([]contracts.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrCancelled, err)
	}

	data, err := os.ReadFile(filepath.Join(p.root, ManifestFile))
	switch {
	case err == nil:
		var m localManifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", contracts.ErrInvalidManifest, ManifestFile, err)
		}
		for i := range m.Instruments {
			if m.Instruments[i].Locator == "" {
				m.Instruments[i].Locator = m.Instruments[i].ID
			}
		}
		return m.Instruments, nil
	case errors.Is(err, fs.ErrNotExist):
		return p.scan()
	default:
		return nil, mapFSError(err, ManifestFile)
	}
}

func (p *LocalProvider) scan() ([]contracts.Instrument, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, mapFSError(err, p.root)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []contracts.Instrument
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, mapFSError(err, name)
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		out = append(out, contracts.Instrument{
			ID:      id,
			Name:    id,
			Locator: name,
			Size:    info.Size(),
		})
	}
	return out, nil
}

// Fetch opens the asset for id. Locators may not escape the provider root.
func (p *LocalProvider) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrCancelled, err)
	}

	list, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, inst := range list {
		if inst.ID != id {
			continue
		}
		path, err := p.resolve(inst.Locator)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, mapFSError(err, inst.Locator)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: instrument %q in %s", contracts.ErrNotFound, id, p.root)
}

func (p *LocalProvider) resolve(locator string) (string, error) {
	locator = strings.TrimPrefix(locator, "file://")
	path := locator
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.root, locator)
	}
	rel, err := filepath.Rel(p.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: locator %q escapes %s", contracts.ErrPermissionDenied, locator, p.root)
	}
	return path, nil
}

func mapFSError(err error, what string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %v", contracts.ErrNotFound, what, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %v", contracts.ErrPermissionDenied, what, err)
	default:
		return fmt.Errorf("%w: %s: %v", contracts.ErrIOFailure, what, err)
	}
}
