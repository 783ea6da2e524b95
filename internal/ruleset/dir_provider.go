package ruleset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"guardrail/internal/logging"
)

// DirProvider resolves rule sets from YAML files in a directory. The set
// identifier is the file name without its extension. Files are parsed on
// first access and cached; Reload drops the cache.
type DirProvider struct {
	dir    string
	logger logging.Logger

	mu    sync.RWMutex
	cache map[string]*Set
}

// NewDirProvider creates a provider rooted at dir.
func NewDirProvider(dir string, logger logging.Logger) *DirProvider {
	return &DirProvider{
		dir:    dir,
		logger: logging.OrNop(logger),
		cache:  make(map[string]*Set),
	}
}

// Get resolves a rule set by identifier.
func (p *DirProvider) Get(name string) (*Set, error) {
	if strings.ContainsAny(name, `/\`) || name == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	p.mu.RLock()
	cached, ok := p.cache[name]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	set, err := p.load(name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[name] = set
	p.mu.Unlock()
	return set, nil
}

func (p *DirProvider) load(name string) (*Set, error) {
	var data []byte
	var err error
	for _, ext := range []string{".yaml", ".yml"} {
		data, err = os.ReadFile(filepath.Join(p.dir, name+ext))
		if err == nil {
			break
		}
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read rule set %q: %w", name, err)
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse rule set %q: %w", name, err)
	}
	if set.Name == "" {
		set.Name = name
	}

	// Fill in missing numbers from position so authors can omit them.
	for i := range set.Guidelines {
		if set.Guidelines[i].Number == 0 {
			set.Guidelines[i].Number = i + 1
		}
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}

	p.logger.Debug("loaded rule set %q with %d guidelines", name, len(set.Guidelines))
	return &set, nil
}

// List returns the identifiers of every YAML file in the directory.
func (p *DirProvider) List() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// Reload drops the parse cache so edited files are picked up.
func (p *DirProvider) Reload() {
	p.mu.Lock()
	p.cache = make(map[string]*Set)
	p.mu.Unlock()
}
