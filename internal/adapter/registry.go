package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/amishk599/jobagg/internal/model"
)

// SourceInfo describes a registered source for listings such as /sources.
type SourceInfo struct {
	Name        string `json:"name"`
	Format      string `json:"format"`
	Description string `json:"description"`
}

// Registry holds the sources available to runs. It is built once at startup
// and passed to whoever needs it.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]model.Source
	info    map[string]SourceInfo
}

func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]model.Source),
		info:    make(map[string]SourceInfo),
	}
}

// Register adds src under src.Name(). Registering the same name twice is an error.
func (r *Registry) Register(src model.Source, info SourceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if _, ok := r.sources[name]; ok {
		return fmt.Errorf("source %q already registered", name)
	}
	info.Name = name
	r.sources[name] = src
	r.info[name] = info
	return nil
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (model.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns info for every registered source, sorted by name.
func (r *Registry) Describe() []SourceInfo {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceInfo, 0, len(names))
	for _, name := range names {
		out = append(out, r.info[name])
	}
	return out
}

// Catalog describes every source this package implements, keyed by name.
var Catalog = map[string]SourceInfo{
	"remoteok":       {Name: "remoteok", Format: "json", Description: "RemoteOK public feed"},
	"remotive":       {Name: "remotive", Format: "json", Description: "Remotive remote-jobs API"},
	"adzuna":         {Name: "adzuna", Format: "json", Description: "Adzuna search API (app id and key required)"},
	"authenticjobs":  {Name: "authenticjobs", Format: "rss", Description: "Authentic Jobs RSS feed"},
	"weworkremotely": {Name: "weworkremotely", Format: "html", Description: "We Work Remotely category listings"},
	"greenhouse":     {Name: "greenhouse", Format: "json", Description: "Greenhouse company boards"},
	"lever":          {Name: "lever", Format: "json", Description: "Lever company boards"},
	"ashby":          {Name: "ashby", Format: "json", Description: "Ashby company boards"},
	"gem":            {Name: "gem", Format: "json", Description: "Gem company boards"},
}
