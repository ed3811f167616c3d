package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pario-ai/switchboard/pkg/config"
)

// ErrUnknownSource is returned when a source name has no adapter mapping.
var ErrUnknownSource = errors.New("unknown source")

// Route is the resolved adapter endpoint for a source.
type Route struct {
	Adapter config.AdapterConfig
	URL     string
	Method  string
}

// Router resolves source names against the static adapter table.
type Router struct {
	index map[string]config.AdapterConfig
}

// New creates a Router from the configured adapters.
func New(adapters []config.AdapterConfig) *Router {
	index := make(map[string]config.AdapterConfig, len(adapters))
	for _, a := range adapters {
		index[strings.ToLower(a.Name)] = a
	}
	return &Router{index: index}
}

// Resolve returns the route for a source name. Names are case-insensitive.
func (r *Router) Resolve(source string) (Route, error) {
	a, ok := r.index[strings.ToLower(strings.TrimSpace(source))]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return Route{
		Adapter: a,
		URL:     a.URL + a.Path,
		Method:  a.Method(),
	}, nil
}

// Sources returns the configured source names in sorted order.
func (r *Router) Sources() []string {
	names := make([]string, 0, len(r.index))
	for name := range r.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adapters returns the configured adapters sorted by name.
func (r *Router) Adapters() []config.AdapterConfig {
	out := make([]config.AdapterConfig, 0, len(r.index))
	for _, name := range r.Sources() {
		out = append(out, r.index[name])
	}
	return out
}
