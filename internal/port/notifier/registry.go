package notifier

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Factory builds a Notifier from its string settings. It returns
// ErrNotConfigured when the settings leave the sink switched off.
type Factory func(config map[string]string) (Notifier, error)

var registry = struct {
	sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// Register makes a factory available by name. Adapters call it from init;
// registering a name twice panics.
func Register(name string, factory Factory) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.factories[name]; dup {
		panic(fmt.Sprintf("notifier: duplicate registration for %q", name))
	}
	registry.factories[name] = factory
}

// New builds the named notifier.
func New(name string, config map[string]string) (Notifier, error) {
	registry.RLock()
	factory, ok := registry.factories[name]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notifier: unknown provider %q", name)
	}
	return factory(config)
}

// Available returns the registered names in sorted order.
func Available() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Target names a registered notifier and its settings.
type Target struct {
	Name   string
	Config map[string]string
}

// Build creates every target that is configured, in order. Targets
// reporting ErrNotConfigured are skipped silently; other failures are
// joined into the returned error while the remaining targets still build.
func Build(targets ...Target) ([]Notifier, error) {
	var (
		out  []Notifier
		errs []error
	)
	for _, t := range targets {
		n, err := New(t.Name, t.Config)
		switch {
		case errors.Is(err, ErrNotConfigured):
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		default:
			out = append(out, n)
		}
	}
	return out, errors.Join(errs...)
}
