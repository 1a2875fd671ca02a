package mailbox

import (
	"sort"
	"sync"

	"github.com/LarsHaalck/neomutt/errors"
)

// Config contains settings for opening a mailbox.
type Config struct {
	// Type is the backend name (e.g. "maildir"). Leave empty to detect
	// the backend by probing the path.
	Type string

	// Path is the mailbox root.
	Path string

	// Options contains backend-specific settings.
	Options map[string]string
}

// Backend is the operations table a mailbox backend registers.
type Backend struct {
	// Name identifies the backend in Config.Type.
	Name string

	// Open opens a mailbox handle for the configured path.
	Open func(config Config) (Mailbox, error)

	// Probe reports whether the path looks like this backend's format.
	Probe func(path string) bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Backend)
)

// Register adds a backend to the registry.
// It panics if called with an empty name or nil Open function,
// or if the name is already registered.
func Register(b Backend) {
	if b.Name == "" {
		panic("mailbox: Register called with empty name")
	}
	if b.Open == nil {
		panic("mailbox: Register called with nil Open")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[b.Name]; exists {
		panic("mailbox: Register called twice for " + b.Name)
	}
	registry[b.Name] = b
}

// Open opens a mailbox using the registered backend for the config type.
// When the type is empty, the path is probed against every registered
// backend.
func Open(config Config) (Mailbox, error) {
	if config.Type == "" {
		name, ok := Detect(config.Path)
		if !ok {
			return nil, errors.ErrBackendUnknown
		}
		config.Type = name
	}

	registryMu.RLock()
	b, ok := registry[config.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.ErrBackendNotRegistered
	}
	return b.Open(config)
}

// Detect probes the path against every registered backend and returns the
// name of the first one that recognizes it.
func Detect(path string) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range registeredLocked() {
		b := registry[name]
		if b.Probe != nil && b.Probe(path) {
			return name, true
		}
	}
	return "", false
}

// RegisteredTypes returns a sorted list of registered backend names.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registeredLocked()
}

func registeredLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
