package gas

import (
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Client)
)

// Register registers a gas provider client.
func Register(c Client) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if c == nil {
		panic("gas: Register client is nil")
	}
	if _, dup := registry[c.Key()]; dup {
		panic("gas: Register called twice for provider " + c.Key())
	}
	registry[c.Key()] = c
}

// Get returns a gas provider client by key.
func Get(key string) (Client, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[key]
	return c, ok
}

// List returns the sorted keys of all registered clients.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var keys []string
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
