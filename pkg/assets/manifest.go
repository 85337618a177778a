// Package assets moves stylesheets, styles and scripts from fetched markup
// into the live document before it is reconciled.
//
// Assets are never diffed. The loader appends every asset of a response
// that the live document does not hold yet, deduplicating by URL (src or
// href), then by id, then by inline content:
//
//	loader := assets.NewLoader(resolver, httpClient, true, logger)
//	scripts := loader.Insert(liveDoc, responseDoc)
//	err := loader.Wait(ctx, scripts) // every new external script has loaded
package assets

import "sync"

// Manifest records which assets have been seen, by dedupe key. It is safe
// for concurrent use.
type Manifest struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]string),
	}
}

// Has returns true if the manifest contains key.
func (m *Manifest) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[key]
	return ok
}

// Get returns the value recorded for key.
func (m *Manifest) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	return v, ok
}

// Set adds or updates an entry.
func (m *Manifest) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
}

// Len returns the number of entries in the manifest.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// All returns a copy of all manifest entries.
func (m *Manifest) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		result[k] = v
	}
	return result
}
