package runtime

import "maps"

// ContextStore is the key/value memory shared by every state of a machine.
// Values are untyped and last-write-wins. It is not safe for concurrent use;
// the machine that owns it is driven by one caller at a time.
type ContextStore struct {
	data map[string]any
}

// NewContextStore creates an empty store.
func NewContextStore() *ContextStore {
	return &ContextStore{data: make(map[string]any)}
}

// Get returns the value stored under key and whether it was present.
func (c *ContextStore) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (c *ContextStore) Set(key string, value any) {
	c.data[key] = value
}

// Merge stores every entry of values.
func (c *ContextStore) Merge(values map[string]any) {
	maps.Copy(c.data, values)
}

// Snapshot returns a shallow copy of the stored data.
func (c *ContextStore) Snapshot() map[string]any {
	return maps.Clone(c.data)
}

// Len returns the number of stored keys.
func (c *ContextStore) Len() int {
	return len(c.data)
}

// Clear removes every key.
func (c *ContextStore) Clear() {
	clear(c.data)
}
