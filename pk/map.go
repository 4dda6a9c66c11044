// Package pk maintains the bijection between external product ids and the
// stable integer ids used inside the nearest-neighbor index.
package pk

// IndexID identifies one vector inside the nearest-neighbor index.
// It is assigned once per live product and never recycled for the
// lifetime of the process: the allocator is strictly monotonic even
// across removals.
type IndexID = uint32

// Map is a bijective ProductID <-> IndexID mapping with a monotonic
// allocator. It is not safe for concurrent use; the owning catalog
// serializes access.
type Map struct {
	forward map[string]IndexID
	reverse map[IndexID]string
	nextID  IndexID
}

// NewMap creates an empty identity map.
func NewMap() *Map {
	return &Map{
		forward: make(map[string]IndexID),
		reverse: make(map[IndexID]string),
	}
}

// Allocate assigns a fresh IndexID to productID.
// The caller must have removed any previous mapping for productID first;
// Allocate never reuses retired ids.
func (m *Map) Allocate(productID string) IndexID {
	id := m.nextID
	m.nextID++
	m.forward[productID] = id
	m.reverse[id] = productID
	return id
}

// Lookup returns the IndexID for productID.
func (m *Map) Lookup(productID string) (IndexID, bool) {
	id, ok := m.forward[productID]
	return id, ok
}

// Reverse returns the product id owning the given IndexID.
func (m *Map) Reverse(id IndexID) (string, bool) {
	productID, ok := m.reverse[id]
	return productID, ok
}

// Delete retires the mapping for productID. The IndexID is not returned
// to the allocator. Deleting an unknown product id is a no-op.
func (m *Map) Delete(productID string) {
	id, ok := m.forward[productID]
	if !ok {
		return
	}
	delete(m.forward, productID)
	delete(m.reverse, id)
}

// Len returns the number of live mappings.
func (m *Map) Len() int {
	return len(m.forward)
}

// NextID returns the next id the allocator would hand out.
func (m *Map) NextID() IndexID {
	return m.nextID
}

// Snapshot returns the forward map and allocator position for persistence.
// The returned map is a copy.
func (m *Map) Snapshot() (forward map[string]IndexID, nextID IndexID) {
	out := make(map[string]IndexID, len(m.forward))
	for k, v := range m.forward {
		out[k] = v
	}
	return out, m.nextID
}

// Restore rebuilds the map, including the reverse direction, from a
// persisted forward map and allocator position.
func Restore(forward map[string]IndexID, nextID IndexID) *Map {
	m := &Map{
		forward: make(map[string]IndexID, len(forward)),
		reverse: make(map[IndexID]string, len(forward)),
		nextID:  nextID,
	}
	for productID, id := range forward {
		m.forward[productID] = id
		m.reverse[id] = productID
	}
	return m
}
