// Package asset holds decoded renderables and the reference counted cache
// they live in. The cache is confined to the main loop goroutine.
package asset

import (
	"image"
	"sort"
)

type Texture struct {
	Image *image.RGBA
}

func NewTexture(img *image.RGBA) *Texture { return &Texture{Image: img} }

func (t *Texture) Valid() bool {
	return t != nil && t.Image != nil && !t.Image.Rect.Empty()
}

func (t *Texture) Size() image.Point {
	if t == nil || t.Image == nil {
		return image.Point{}
	}
	return t.Image.Rect.Size()
}

// Asset is one produced resource. An invalid asset must never be rendered;
// its owner unloads it and treats the key as failed.
type Asset struct {
	Key     string
	Path    string
	Texture *Texture
	Valid   bool
	Video   bool
	Err     error
}

type entry struct {
	asset *Asset
	refs  int
}

type Cache struct {
	entries map[string]*entry
}

func NewCache() *Cache { return &Cache{entries: map[string]*entry{}} }

func (c *Cache) Get(key string) *Asset {
	if e, ok := c.entries[key]; ok {
		return e.asset
	}
	return nil
}

// Insert stores a under its key with refs references. An existing valid entry
// keeps its asset and gains the references; an invalid one is replaced.
func (c *Cache) Insert(a *Asset, refs int) *Asset {
	if a == nil {
		return nil
	}
	if refs < 1 {
		refs = 1
	}
	if e, ok := c.entries[a.Key]; ok {
		if !e.asset.Valid && a.Valid {
			e.asset = a
		}
		e.refs += refs
		return e.asset
	}
	c.entries[a.Key] = &entry{asset: a, refs: refs}
	return a
}

func (c *Cache) Retain(key string) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	e.refs++
	return true
}

// Release drops one reference held through a. A pointer that no longer
// matches the cached entry is stale and ignored. It reports whether the entry
// was removed.
func (c *Cache) Release(a *Asset) bool {
	if a == nil {
		return false
	}
	e, ok := c.entries[a.Key]
	if !ok || e.asset != a {
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	delete(c.entries, a.Key)
	return true
}

func (c *Cache) Refs(key string) int {
	if e, ok := c.entries[key]; ok {
		return e.refs
	}
	return 0
}

func (c *Cache) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Cache) Len() int { return len(c.entries) }

// Clear drops every entry on global teardown.
func (c *Cache) Clear() { c.entries = map[string]*entry{} }
