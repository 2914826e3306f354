// Package tags replaces the engine's global gameplay-tag table with an
// explicit registry that is built by the caller and injected where needed.
package tags

import (
	"sort"
	"strings"
	"sync"

	"github.com/KirkDiggler/pcg-director/internal/errors"
)

// Category groups tags by the root segment of their key
type Category int

const (
	CategoryUnknown Category = iota
	CategoryAggression
	CategoryObstacle
	CategoryAtmosphere
)

// Root key segments for each category
const (
	RootAggression = "Aggro"
	RootObstacle   = "Obstacle"
	RootAtmosphere = "Atmosphere"
)

const separator = "."

var categoryRoots = map[Category]string{
	CategoryAggression: RootAggression,
	CategoryObstacle:   RootObstacle,
	CategoryAtmosphere: RootAtmosphere,
}

// Root returns the key prefix for the category, empty for CategoryUnknown
func (c Category) Root() string {
	return categoryRoots[c]
}

// String returns the root segment or "Unknown"
func (c Category) String() string {
	if root, ok := categoryRoots[c]; ok {
		return root
	}
	return "Unknown"
}

// CategoryOf returns the category selected by the root segment of key
func CategoryOf(key string) Category {
	root, _, _ := strings.Cut(key, separator)
	for c, r := range categoryRoots {
		if r == root {
			return c
		}
	}
	return CategoryUnknown
}

// Tag is an enumerated category value identified by a hierarchical key such
// as "Atmosphere.Dark_Foggy". The zero value is the invalid tag.
type Tag struct {
	Key      string
	Category Category
}

// MarshalText encodes the tag as its key so JSON carries "Aggro.High"
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.Key), nil
}

// UnmarshalText restores a tag from its key. The category is derived from the
// root segment; the registry is not consulted.
func (t *Tag) UnmarshalText(text []byte) error {
	t.Key = string(text)
	t.Category = CategoryOf(t.Key)
	if t.Key == "" {
		t.Category = CategoryUnknown
	}
	return nil
}

// IsValid reports whether the tag came out of a registry
func (t Tag) IsValid() bool {
	return t.Key != "" && t.Category != CategoryUnknown
}

// String returns the tag key
func (t Tag) String() string {
	return t.Key
}

// Leaf returns the last segment of the key
func (t Tag) Leaf() string {
	if i := strings.LastIndex(t.Key, separator); i >= 0 {
		return t.Key[i+1:]
	}
	return t.Key
}

// ErrUnknownTag is matched (via errors.Is) by every failed lookup
var ErrUnknownTag = errors.NotFound("tag not registered")

// Registry maps hierarchical keys to tags. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	tags map[string]Tag
}

// NewRegistry creates a registry holding the given keys
func NewRegistry(keys ...string) (*Registry, error) {
	r := &Registry{tags: make(map[string]Tag, len(keys))}
	for _, key := range keys {
		if _, err := r.Register(key); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultKeys is the vocabulary the analysis service emits
var DefaultKeys = []string{
	"Aggro.Low",
	"Aggro.Medium",
	"Aggro.High",
	"Obstacle.Cover",
	"Obstacle.Trap",
	"Obstacle.OpenArea",
	"Obstacle.Dense",
	"Atmosphere.Dark_Foggy",
	"Atmosphere.Bright_Clear",
	"Atmosphere.Red_Alarm",
}

// DefaultRegistry returns a fresh registry holding DefaultKeys
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultKeys...)
	if err != nil {
		// DefaultKeys are static
		panic(err)
	}
	return r
}

// Register adds key to the registry. Keys must have a known root and a
// non-empty leaf. Registering an existing key is a no-op.
func (r *Registry) Register(key string) (Tag, error) {
	root, leaf, found := strings.Cut(key, separator)
	if !found || leaf == "" {
		return Tag{}, errors.InvalidArgumentf("tag key %q must look like Root.Leaf", key)
	}
	category := CategoryOf(root)
	if category == CategoryUnknown {
		return Tag{}, errors.InvalidArgumentf("unknown tag category: %s", root).WithMeta("tag", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tags[key]; ok {
		return existing, nil
	}
	tag := Tag{Key: key, Category: category}
	r.tags[key] = tag
	return tag, nil
}

// Resolve looks up an exact key
func (r *Registry) Resolve(key string) (Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag, ok := r.tags[key]
	if !ok {
		return Tag{}, errors.Wrap(ErrUnknownTag, "tag not registered").WithMeta("tag", key)
	}
	return tag, nil
}

// ResolveIn looks up value inside category. value may be a full key
// ("Aggro.High") or a bare leaf ("High"); a full key that belongs to another
// category does not resolve.
func (r *Registry) ResolveIn(category Category, value string) (Tag, error) {
	root := category.Root()
	if root == "" {
		return Tag{}, errors.InvalidArgumentf("cannot resolve %q in unknown category", value)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return Tag{}, errors.Wrap(ErrUnknownTag, "empty tag value").WithMeta("category", root)
	}

	key := value
	if !strings.HasPrefix(value, root+separator) {
		if CategoryOf(value) != CategoryUnknown {
			return Tag{}, errors.Wrap(ErrUnknownTag, "tag belongs to another category").
				WithMeta("tag", value).
				WithMeta("category", root)
		}
		key = root + separator + value
	}

	return r.Resolve(key)
}

// Keys returns every registered key in sorted order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.tags))
	for k := range r.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
