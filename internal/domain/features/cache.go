package features

import (
	"sort"

	"github.com/okian/repsense/internal/domain/model"
)

// Cache holds one tick's feature values. It is filled once by
// Registry.Compute and read-only afterwards; there is no exported setter.
type Cache struct {
	values map[Name]float64
}

func newCache(n int) *Cache {
	return &Cache{values: make(map[Name]float64, n)}
}

// Get returns the value of name and whether it was available this tick.
func (c *Cache) Get(name Name) (float64, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c.values[name]
	return v, ok
}

// Has reports whether name is present.
func (c *Cache) Has(name Name) bool {
	_, ok := c.Get(name)
	return ok
}

// Len returns the number of available features.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

// Names returns the available feature names in sorted order.
func (c *Cache) Names() []Name {
	if c == nil {
		return nil
	}
	out := make([]Name, 0, len(c.values))
	for n := range c.values {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot copies the values into a plain map for serialization.
func (c *Cache) Snapshot() map[string]float64 {
	out := make(map[string]float64, c.Len())
	if c == nil {
		return out
	}
	for n, v := range c.values {
		out[string(n)] = v
	}
	return out
}

// ForearmDir returns the camera-observed forearm direction of the tick.
func (c *Cache) ForearmDir() (model.Vec3, bool) { return c.vec(ForearmDirX, ForearmDirY, ForearmDirZ) }

// HeadDir returns the camera-observed head-forward direction of the tick.
func (c *Cache) HeadDir() (model.Vec3, bool) { return c.vec(HeadDirX, HeadDirY, HeadDirZ) }

func (c *Cache) vec(x, y, z Name) (model.Vec3, bool) {
	vx, okx := c.Get(x)
	vy, oky := c.Get(y)
	vz, okz := c.Get(z)
	return model.Vec3{X: vx, Y: vy, Z: vz}, okx && oky && okz
}

// Empty is a cache with no features, used for unsupported ticks.
func Empty() *Cache { return newCache(0) }
