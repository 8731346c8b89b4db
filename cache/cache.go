// Package cache keeps exactly one GPU copy of every geometry, texture and
// render target descriptor the renderer draws with, and keeps that copy in
// step with the descriptor's version.
package cache

import (
	"fmt"
	"log/slog"

	"scene-renderer/gpu"
	"scene-renderer/internal/logging"
	"scene-renderer/scene"
)

// ResourceError tags an allocation or upload failure with its descriptor.
type ResourceError struct {
	Kind string
	Name string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("cache: %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Stats counts cache traffic since the cache was created.
type Stats struct {
	Hits           uint64
	Misses         uint64
	Uploads        uint64
	Reuploads      uint64
	PartialUpdates uint64
	Destroys       uint64
	Evictions      uint64
}

// HitRate is hits over all acquires, or 1 when nothing was acquired.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 1
	}
	return float64(s.Hits) / float64(total)
}

// Sub returns the traffic between an earlier snapshot and s.
func (s Stats) Sub(earlier Stats) Stats {
	return Stats{
		Hits:           s.Hits - earlier.Hits,
		Misses:         s.Misses - earlier.Misses,
		Uploads:        s.Uploads - earlier.Uploads,
		Reuploads:      s.Reuploads - earlier.Reuploads,
		PartialUpdates: s.PartialUpdates - earlier.PartialUpdates,
		Destroys:       s.Destroys - earlier.Destroys,
		Evictions:      s.Evictions - earlier.Evictions,
	}
}

// Cache maps CPU-side descriptors to GPU handles. It is used from the render
// thread only.
type Cache struct {
	dev   gpu.Device
	log   *slog.Logger
	frame uint64
	stats Stats

	geometries *table[*scene.Geometry, gpu.Mesh, gpu.Signature]
	textures   *table[*scene.Texture, gpu.Texture, textureStorage]
	targets    *table[*Target, targetHandles, gpu.TargetDesc]

	placeholder     gpu.Texture
	placeholderLive bool
}

func New(dev gpu.Device, log *slog.Logger) *Cache {
	c := &Cache{dev: dev, log: logging.Component(log, "cache")}
	c.geometries = newTable[*scene.Geometry, gpu.Mesh, gpu.Signature]("geometry", geometryUploader{dev})
	c.textures = newTable[*scene.Texture, gpu.Texture, textureStorage]("texture", textureUploader{dev})
	c.targets = newTable[*Target, targetHandles, gpu.TargetDesc]("target", targetUploader{dev})
	return c
}

// BeginFrame advances the frame counter used for idle eviction.
func (c *Cache) BeginFrame() {
	c.frame++
}

// EndFrame destroys the resources released to zero during the frame.
func (c *Cache) EndFrame() {
	c.geometries.flush(c)
	c.textures.flush(c)
	c.targets.flush(c)
}

func (c *Cache) Frame() uint64 { return c.frame }

// InvalidateAll forgets every handle after a context loss. It issues no GPU
// calls; every descriptor is uploaded again on its next acquire.
func (c *Cache) InvalidateAll() {
	c.geometries.invalidate()
	c.textures.invalidate()
	c.targets.invalidate()
	c.placeholder = 0
	c.placeholderLive = false
	c.log.Info("invalidated all GPU resources")
}

// EvictIdle frees the GPU memory of geometries and textures unused for more
// than frames frames. Render targets are never evicted.
func (c *Cache) EvictIdle(frames uint64) int {
	n := c.geometries.evict(c, frames) + c.textures.evict(c, frames)
	if n > 0 {
		c.log.Debug("evicted idle resources", slog.Int("count", n))
	}
	return n
}

// Destroy frees every resource the cache holds.
func (c *Cache) Destroy() {
	c.geometries.destroyAll(c)
	c.textures.destroyAll(c)
	c.targets.destroyAll(c)
	if c.placeholderLive {
		c.dev.DeleteTexture(c.placeholder)
		c.placeholderLive = false
	}
}

func (c *Cache) Stats() Stats { return c.stats }

// Resident returns how many geometries, textures and targets currently hold
// GPU memory.
func (c *Cache) Resident() (geometries, textures, targets int) {
	return c.geometries.resident(), c.textures.resident(), c.targets.resident()
}
