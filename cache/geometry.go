package cache

import (
	"scene-renderer/gpu"
	"scene-renderer/scene"
)

type geometryUploader struct {
	dev gpu.Device
}

func (geometryUploader) version(g *scene.Geometry) uint64 { return g.Version() }
func (geometryUploader) label(g *scene.Geometry) string   { return g.Name }

func (geometryUploader) signature(g *scene.Geometry) gpu.Signature {
	l := g.Layout()
	return gpu.Signature{Layout: l, Vertices: g.VertexCount() * int(l.Stride()), Indices: len(g.Indices())}
}

func (u geometryUploader) create(g *scene.Geometry) (gpu.Mesh, error) {
	return u.dev.CreateMesh(g.MeshData())
}

func (u geometryUploader) update(m gpu.Mesh, g *scene.Geometry) error {
	return u.dev.UpdateMesh(m, g.MeshData())
}

func (u geometryUploader) destroy(m gpu.Mesh) { u.dev.DeleteMesh(m) }

// AcquireGeometry returns the mesh for g, uploading it on first use and
// whenever g's version changed. Same-sized edits update the mesh in place.
func (c *Cache) AcquireGeometry(g *scene.Geometry) (gpu.Mesh, error) {
	return c.geometries.acquire(c, g)
}

// RetainGeometry adds an owner to an acquired geometry.
func (c *Cache) RetainGeometry(g *scene.Geometry) bool {
	return c.geometries.retain(g)
}

// ReleaseGeometry drops an owner; the mesh is destroyed at EndFrame once no
// owner is left and it was not acquired again in the meantime.
func (c *Cache) ReleaseGeometry(g *scene.Geometry) bool {
	return c.geometries.release(g)
}

// LookupGeometry returns the resident mesh for g without uploading.
func (c *Cache) LookupGeometry(g *scene.Geometry) (gpu.Mesh, bool) {
	return c.geometries.lookup(g)
}
