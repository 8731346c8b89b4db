package assets

import (
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-renderer/gpu"
	"scene-renderer/math"
	"scene-renderer/scene"
)

func writeGLB(t *testing.T, build func(doc *gltf.Document)) string {
	t.Helper()
	doc := gltf.NewDocument()
	build(doc)
	path := filepath.Join(t.TempDir(), "model.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func triangle(doc *gltf.Document, material *int) *gltf.Primitive {
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	return &gltf.Primitive{
		Indices:    gltf.Index(idx),
		Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos, gltf.NORMAL: nrm},
		Material:   material,
	}
}

func TestLoadGLTFHierarchy(t *testing.T) {
	path := writeGLB(t, func(doc *gltf.Document) {
		doc.Materials = []*gltf.Material{{
			Name:      "glass",
			AlphaMode: gltf.AlphaBlend,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &[4]float64{1, 0, 0, 0.5},
				MetallicFactor:  gltf.Float(0.25),
			},
		}}
		doc.Meshes = []*gltf.Mesh{{Name: "tri", Primitives: []*gltf.Primitive{triangle(doc, gltf.Index(0))}}}
		doc.Nodes = []*gltf.Node{
			{Name: "parent", Children: []int{1}, Translation: [3]float64{1, 2, 3}},
			{Name: "child", Mesh: gltf.Index(0)},
		}
		doc.Scenes[0].Nodes = []int{0}
	})

	res, err := LoadGLTF(path, GLTFOptions{})
	require.NoError(t, err)
	require.Len(t, res.Roots, 1)
	root := res.Roots[0]
	assert.Equal(t, "parent", root.Name)
	assert.Equal(t, math.Vec3{X: 1, Y: 2, Z: 3}, root.Transform.Position)

	child := root.Find("child")
	require.NotNil(t, child)
	require.NotNil(t, child.Renderable)
	g := child.Renderable.Geometry
	assert.Equal(t, "tri", g.Name)
	assert.Equal(t, 3, g.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2}, g.Indices())
	assert.Len(t, g.Normals(), 3)
	assert.Equal(t, gpu.Triangles, g.Mode)

	m := child.Renderable.Material
	assert.Equal(t, "glass", m.Name)
	assert.Equal(t, scene.KindPBR, m.Kind())
	assert.True(t, m.State.Transparent())
	params := m.Params.(scene.PBRParams)
	assert.InDelta(t, 0.5, params.BaseColor.A, 1e-6)
	assert.InDelta(t, 0.25, params.Metallic, 1e-6)
	assert.Len(t, res.Geometries, 1)
}

func TestLoadGLTFMultiplePrimitivesSplitIntoChildren(t *testing.T) {
	path := writeGLB(t, func(doc *gltf.Document) {
		doc.Meshes = []*gltf.Mesh{{Name: "pair", Primitives: []*gltf.Primitive{triangle(doc, nil), triangle(doc, nil)}}}
		doc.Nodes = []*gltf.Node{{Name: "pair", Mesh: gltf.Index(0)}}
		doc.Scenes[0].Nodes = []int{0}
	})

	res, err := LoadGLTF(path, GLTFOptions{})
	require.NoError(t, err)
	require.Len(t, res.Roots, 1)
	assert.Nil(t, res.Roots[0].Renderable)
	children := res.Roots[0].Children()
	require.Len(t, children, 2)
	assert.Equal(t, "pair.0", children[0].Name)
	assert.Equal(t, "Default", children[1].Renderable.Material.Name)
}

func TestLoadGLTFSkipsPrimitiveWithoutPositions(t *testing.T) {
	path := writeGLB(t, func(doc *gltf.Document) {
		doc.Meshes = []*gltf.Mesh{{Name: "empty", Primitives: []*gltf.Primitive{{Attributes: gltf.PrimitiveAttributes{}}}}}
		doc.Nodes = []*gltf.Node{{Name: "n", Mesh: gltf.Index(0)}}
		doc.Scenes[0].Nodes = []int{0}
	})

	res, err := LoadGLTF(path, GLTFOptions{})
	require.NoError(t, err)
	require.Len(t, res.Roots, 1)
	assert.Nil(t, res.Roots[0].Renderable)
	assert.Empty(t, res.Geometries)
}

func TestLoadGLTFMissingFile(t *testing.T) {
	_, err := LoadGLTF(filepath.Join(t.TempDir(), "nope.glb"), GLTFOptions{})
	assert.ErrorContains(t, err, "gltf open")
}
