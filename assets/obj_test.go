package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-renderer/math"
	"scene-renderer/scene"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

const quadOBJ = `# two objects
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
o quad
usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
o tri
usemtl glass
f -4 -3 -2
`

const quadMTL = `newmtl red
Kd 1 0 0
Ks 0.5 0.5 0.5
Ns 64
map_Kd checker.png

newmtl glass
Kd 0 0 1
d 0.25
`

func TestLoadOBJ(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"quad.obj": quadOBJ,
		"quad.mtl": quadMTL,
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checker.png"), encodePNG(t, checker(2, 2)), 0o600))

	res, err := LoadOBJ(filepath.Join(dir, "quad.obj"), OBJOptions{})
	require.NoError(t, err)
	assert.Equal(t, "quad", res.Root.Name)
	children := res.Root.Children()
	require.Len(t, children, 2)

	quad := children[0]
	assert.Equal(t, "quad", quad.Name)
	g := quad.Renderable.Geometry
	assert.Equal(t, 4, g.VertexCount(), "shared corners are deduplicated")
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, g.Indices())
	assert.Len(t, g.UVs(), 4)
	assert.Equal(t, math.Vec2{X: 0, Y: 1}, g.UVs()[0], "v is flipped")

	red := quad.Renderable.Material
	assert.Equal(t, scene.KindPhong, red.Kind())
	params := red.Params.(scene.PhongParams)
	assert.Equal(t, float32(64), params.Shininess)
	require.NotNil(t, params.Map)
	assert.True(t, params.Map.Ready())

	tri := children[1]
	assert.Equal(t, 3, tri.Renderable.Geometry.VertexCount())
	assert.Empty(t, tri.Renderable.Geometry.UVs())
	assert.True(t, tri.Renderable.Material.Transparent())
	for _, n := range tri.Renderable.Geometry.Normals() {
		assert.InDelta(t, 1, n.Z, 1e-5, "generated normals face +Z")
	}
}

func TestLoadOBJMaterialSwitchSplitsObject(t *testing.T) {
	dir := writeFiles(t, map[string]string{"split.obj": `v 0 0 0
v 1 0 0
v 0 1 0
o thing
usemtl a
f 1 2 3
usemtl b
f 1 3 2
`})
	res, err := LoadOBJ(filepath.Join(dir, "split.obj"), OBJOptions{})
	require.NoError(t, err)
	require.Len(t, res.Root.Children(), 2)
	assert.Equal(t, "thing.b", res.Root.Children()[1].Name)
	assert.Equal(t, "Default", res.Root.Children()[0].Renderable.Material.Name, "missing library falls back")
}

func TestLoadOBJErrors(t *testing.T) {
	_, err := LoadOBJ(filepath.Join(t.TempDir(), "missing.obj"), OBJOptions{})
	assert.ErrorContains(t, err, "open obj")

	dir := writeFiles(t, map[string]string{"empty.obj": "v 0 0 0\n"})
	_, err = LoadOBJ(filepath.Join(dir, "empty.obj"), OBJOptions{})
	assert.ErrorContains(t, err, "no geometry")
}

func TestCornerIndices(t *testing.T) {
	p := &objParser{positions: make([]math.Vec3, 5), uvs: make([]math.Vec2, 2)}
	assert.Equal(t, objCorner{v: 0, vt: -1, vn: -1}, p.corner("1"))
	assert.Equal(t, objCorner{v: 4, vt: 1, vn: -1}, p.corner("-1/2"))
	assert.Equal(t, objCorner{v: 2, vt: -1, vn: 0}, p.corner("3//1"))
}
