package assets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/internal/logging"
	"scene-renderer/math"
	"scene-renderer/scene"
)

// GLTFOptions controls LoadGLTF.
type GLTFOptions struct {
	// Textures, when set, loads images referenced by URI in the background.
	// Without it they are decoded before LoadGLTF returns.
	Textures *TextureLoader
	MaxSize  int
	Log      *slog.Logger
}

// GLTFResult is the graph loaded from a .gltf or .glb file.
type GLTFResult struct {
	Roots      []*scene.Node
	Geometries []*scene.Geometry
	Textures   []*scene.Texture
}

// LoadGLTF reads path into scene nodes with geometry and metallic-roughness
// materials. Broken images and primitives are logged and skipped.
func LoadGLTF(path string, opts GLTFOptions) (*GLTFResult, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	l := &gltfLoader{
		doc:  doc,
		dir:  filepath.Dir(path),
		opts: opts,
		log:  logging.Component(opts.Log, "assets").With(slog.String("file", filepath.Base(path))),
	}
	return l.load(), nil
}

type gltfLoader struct {
	doc  *gltf.Document
	dir  string
	opts GLTFOptions
	log  *slog.Logger

	result    GLTFResult
	textures  []*scene.Texture
	materials []*scene.Material
	meshes    [][]primitive
}

type primitive struct {
	geometry *scene.Geometry
	material *scene.Material
}

func (l *gltfLoader) load() *GLTFResult {
	l.loadTextures()
	l.loadMaterials()
	l.loadMeshes()

	nodes := make([]*scene.Node, len(l.doc.Nodes))
	for i, gn := range l.doc.Nodes {
		nodes[i] = l.node(i, gn)
	}
	hasParent := make([]bool, len(nodes))
	for i, gn := range l.doc.Nodes {
		for _, c := range gn.Children {
			if c < len(nodes) && c != i && !hasParent[c] {
				nodes[i].AddChild(nodes[c])
				hasParent[c] = true
			}
		}
	}

	if l.doc.Scene != nil && *l.doc.Scene < len(l.doc.Scenes) {
		for _, idx := range l.doc.Scenes[*l.doc.Scene].Nodes {
			if idx < len(nodes) {
				l.result.Roots = append(l.result.Roots, nodes[idx])
			}
		}
	} else {
		for i, n := range nodes {
			if !hasParent[i] {
				l.result.Roots = append(l.result.Roots, n)
			}
		}
	}
	return &l.result
}

func (l *gltfLoader) loadTextures() {
	l.textures = make([]*scene.Texture, len(l.doc.Textures))
	for i, gt := range l.doc.Textures {
		if gt.Source == nil || *gt.Source >= len(l.doc.Images) {
			continue
		}
		img := l.doc.Images[*gt.Source]
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image_%d", *gt.Source)
		}

		var tex *scene.Texture
		var err error
		switch {
		case img.BufferView != nil:
			var raw []byte
			raw, err = modeler.ReadBufferView(l.doc, l.doc.BufferViews[*img.BufferView])
			if err == nil {
				tex, err = DecodeTexture(name, raw, l.opts.MaxSize)
			}
		case img.IsEmbeddedResource():
			var raw []byte
			raw, err = img.MarshalData()
			if err == nil {
				tex, err = DecodeTexture(name, raw, l.opts.MaxSize)
			}
		case img.URI != "":
			tex, err = l.external(filepath.Join(l.dir, img.URI))
		}
		if err != nil {
			l.log.Warn("skipping image", slog.Int("image", *gt.Source), slog.String("error", err.Error()))
			continue
		}
		if tex == nil {
			continue
		}
		if gt.Sampler != nil && *gt.Sampler < len(l.doc.Samplers) {
			applySampler(tex, l.doc.Samplers[*gt.Sampler])
		}
		l.textures[i] = tex
		l.result.Textures = append(l.result.Textures, tex)
	}
}

func (l *gltfLoader) external(path string) (*scene.Texture, error) {
	return loadFile(l.opts.Textures, path, l.opts.MaxSize)
}

// loadFile queues path on loader when there is one and decodes it in place
// otherwise.
func loadFile(loader *TextureLoader, path string, maxSize int) (*scene.Texture, error) {
	if loader != nil {
		return loader.Load(path), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeTexture(filepath.Base(path), data, maxSize)
}

func applySampler(t *scene.Texture, s *gltf.Sampler) {
	if s.MagFilter == gltf.MagNearest {
		t.Filter = gpu.FilterNearest
	}
	if s.WrapS == gltf.WrapClampToEdge || s.WrapT == gltf.WrapClampToEdge {
		t.Wrap = gpu.WrapClamp
	}
}

func (l *gltfLoader) texture(idx int) *scene.Texture {
	if idx < 0 || idx >= len(l.textures) {
		return nil
	}
	return l.textures[idx]
}

func (l *gltfLoader) loadMaterials() {
	l.materials = make([]*scene.Material, len(l.doc.Materials))
	for i, gm := range l.doc.Materials {
		params := scene.PBRParams{BaseColor: core.ColorWhite, Metallic: 1, Roughness: 1}
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			params.BaseColor = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}
			params.Metallic = float32(pbr.MetallicFactorOrDefault())
			params.Roughness = float32(pbr.RoughnessFactorOrDefault())
			if pbr.BaseColorTexture != nil {
				params.BaseColorMap = l.texture(pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				params.MetallicRoughnessMap = l.texture(pbr.MetallicRoughnessTexture.Index)
			}
		}
		if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
			params.NormalMap = l.texture(*gm.NormalTexture.Index)
		}
		if gm.EmissiveTexture != nil {
			params.EmissiveMap = l.texture(gm.EmissiveTexture.Index)
		}
		ef := gm.EmissiveFactor
		params.Emissive = core.Color{R: float32(ef[0]), G: float32(ef[1]), B: float32(ef[2]), A: 1}

		name := gm.Name
		if name == "" {
			name = fmt.Sprintf("material_%d", i)
		}
		var m *scene.Material
		switch gm.AlphaMode {
		case gltf.AlphaBlend:
			m = scene.NewTransparentMaterial(name, params)
		case gltf.AlphaMask:
			params.AlphaCutoff = float32(gm.AlphaCutoffOrDefault())
			m = scene.NewMaterial(name, params)
		default:
			m = scene.NewMaterial(name, params)
		}
		if gm.DoubleSided {
			m.State.Cull = gpu.CullNone
		}
		l.materials[i] = m
	}
}

func (l *gltfLoader) loadMeshes() {
	l.meshes = make([][]primitive, len(l.doc.Meshes))
	for mi, gm := range l.doc.Meshes {
		for pi, prim := range gm.Primitives {
			name := gm.Name
			if name == "" {
				name = fmt.Sprintf("mesh_%d", mi)
			}
			if len(gm.Primitives) > 1 {
				name = fmt.Sprintf("%s.%d", name, pi)
			}
			g, err := l.geometry(name, prim)
			if err != nil {
				l.log.Warn("skipping primitive", slog.String("mesh", name), slog.String("error", err.Error()))
				continue
			}
			p := primitive{geometry: g, material: scene.DefaultMaterial()}
			if prim.Material != nil && *prim.Material < len(l.materials) {
				p.material = l.materials[*prim.Material]
			}
			l.meshes[mi] = append(l.meshes[mi], p)
			l.result.Geometries = append(l.result.Geometries, g)
		}
	}
}

func (l *gltfLoader) geometry(name string, prim *gltf.Primitive) (*scene.Geometry, error) {
	mode, ok := primitiveMode(prim.Mode)
	if !ok {
		return nil, fmt.Errorf("unsupported primitive mode %v", prim.Mode)
	}
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("no %s attribute", gltf.POSITION)
	}
	raw, err := modeler.ReadPosition(l.doc, l.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	g := scene.NewGeometry(name).SetPositions(vec3s(raw))
	g.Mode = mode

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		n, err := modeler.ReadNormal(l.doc, l.doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
		g.SetNormals(vec3s(n))
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uv, err := modeler.ReadTextureCoord(l.doc, l.doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
		out := make([]math.Vec2, len(uv))
		for i, v := range uv {
			out[i] = math.Vec2{X: v[0], Y: v[1]}
		}
		g.SetUVs(out)
	}
	if idx, ok := prim.Attributes[gltf.COLOR_0]; ok {
		c, err := modeler.ReadColor(l.doc, l.doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("colors: %w", err)
		}
		out := make([]core.Color, len(c))
		for i, v := range c {
			out[i] = core.Color{R: float32(v[0]) / 255, G: float32(v[1]) / 255, B: float32(v[2]) / 255, A: float32(v[3]) / 255}
		}
		g.SetColors(out)
	}
	ji, hasJoints := prim.Attributes[gltf.JOINTS_0]
	wi, hasWeights := prim.Attributes[gltf.WEIGHTS_0]
	if hasJoints && hasWeights {
		joints, err := modeler.ReadJoints(l.doc, l.doc.Accessors[ji], nil)
		if err != nil {
			return nil, fmt.Errorf("joints: %w", err)
		}
		weights, err := modeler.ReadWeights(l.doc, l.doc.Accessors[wi], nil)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		js := make([][4]float32, len(joints))
		for i, j := range joints {
			js[i] = [4]float32{float32(j[0]), float32(j[1]), float32(j[2]), float32(j[3])}
		}
		g.SetSkinning(js, weights)
	}
	if prim.Indices != nil {
		idx, err := modeler.ReadIndices(l.doc, l.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		g.SetIndices(idx)
	}
	return g, nil
}

func primitiveMode(m gltf.PrimitiveMode) (gpu.Primitive, bool) {
	switch m {
	case gltf.PrimitiveTriangles:
		return gpu.Triangles, true
	case gltf.PrimitiveTriangleStrip:
		return gpu.TriangleStrip, true
	case gltf.PrimitiveLines:
		return gpu.Lines, true
	case gltf.PrimitiveLineStrip:
		return gpu.LineStrip, true
	case gltf.PrimitivePoints:
		return gpu.Points, true
	}
	return 0, false
}

func vec3s(in [][3]float32) []math.Vec3 {
	out := make([]math.Vec3, len(in))
	for i, v := range in {
		out[i] = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
	}
	return out
}

func (l *gltfLoader) node(i int, gn *gltf.Node) *scene.Node {
	name := gn.Name
	if name == "" {
		name = fmt.Sprintf("node_%d", i)
	}
	n := scene.NewNode(name)

	t := gn.TranslationOrDefault()
	n.SetPosition(math.Vec3{X: float32(t[0]), Y: float32(t[1]), Z: float32(t[2])})
	s := gn.ScaleOrDefault()
	n.SetScale(math.Vec3{X: float32(s[0]), Y: float32(s[1]), Z: float32(s[2])})
	r := gn.RotationOrDefault()
	n.SetRotation(math.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])})

	if gn.Mesh == nil || *gn.Mesh >= len(l.meshes) {
		return n
	}
	prims := l.meshes[*gn.Mesh]
	switch len(prims) {
	case 0:
	case 1:
		n.Renderable = &scene.Renderable{Geometry: prims[0].geometry, Material: prims[0].material}
	default:
		for pi, p := range prims {
			child := scene.NewMeshNode(fmt.Sprintf("%s.%d", name, pi), p.geometry, p.material)
			n.AddChild(child)
		}
	}
	return n
}
