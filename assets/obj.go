package assets

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scene-renderer/core"
	"scene-renderer/internal/logging"
	"scene-renderer/math"
	"scene-renderer/scene"
)

// OBJOptions controls LoadOBJ.
type OBJOptions struct {
	// Textures, when set, loads map_Kd images in the background.
	Textures *TextureLoader
	MaxSize  int
	Log      *slog.Logger
}

// OBJResult is a Wavefront file as one node per object or group under Root.
type OBJResult struct {
	Root       *scene.Node
	Geometries []*scene.Geometry
	Materials  map[string]*scene.Material
}

// objCorner holds 0-based position, uv and normal indices; -1 is absent.
type objCorner struct{ v, vt, vn int }

type objObject struct {
	name     string
	material string
	corners  []objCorner // triangulated, three per face
}

type objParser struct {
	dir  string
	opts OBJOptions
	log  *slog.Logger

	positions []math.Vec3
	normals   []math.Vec3
	uvs       []math.Vec2
	materials map[string]*scene.Material
	objects   []objObject
}

// LoadOBJ reads a Wavefront .obj file and the .mtl libraries it references.
// Polygons are fan-triangulated and missing normals are generated.
func LoadOBJ(path string, opts OBJOptions) (*OBJResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj %q: %w", path, err)
	}
	defer f.Close()

	p := &objParser{
		dir:       filepath.Dir(path),
		opts:      opts,
		log:       logging.Component(opts.Log, "assets").With(slog.String("file", filepath.Base(path))),
		materials: make(map[string]*scene.Material),
	}
	if err := p.parse(f); err != nil {
		return nil, fmt.Errorf("parse obj %q: %w", path, err)
	}
	if len(p.objects) == 0 {
		return nil, fmt.Errorf("no geometry found in %q", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res := &OBJResult{Root: scene.NewNode(name), Materials: p.materials}
	for _, obj := range p.objects {
		g := p.geometry(obj)
		mat, ok := p.materials[obj.material]
		if !ok {
			mat = scene.DefaultMaterial()
		}
		res.Root.AddChild(scene.NewMeshNode(obj.name, g, mat))
		res.Geometries = append(res.Geometries, g)
	}
	return res, nil
}

func (p *objParser) parse(r io.Reader) error {
	cur := objObject{name: "default"}
	flush := func() {
		if len(cur.corners) > 0 {
			p.objects = append(p.objects, cur)
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if v, ok := parseFloats(fields[1:], 3); ok {
				p.positions = append(p.positions, math.NewVec3(v[0], v[1], v[2]))
			}
		case "vn":
			if v, ok := parseFloats(fields[1:], 3); ok {
				p.normals = append(p.normals, math.NewVec3(v[0], v[1], v[2]))
			}
		case "vt":
			if v, ok := parseFloats(fields[1:], 2); ok {
				// OBJ puts v=0 at the bottom of the image.
				p.uvs = append(p.uvs, math.Vec2{X: v[0], Y: 1 - v[1]})
			}
		case "o", "g":
			flush()
			name := "default"
			if len(fields) > 1 {
				name = fields[1]
			}
			cur = objObject{name: name, material: cur.material}
		case "usemtl":
			if len(fields) > 1 {
				if len(cur.corners) > 0 && cur.material != fields[1] {
					// A material switch inside an object starts a new draw.
					flush()
					cur = objObject{name: fmt.Sprintf("%s.%s", cur.name, fields[1])}
				}
				cur.material = fields[1]
			}
		case "mtllib":
			for _, lib := range fields[1:] {
				if err := p.loadMTL(filepath.Join(p.dir, lib)); err != nil {
					p.log.Warn("skipping material library", slog.String("mtl", lib), slog.String("error", err.Error()))
				}
			}
		case "f":
			if len(fields) < 4 {
				continue
			}
			poly := make([]objCorner, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				poly = append(poly, p.corner(tok))
			}
			for i := 1; i+1 < len(poly); i++ {
				cur.corners = append(cur.corners, poly[0], poly[i], poly[i+1])
			}
		}
	}
	flush()
	return scanner.Err()
}

// corner parses "v", "v/vt", "v//vn" or "v/vt/vn". Negative indices count
// back from the last element read.
func (p *objParser) corner(tok string) objCorner {
	index := func(s string, n int) int {
		i, err := strconv.Atoi(s)
		switch {
		case err != nil || i == 0:
			return -1
		case i < 0:
			return n + i
		}
		return i - 1
	}
	c := objCorner{v: -1, vt: -1, vn: -1}
	parts := strings.Split(tok, "/")
	c.v = index(parts[0], len(p.positions))
	if len(parts) > 1 {
		c.vt = index(parts[1], len(p.uvs))
	}
	if len(parts) > 2 {
		c.vn = index(parts[2], len(p.normals))
	}
	return c
}

// geometry deduplicates corners into an indexed triangle list.
func (p *objParser) geometry(obj objObject) *scene.Geometry {
	seen := make(map[objCorner]uint32)
	var (
		positions []math.Vec3
		normals   []math.Vec3
		uvs       []math.Vec2
		indices   []uint32
	)
	hasNormals, hasUVs := true, true
	for _, c := range obj.corners {
		if idx, ok := seen[c]; ok {
			indices = append(indices, idx)
			continue
		}
		idx := uint32(len(positions))
		seen[c] = idx
		indices = append(indices, idx)

		positions = append(positions, at(p.positions, c.v, math.Vec3Zero))
		normals = append(normals, at(p.normals, c.vn, math.Vec3Zero))
		uvs = append(uvs, at(p.uvs, c.vt, math.Vec2{}))
		hasNormals = hasNormals && c.vn >= 0 && c.vn < len(p.normals)
		hasUVs = hasUVs && c.vt >= 0 && c.vt < len(p.uvs)
	}
	if !hasNormals {
		normals = smoothNormals(positions, indices)
	}

	g := scene.NewGeometry(obj.name).SetPositions(positions).SetNormals(normals).SetIndices(indices)
	if hasUVs {
		g.SetUVs(uvs)
	}
	return g
}

func at[T any](s []T, i int, fallback T) T {
	if i >= 0 && i < len(s) {
		return s[i]
	}
	return fallback
}

// smoothNormals averages area-weighted face normals per vertex.
func smoothNormals(positions []math.Vec3, indices []uint32) []math.Vec3 {
	out := make([]math.Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0 := positions[i0]
		n := positions[i1].Sub(p0).Cross(positions[i2].Sub(p0))
		out[i0] = out[i0].Add(n)
		out[i1] = out[i1].Add(n)
		out[i2] = out[i2].Add(n)
	}
	for i, n := range out {
		if n.LengthSqr() == 0 {
			out[i] = math.Vec3Up
			continue
		}
		out[i] = n.Normalize()
	}
	return out
}

// loadMTL reads Phong materials. Kd, Ks, Ke, Ns, d and map_Kd are honored.
func (p *objParser) loadMTL(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		name   string
		params scene.PhongParams
		alpha  float32 = 1
	)
	commit := func() {
		if name == "" {
			return
		}
		params.Color.A = alpha
		if alpha < 1 {
			p.materials[name] = scene.NewTransparentMaterial(name, params)
		} else {
			p.materials[name] = scene.NewMaterial(name, params)
		}
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "newmtl":
			commit()
			name = strings.Join(fields[1:], " ")
			params = scene.PhongParams{Color: core.ColorWhite, Shininess: 32}
			alpha = 1
		case "Kd":
			if c, ok := parseColor(fields[1:]); ok {
				params.Color = c
			}
		case "Ks":
			if c, ok := parseColor(fields[1:]); ok {
				params.Specular = c
			}
		case "Ke":
			if c, ok := parseColor(fields[1:]); ok {
				params.Emissive = c
			}
		case "Ns":
			if v, ok := parseFloats(fields[1:], 1); ok {
				params.Shininess = max(v[0], 1)
			}
		case "d":
			if v, ok := parseFloats(fields[1:], 1); ok {
				alpha = v[0]
			}
		case "Tr":
			if v, ok := parseFloats(fields[1:], 1); ok {
				alpha = 1 - v[0]
			}
		case "map_Kd":
			if len(fields) < 2 {
				continue
			}
			// Options such as -s come before the file name.
			file := fields[len(fields)-1]
			tex, err := loadFile(p.opts.Textures, filepath.Join(filepath.Dir(path), file), p.opts.MaxSize)
			if err != nil {
				p.log.Warn("skipping texture", slog.String("texture", file), slog.String("error", err.Error()))
				continue
			}
			params.Map = tex
		}
	}
	commit()
	return scanner.Err()
}

func parseFloats(fields []string, n int) ([]float32, bool) {
	if len(fields) < n {
		return nil, false
	}
	out := make([]float32, n)
	for i := range out {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, false
		}
		out[i] = float32(v)
	}
	return out, true
}

func parseColor(fields []string) (core.Color, bool) {
	v, ok := parseFloats(fields, 3)
	if !ok {
		return core.Color{}, false
	}
	return core.Color{R: v[0], G: v[1], B: v[2], A: 1}, true
}
