package scene

import (
	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/math"
)

// CreateGrid builds a flat line grid in XZ with vertex colors.
//
//	size      - total world-space extent (grid goes from -size/2 to +size/2)
//	divisions - number of cells along each axis
//
// The X-axis centre line is red, the Z-axis centre line is blue,
// and all other lines are dark gray.
func CreateGrid(size float32, divisions int) *Geometry {
	divisions = max(divisions, 1)
	half := size / 2
	step := size / float32(divisions)

	gray := core.Color{R: 0.35, G: 0.35, B: 0.35, A: 1}
	red := core.Color{R: 0.8, G: 0.15, B: 0.15, A: 1}
	blue := core.Color{R: 0.15, G: 0.35, B: 0.9, A: 1}

	var positions []math.Vec3
	var colors []core.Color
	addLine := func(a, b math.Vec3, c core.Color) {
		positions = append(positions, a, b)
		colors = append(colors, c, c)
	}

	for i := 0; i <= divisions; i++ {
		offset := -half + float32(i)*step
		zLine, xLine := gray, gray
		if i == divisions/2 {
			zLine, xLine = blue, red
		}
		addLine(math.Vec3{X: offset, Z: -half}, math.Vec3{X: offset, Z: half}, zLine)
		addLine(math.Vec3{X: -half, Z: offset}, math.Vec3{X: half, Z: offset}, xLine)
	}

	g := NewGeometry("Grid").SetPositions(positions).SetColors(colors)
	g.Mode = gpu.Lines
	return g
}

// NewGridNode returns a grid with a vertex-colored line material.
func NewGridNode(size float32, divisions int) *Node {
	n := NewMeshNode("Grid", CreateGrid(size, divisions),
		NewMaterial("GridMaterial", LineParams{Color: core.ColorWhite, VertexColors: true}))
	n.CastShadow = false
	n.ReceiveShadow = false
	return n
}
