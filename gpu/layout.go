package gpu

// Attribute is a bit in a vertex Layout. Its bit index is also the shader
// attribute location.
type Attribute uint8

const (
	AttrPosition Attribute = 1 << iota
	AttrNormal
	AttrUV
	AttrColor
	AttrJoints
	AttrWeights
)

// attributeOrder lists attributes in interleave order.
var attributeOrder = [...]Attribute{AttrPosition, AttrNormal, AttrUV, AttrColor, AttrJoints, AttrWeights}

// Size returns the float count of one attribute.
func (a Attribute) Size() int32 {
	switch a {
	case AttrPosition, AttrNormal:
		return 3
	case AttrUV:
		return 2
	case AttrColor, AttrJoints, AttrWeights:
		return 4
	}
	return 0
}

// Location returns the shader attribute location.
func (a Attribute) Location() uint32 {
	for i, attr := range attributeOrder {
		if attr == a {
			return uint32(i)
		}
	}
	return 0
}

// Layout is the set of interleaved float32 attributes in a vertex buffer.
type Layout uint8

func (l Layout) Has(a Attribute) bool {
	return Attribute(l)&a != 0
}

// Stride returns the number of floats per vertex.
func (l Layout) Stride() int32 {
	var n int32
	for _, a := range attributeOrder {
		if l.Has(a) {
			n += a.Size()
		}
	}
	return n
}

// Offset returns the float offset of a within a vertex, or -1 if absent.
func (l Layout) Offset(a Attribute) int32 {
	var n int32
	for _, attr := range attributeOrder {
		if !l.Has(attr) {
			continue
		}
		if attr == a {
			return n
		}
		n += attr.Size()
	}
	return -1
}

// Attributes returns the present attributes in interleave order.
func (l Layout) Attributes() []Attribute {
	out := make([]Attribute, 0, len(attributeOrder))
	for _, a := range attributeOrder {
		if l.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// MeshData is an interleaved vertex buffer plus an optional index list.
type MeshData struct {
	Label    string
	Layout   Layout
	Vertices []float32
	Indices  []uint32
}

// VertexCount returns the number of whole vertices in Vertices.
func (d MeshData) VertexCount() int {
	stride := int(d.Layout.Stride())
	if stride == 0 {
		return 0
	}
	return len(d.Vertices) / stride
}

// Signature is what decides whether an existing mesh can be updated in place.
type Signature struct {
	Layout   Layout
	Vertices int
	Indices  int
}

func (d MeshData) Signature() Signature {
	return Signature{Layout: d.Layout, Vertices: len(d.Vertices), Indices: len(d.Indices)}
}
