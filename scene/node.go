package scene

import (
	"sync/atomic"

	"scene-renderer/core"
	"scene-renderer/math"
)

// Renderable pairs a geometry with the material it is drawn with.
type Renderable struct {
	Geometry *Geometry
	Material *Material
}

// Skin carries joint matrices for a skinned renderable. The animation
// system owns the values; the renderer only reads them.
type Skin struct {
	Joints []math.Mat4
}

// MaxJoints is the largest joint palette a skinned draw can use.
const MaxJoints = 64

// Node is an element of the transform graph. A node owns its children in
// insertion order; the parent link is a plain back-reference and never owns.
type Node struct {
	Name      string
	Transform core.Transform
	ID        uint32

	Renderable *Renderable
	Light      *Light
	Skin       *Skin

	Visible       bool
	CastShadow    bool
	ReceiveShadow bool

	parent   *Node
	children []*Node

	worldDirty bool
	world      math.Mat4
}

var nodeIDCounter atomic.Uint32

func NewNode(name string) *Node {
	return &Node{
		Name:          name,
		Transform:     core.NewTransform(),
		ID:            nodeIDCounter.Add(1),
		Visible:       true,
		CastShadow:    true,
		ReceiveShadow: true,
		worldDirty:    true,
	}
}

// NewMeshNode returns a node carrying a renderable.
func NewMeshNode(name string, geometry *Geometry, material *Material) *Node {
	n := NewNode(name)
	n.Renderable = &Renderable{Geometry: geometry, Material: material}
	return n
}

// NewLightNode returns a node carrying a light.
func NewLightNode(name string, light *Light) *Node {
	n := NewNode(name)
	n.Light = light
	return n
}

func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the owned children in insertion order. The slice must
// not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// AddChild appends child, detaching it from any previous parent. Adding n
// itself or one of its ancestors is a no-op, so the graph stays a tree.
func (n *Node) AddChild(child *Node) {
	if child == nil || child.IsAncestorOf(n) {
		return
	}
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = n
	n.children = append(n.children, child)
	child.MarkWorldMatrixDirty()
}

// IsAncestorOf reports whether n is other or one of its ancestors.
func (n *Node) IsAncestorOf(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

func (n *Node) RemoveChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			child.MarkWorldMatrixDirty()
			return
		}
	}
}

// WorldMatrix returns local * parentWorld, recomputing lazily along the
// dirty path only.
func (n *Node) WorldMatrix() math.Mat4 {
	if n.worldDirty {
		local := n.Transform.GetMatrix()
		if n.parent != nil {
			n.world = local.Mul(n.parent.WorldMatrix())
		} else {
			n.world = local
		}
		n.worldDirty = false
	}
	return n.world
}

// WorldPosition returns the translation of the world matrix.
func (n *Node) WorldPosition() math.Vec3 {
	return n.WorldMatrix().Translation()
}

// WorldForward returns the node's -Z axis in world space.
func (n *Node) WorldForward() math.Vec3 {
	return n.WorldMatrix().MulDir(math.Vec3Back).Normalize()
}

// MarkWorldMatrixDirty flags this node and its descendants. Call it after
// writing Transform directly.
func (n *Node) MarkWorldMatrixDirty() {
	if n.worldDirty {
		return
	}
	n.worldDirty = true
	for _, child := range n.children {
		child.MarkWorldMatrixDirty()
	}
}

func (n *Node) SetPosition(pos math.Vec3) {
	n.Transform.Position = pos
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetRotation(rot math.Quaternion) {
	n.Transform.Rotation = rot
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetScale(scale math.Vec3) {
	n.Transform.Scale = scale
	n.MarkWorldMatrixDirty()
}

func (n *Node) Translate(delta math.Vec3) {
	n.SetPosition(n.Transform.Position.Add(delta))
}

func (n *Node) Rotate(axis math.Vec3, angle float32) {
	rotation := math.QuaternionFromAxisAngle(axis, angle)
	n.SetRotation(n.Transform.Rotation.Mul(rotation).Normalize())
}

// LookAt orients the node so its -Z axis points at target.
func (n *Node) LookAt(target, up math.Vec3) {
	n.SetRotation(lookRotation(n.WorldPosition(), target, up))
}

// Traverse visits the subtree depth-first, parents before children. When
// visit returns false the node's children are skipped.
func (n *Node) Traverse(visit func(*Node) bool) {
	if !visit(n) {
		return
	}
	for _, child := range n.children {
		child.Traverse(visit)
	}
}

// Find returns the first node named name in the subtree.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, child := range n.children {
		if found := child.Find(name); found != nil {
			return found
		}
	}
	return nil
}

func lookRotation(eye, target, up math.Vec3) math.Quaternion {
	view := math.Mat4LookAt(eye, target, up)
	return math.QuaternionFromMat4(view.Transpose())
}
