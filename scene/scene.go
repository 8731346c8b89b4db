package scene

import "scene-renderer/core"

// Environment holds scene-wide shading inputs.
type Environment struct {
	Ambient    core.Color
	Background core.Color
	FogColor   core.Color
	// FogDensity is the exponential fog coefficient; materials opt in with
	// Surface.Fog.
	FogDensity float32
	// Sky, when set, is drawn over the background color.
	Sky *Sky
}

func DefaultEnvironment() Environment {
	return Environment{
		Ambient:    core.Color{R: 0.2, G: 0.2, B: 0.2, A: 1.0},
		Background: core.Color{R: 0.5, G: 0.7, B: 1.0, A: 1.0},
		FogColor:   core.Color{R: 0.5, G: 0.7, B: 1.0, A: 1.0},
	}
}

// Scene bundles a graph root with the camera and environment it is viewed with.
type Scene struct {
	Root        *Node
	Camera      Viewer
	Environment Environment
}

func NewScene() *Scene {
	return &Scene{
		Root:        NewNode("Root"),
		Environment: DefaultEnvironment(),
	}
}

func (s *Scene) Add(node *Node) {
	s.Root.AddChild(node)
}

func (s *Scene) Remove(node *Node) {
	s.Root.RemoveChild(node)
}

// Lights returns every node carrying a light.
func (s *Scene) Lights() []*Node {
	var out []*Node
	s.Root.Traverse(func(n *Node) bool {
		if n.Light != nil {
			out = append(out, n)
		}
		return true
	})
	return out
}
