package main

import (
	"fmt"
	"log/slog"

	"github.com/chewxy/math32"

	"scene-renderer/assets"
	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/math"
	"scene-renderer/scene"
)

// world is the demo scene plus the nodes the main loop animates.
type world struct {
	scene    *scene.Scene
	camera   *scene.OrbitCamera
	sun      *scene.Node
	spinner  *scene.Node
	emitters []*scene.Emitter
}

type worldOptions struct {
	aspect        float32
	groundTexture string
	models        []string
	textures      *assets.TextureLoader
	log           *slog.Logger
}

func buildWorld(opts worldOptions) (*world, error) {
	s := scene.NewScene()
	w := &world{scene: s}

	w.camera = scene.NewOrbitCamera(math.NewVec3(0, 1, 0), 14, math32.Pi/3, opts.aspect)
	w.camera.Pitch = 0.35
	w.camera.UpdatePosition()
	s.Camera = w.camera
	s.Environment.Sky = scene.NewSky()

	ground := scene.LambertParams{
		Surface: scene.Surface{Fog: true},
		Color:   core.Color{R: 0.62, G: 0.58, B: 0.52, A: 1},
	}
	if opts.groundTexture != "" {
		ground.Map = opts.textures.Load(opts.groundTexture)
		ground.Map.Wrap = gpu.WrapRepeat
	}
	s.Add(scene.NewMeshNode("ground", scene.CreatePlane(60, 60, 1), scene.NewMaterial("Ground", ground)))
	grid := scene.NewGridNode(60, 30)
	grid.SetPosition(math.NewVec3(0, 0.01, 0))
	s.Add(grid)

	stone := scene.NewMaterial("Stone", scene.PhongParams{
		Surface:   scene.Surface{Fog: true},
		Color:     core.Color{R: 0.58, G: 0.55, B: 0.50, A: 1},
		Specular:  core.Color{R: 0.2, G: 0.2, B: 0.2, A: 1},
		Shininess: 16,
	})
	box := scene.CreateBox(1, 1, 1)
	for i := 0; i < 8; i++ {
		angle := float32(i) * math32.Pi / 4
		n := scene.NewMeshNode(fmt.Sprintf("pillar%d", i), box, stone)
		n.SetScale(math.NewVec3(0.6, 3, 0.6))
		n.SetPosition(math.NewVec3(7*math32.Cos(angle), 1.5, 7*math32.Sin(angle)))
		s.Add(n)
	}

	sphere := scene.CreateSphere(0.8, 32, 16)
	for i, m := range []struct {
		name      string
		color     core.Color
		metallic  float32
		roughness float32
	}{
		{"Marble", core.Color{R: 0.92, G: 0.90, B: 0.86, A: 1}, 0, 0.25},
		{"Gold", core.Color{R: 1.0, G: 0.78, B: 0.34, A: 1}, 1, 0.3},
		{"Rubber", core.Color{R: 0.1, G: 0.1, B: 0.1, A: 1}, 0, 0.9},
	} {
		mat := scene.NewMaterial(m.name, scene.PBRParams{BaseColor: m.color, Metallic: m.metallic, Roughness: m.roughness})
		n := scene.NewMeshNode(m.name, sphere, mat)
		n.SetPosition(math.NewVec3(float32(i-1)*2.2, 0.8, 2))
		s.Add(n)
	}

	glass := scene.NewTransparentMaterial("Glass", scene.PhongParams{
		Color:     core.Color{R: 0.4, G: 0.7, B: 0.9, A: 0.35},
		Specular:  core.ColorWhite,
		Shininess: 96,
	})
	w.spinner = scene.NewMeshNode("glass", box, glass)
	w.spinner.SetScale(math.NewVec3(1.5, 1.5, 1.5))
	w.spinner.SetPosition(math.NewVec3(0, 1.5, -2))
	s.Add(w.spinner)

	sun := scene.NewDirectionalLight(core.ColorWhite, 1.2)
	sun.CastShadow = true
	w.sun = scene.NewLightNode("sun", sun)
	s.Add(w.sun)

	lamp := scene.NewPointLight(core.Color{R: 1, G: 0.8, B: 0.45, A: 1}, 2, 12)
	lampNode := scene.NewLightNode("lamp", lamp)
	lampNode.SetPosition(math.NewVec3(-4, 2.5, 3))
	s.Add(lampNode)

	fire := scene.NewEmitter("fire", 300, 10, 42)
	fire.Node.SetPosition(math.NewVec3(4, 0.2, 3))
	smoke := scene.NewSmokeEmitter("smoke", 80, 99)
	smoke.Node.SetPosition(math.NewVec3(4, 1.2, 3))
	w.emitters = append(w.emitters, fire, smoke)
	s.Add(fire.Node)
	s.Add(smoke.Node)

	for _, path := range opts.models {
		node, err := loadModel(path, opts)
		if err != nil {
			return nil, err
		}
		s.Add(node)
	}
	return w, nil
}

// loadModel loads a glTF or OBJ file under one node.
func loadModel(path string, opts worldOptions) (*scene.Node, error) {
	switch ext := extension(path); ext {
	case ".gltf", ".glb":
		res, err := assets.LoadGLTF(path, assets.GLTFOptions{Textures: opts.textures, Log: opts.log})
		if err != nil {
			return nil, err
		}
		root := scene.NewNode(path)
		for _, n := range res.Roots {
			root.AddChild(n)
		}
		return root, nil
	case ".obj":
		res, err := assets.LoadOBJ(path, assets.OBJOptions{Textures: opts.textures, Log: opts.log})
		if err != nil {
			return nil, err
		}
		return res.Root, nil
	default:
		return nil, fmt.Errorf("unsupported model format %q", ext)
	}
}

func (w *world) update(dt float32) {
	w.spinner.SetRotation(w.spinner.Transform.Rotation.Mul(math.QuaternionFromAxisAngle(math.Vec3Up, dt*0.6)))
	for _, e := range w.emitters {
		e.Update(dt)
	}
}
