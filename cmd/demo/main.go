// Command demo renders an animated scene in a window. Every renderer
// option comes from a TOML or YAML config file and can be overridden with
// flags.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"

	"scene-renderer/assets"
	"scene-renderer/core/window"
	"scene-renderer/gpu"
	"scene-renderer/internal/opengl"
	"scene-renderer/renderer"
	"scene-renderer/scene"
)

type options struct {
	config        string
	width         int
	height        int
	shadows       bool
	shadowSize    int
	hdr           bool
	ssao          bool
	vsync         bool
	dayLength     float32
	groundTexture string
	models        []string
	frames        uint64
	logLevel      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "demo [flags]",
		Short:        "Render an animated demo scene",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(opts.logLevel)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cfg, opts, log)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "renderer config file (.toml, .yaml)")
	f.IntVar(&opts.width, "width", 1280, "window width")
	f.IntVar(&opts.height, "height", 720, "window height")
	f.BoolVar(&opts.shadows, "shadows", true, "render shadow maps")
	f.IntVar(&opts.shadowSize, "shadow-size", 2048, "shadow map resolution")
	f.BoolVar(&opts.hdr, "hdr", true, "render into a floating point target")
	f.BoolVar(&opts.ssao, "ssao", false, "add screen-space ambient occlusion ahead of the post chain")
	f.BoolVar(&opts.vsync, "vsync", true, "wait for vertical sync")
	f.Float32Var(&opts.dayLength, "day-length", 120, "seconds per day/night cycle, 0 to stop the clock")
	f.StringVar(&opts.groundTexture, "ground-texture", "", "image to tile over the ground")
	f.StringSliceVarP(&opts.models, "model", "m", nil, "glTF or OBJ file to add to the scene (repeatable)")
	f.Uint64Var(&opts.frames, "frames", 0, "exit after this many frames, 0 runs until closed")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

// loadConfig reads the config file, if any, and applies the flags the user
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command, opts options) (renderer.Config, error) {
	cfg := renderer.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = renderer.LoadConfig(opts.config); err != nil {
			return cfg, err
		}
	}
	f := cmd.Flags()
	if f.Changed("shadows") {
		cfg.Shadows = opts.shadows
	}
	if f.Changed("shadow-size") {
		cfg.ShadowMapSize = int32(opts.shadowSize)
	}
	if f.Changed("hdr") {
		cfg.HDR = opts.hdr
	}
	if f.Changed("ssao") {
		cfg.PostProcess = withSSAO(cfg.PostProcess, opts.ssao)
	}
	return cfg, cfg.Validate()
}

// withSSAO puts an ssao pass at the head of chain, or removes every ssao
// pass when on is false. Occlusion works on linear color, so it runs
// before tone mapping.
func withSSAO(chain []renderer.PassConfig, on bool) []renderer.PassConfig {
	out := make([]renderer.PassConfig, 0, len(chain)+1)
	if on {
		out = append(out, renderer.PassConfig{Name: "ssao"})
	}
	for _, pc := range chain {
		if !strings.EqualFold(pc.Name, "ssao") {
			out = append(out, pc)
		}
	}
	return out
}

func run(cfg renderer.Config, opts options, log *slog.Logger) error {
	wcfg := window.DefaultConfig()
	wcfg.Width, wcfg.Height = opts.width, opts.height
	wcfg.VSync = opts.vsync
	win, err := window.New(wcfg)
	if err != nil {
		return err
	}
	defer win.Destroy()

	dev, err := opengl.New(log)
	if err != nil {
		return err
	}
	fbw, fbh := win.GetFramebufferSize()
	cfg.Width, cfg.Height = int32(fbw), int32(fbh)

	r, err := renderer.New(dev, cfg, renderer.WithLogger(log))
	if err != nil {
		return err
	}
	defer r.Destroy()

	loader := assets.NewTextureLoader(r.Uploads(), assets.DefaultLoaderConfig(), log)
	w, err := buildWorld(worldOptions{
		aspect:        float32(fbw) / float32(max(fbh, 1)),
		groundTexture: opts.groundTexture,
		models:        opts.models,
		textures:      loader,
		log:           log,
	})
	if err != nil {
		return err
	}

	win.OnResize(func(width, height int) {
		if width == 0 || height == 0 {
			return
		}
		r.Resize(int32(width), int32(height))
		w.camera.UpdateAspectRatio(float32(width), float32(height))
	})

	dn := NewDayNight(opts.dayLength)
	h := &hud{title: wcfg.Title}
	ctl := newOrbitControl()

	log.Info("rendering", slog.Int("width", fbw), slog.Int("height", fbh),
		slog.Bool("shadows", cfg.Shadows), slog.Bool("hdr", cfg.HDR))

	last := time.Now()
	for !win.ShouldClose() {
		win.PollEvents()
		if win.IsKeyPressed(glfw.KeyEscape) {
			break
		}
		now := time.Now()
		dt := now.Sub(last)
		last = now
		sec := min(float32(dt.Seconds()), 0.1)

		if ctl.update(win, w.camera, sec) {
			dn.Active = !dn.Active
		}
		if ctl.clicked(win) {
			pick(win, w, log)
		}
		dn.Update(sec)
		w.scene.Environment = dn.Apply(w.scene.Environment, w.sun)
		w.update(sec)

		stats, err := r.RenderScene(w.scene)
		switch {
		case errors.Is(err, gpu.ErrContextLost):
			log.Error("context lost", slog.String("error", err.Error()))
			dev.Restore()
		case err != nil:
			log.Warn("frame failed", slog.String("error", err.Error()))
		}
		for _, d := range stats.Diagnostics {
			log.Warn("render diagnostic", slog.String("kind", d.Kind), slog.String("subject", d.Subject), slog.String("error", d.Err.Error()))
		}

		if h.tick(dt) {
			win.SetTitle(h.text(stats, dn.Clock()))
		}
		win.SwapBuffers()

		if opts.frames > 0 && stats.Frame >= opts.frames {
			log.Info("frame limit reached", slog.String("stats", stats.String()))
			break
		}
	}
	return nil
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// orbitControl maps keys onto the orbit camera. Arrows orbit, W/S zoom,
// P toggles the day/night clock and a left click picks a node.
type orbitControl struct {
	pauseWasDown bool
	clickWasDown bool
}

func newOrbitControl() *orbitControl { return &orbitControl{} }

// update moves cam and reports whether the pause key was just pressed.
func (c *orbitControl) update(win *window.Window, cam *scene.OrbitCamera, dt float32) bool {
	const orbitSpeed, zoomSpeed = 1.2, 8

	var yaw, pitch float32
	if win.IsKeyPressed(glfw.KeyLeft) {
		yaw -= orbitSpeed * dt
	}
	if win.IsKeyPressed(glfw.KeyRight) {
		yaw += orbitSpeed * dt
	}
	if win.IsKeyPressed(glfw.KeyUp) {
		pitch += orbitSpeed * dt
	}
	if win.IsKeyPressed(glfw.KeyDown) {
		pitch -= orbitSpeed * dt
	}
	if yaw != 0 || pitch != 0 {
		cam.Orbit(yaw, pitch)
	}
	if win.IsKeyPressed(glfw.KeyW) {
		cam.Zoom(-zoomSpeed * dt)
	}
	if win.IsKeyPressed(glfw.KeyS) {
		cam.Zoom(zoomSpeed * dt)
	}

	down := win.IsKeyPressed(glfw.KeyP)
	pressed := down && !c.pauseWasDown
	c.pauseWasDown = down
	return pressed
}

// clicked reports a left button press since the last call.
func (c *orbitControl) clicked(win *window.Window) bool {
	down := win.IsMouseButtonPressed(glfw.MouseButtonLeft)
	pressed := down && !c.clickWasDown
	c.clickWasDown = down
	return pressed
}

func pick(win *window.Window, w *world, log *slog.Logger) {
	x, y := win.CursorPos()
	ww, wh := win.Size()
	if ww == 0 || wh == 0 {
		return
	}
	ray := scene.ScreenRay(w.camera, float32(x), float32(y), float32(ww), float32(wh))
	hit, ok := scene.Raycast(w.scene.Root, ray)
	if !ok {
		log.Info("picked nothing")
		return
	}
	log.Info("picked",
		slog.String("node", hit.Node.Name),
		slog.Float64("distance", float64(hit.Distance)),
		slog.Int("triangle", hit.Triangle))
}
