// Package shader compiles one GPU program per distinct (material kind,
// feature flags) pair and hands the same program to every material that
// maps to that pair. Uniform values never take part in the key.
package shader

import (
	"errors"
	"fmt"
	"log/slog"

	"scene-renderer/gpu"
	"scene-renderer/internal/logging"
	"scene-renderer/scene"
)

// Key identifies a program variant. Custom is set only for KindCustom and
// compares by pointer.
type Key struct {
	Kind   scene.Kind
	Flags  scene.Flags
	Custom *scene.CustomShader
}

// KeyFor returns the variant key of m with extra draw-dependent features
// (skinning, shadows) added.
func KeyFor(m *scene.Material, extra scene.Flags) Key {
	if cs := m.Custom(); cs != nil {
		return Key{Kind: scene.KindCustom, Custom: cs}
	}
	return Key{Kind: m.Kind(), Flags: m.Flags() | extra}
}

func (k Key) String() string {
	if k.Custom != nil {
		return "custom:" + k.Custom.Name
	}
	return fmt.Sprintf("%s[%s]", k.Kind, k.Flags)
}

// Program is a linked program plus its uniform locations.
type Program struct {
	Handle gpu.Program
	Key    Key
	// Fallback is true when the variant failed to build and Handle is the
	// error program.
	Fallback bool

	dev       gpu.Device
	locations map[string]int32
}

// Location returns the location of a uniform, asking the device once per
// name. Missing uniforms report -1, which the device ignores.
func (p *Program) Location(name string) int32 {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.Handle, name)
	p.locations[name] = loc
	return loc
}

// Diagnostic records a variant that fell back to the error program.
type Diagnostic struct {
	Key Key
	Err error
}

var ErrNoFallback = errors.New("shader: error program failed to build")

// Cache owns every program it compiles.
type Cache struct {
	dev gpu.Device
	log *slog.Logger

	programs    map[Key]*Program
	errProgram  gpu.Program
	errBuilt    bool
	compiles    int
	diagnostics []Diagnostic
}

func NewCache(dev gpu.Device, log *slog.Logger) *Cache {
	return &Cache{
		dev:      dev,
		log:      logging.Component(log, "shader"),
		programs: make(map[Key]*Program),
	}
}

// Get returns the program for key, building it on first request. A variant
// that fails to compile or link resolves to the magenta error program and
// stays that way until InvalidateAll. Only context loss, or a failing error
// program, is returned as an error.
func (c *Cache) Get(key Key) (*Program, error) {
	if p, ok := c.programs[key]; ok {
		return p, nil
	}

	src, err := c.source(key)
	var h gpu.Program
	if err == nil {
		c.compiles++
		h, err = c.dev.CompileProgram(key.String(), src.Vertex, src.Fragment)
	}
	if errors.Is(err, gpu.ErrContextLost) {
		return nil, err
	}

	p := &Program{Handle: h, Key: key, dev: c.dev, locations: make(map[string]int32)}
	if err != nil {
		c.log.Warn("shader variant failed, using error program",
			slog.String("variant", key.String()),
			slog.String("error", err.Error()))
		c.diagnostics = append(c.diagnostics, Diagnostic{Key: key, Err: err})
		eh, eerr := c.errorProgram()
		if eerr != nil {
			return nil, eerr
		}
		p.Handle = eh
		p.Fallback = true
	} else {
		c.log.Debug("compiled shader variant",
			slog.String("variant", key.String()),
			slog.Uint64("program", uint64(h)))
	}
	c.programs[key] = p
	return p, nil
}

// GetFor is Get(KeyFor(m, extra)).
func (c *Cache) GetFor(m *scene.Material, extra scene.Flags) (*Program, error) {
	return c.Get(KeyFor(m, extra))
}

func (c *Cache) source(key Key) (Source, error) {
	if key.Kind == scene.KindCustom {
		if key.Custom == nil {
			return Source{}, errors.New("shader: custom kind without a shader")
		}
		return CustomSource(key.Custom), nil
	}
	return Synthesize(key.Kind, key.Flags)
}

func (c *Cache) errorProgram() (gpu.Program, error) {
	if c.errBuilt {
		return c.errProgram, nil
	}
	c.compiles++
	h, err := c.dev.CompileProgram("error", errorSource.Vertex, errorSource.Fragment)
	if err != nil {
		if errors.Is(err, gpu.ErrContextLost) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrNoFallback, err)
	}
	c.errProgram = h
	c.errBuilt = true
	return h, nil
}

// TakeDiagnostics returns and clears the fallbacks recorded since the last
// call.
func (c *Cache) TakeDiagnostics() []Diagnostic {
	d := c.diagnostics
	c.diagnostics = nil
	return d
}

// Compiles counts CompileProgram calls, including failed ones.
func (c *Cache) Compiles() int { return c.compiles }

// Len returns the number of cached variants.
func (c *Cache) Len() int { return len(c.programs) }

// InvalidateAll forgets every program after a context loss without
// deleting anything. Variants compile again on their next Get.
func (c *Cache) InvalidateAll() {
	clear(c.programs)
	c.errBuilt = false
	c.errProgram = 0
}

// Destroy deletes every program.
func (c *Cache) Destroy() {
	for _, p := range c.programs {
		if !p.Fallback {
			c.dev.DeleteProgram(p.Handle)
		}
	}
	if c.errBuilt {
		c.dev.DeleteProgram(c.errProgram)
	}
	c.InvalidateAll()
}
