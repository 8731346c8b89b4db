package renderer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"scene-renderer/core"
	"scene-renderer/drawlist"
	"scene-renderer/postprocess"
)

// Policy names accepted in Config.
const (
	ShadowsSkip      = "skip"
	ShadowsAlphaTest = "alpha-test"

	AllocSkip    = "skip"
	AllocAbandon = "abandon"
)

// PassConfig is one entry of the post-process chain.
type PassConfig struct {
	Name string `toml:"name" yaml:"name"`
	// Enabled defaults to true when omitted.
	Enabled *bool              `toml:"enabled,omitempty" yaml:"enabled,omitempty"`
	Params  map[string]float64 `toml:"params,omitempty" yaml:"params,omitempty"`
}

func (p PassConfig) enabled() bool { return p.Enabled == nil || *p.Enabled }

type Config struct {
	Width  int32 `toml:"width" yaml:"width"`
	Height int32 `toml:"height" yaml:"height"`

	Shadows          bool    `toml:"shadows" yaml:"shadows"`
	ShadowMapSize    int32   `toml:"shadow_map_size" yaml:"shadow_map_size"`
	ShadowHalfExtent float32 `toml:"shadow_half_extent" yaml:"shadow_half_extent"`
	// ShadowBias replaces a zero Light.ShadowBias.
	ShadowBias         float32 `toml:"shadow_bias" yaml:"shadow_bias"`
	TransparentShadows string  `toml:"transparent_shadows" yaml:"transparent_shadows"`

	FrustumCulling bool       `toml:"frustum_culling" yaml:"frustum_culling"`
	HDR            bool       `toml:"hdr" yaml:"hdr"`
	ClearColor     core.Color `toml:"clear_color" yaml:"clear_color"`
	// IdleEvictionFrames frees geometry and textures unused for that many
	// frames. Zero disables eviction.
	IdleEvictionFrames uint64 `toml:"idle_eviction_frames" yaml:"idle_eviction_frames"`
	AllocFailure       string `toml:"alloc_failure" yaml:"alloc_failure"`

	PostProcess []PassConfig `toml:"post_process" yaml:"post_process"`
}

func DefaultConfig() Config {
	return Config{
		Width:              1280,
		Height:             720,
		Shadows:            true,
		ShadowMapSize:      2048,
		ShadowHalfExtent:   40,
		ShadowBias:         0.005,
		TransparentShadows: ShadowsSkip,
		FrustumCulling:     true,
		HDR:                true,
		ClearColor:         core.Color{R: 0.1, G: 0.1, B: 0.12, A: 1},
		IdleEvictionFrames: 600,
		AllocFailure:       AllocSkip,
		PostProcess:        []PassConfig{{Name: "tonemap"}},
	}
}

// LoadConfig reads a TOML or YAML file, chosen by extension, over the
// defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("size %dx%d must be positive", c.Width, c.Height))
	}
	if c.Shadows && c.ShadowMapSize <= 0 {
		errs = append(errs, fmt.Errorf("shadow_map_size %d must be positive", c.ShadowMapSize))
	}
	if c.ShadowHalfExtent < 0 {
		errs = append(errs, fmt.Errorf("shadow_half_extent %g must not be negative", c.ShadowHalfExtent))
	}
	switch c.TransparentShadows {
	case ShadowsSkip, ShadowsAlphaTest:
	default:
		errs = append(errs, fmt.Errorf("transparent_shadows %q: want %q or %q", c.TransparentShadows, ShadowsSkip, ShadowsAlphaTest))
	}
	switch c.AllocFailure {
	case AllocSkip, AllocAbandon:
	default:
		errs = append(errs, fmt.Errorf("alloc_failure %q: want %q or %q", c.AllocFailure, AllocSkip, AllocAbandon))
	}
	for i, pc := range c.PostProcess {
		pass, err := postprocess.NewPass(pc.Name)
		if err == nil {
			err = pass.Configure(pc.Params)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("post_process[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (c Config) transparentPolicy() drawlist.TransparentPolicy {
	if c.TransparentShadows == ShadowsAlphaTest {
		return drawlist.TransparentAlphaTest
	}
	return drawlist.TransparentSkip
}

// passes builds the configured chain.
func (c Config) passes() ([]postprocess.Pass, error) {
	out := make([]postprocess.Pass, 0, len(c.PostProcess))
	for _, pc := range c.PostProcess {
		pass, err := postprocess.NewPass(pc.Name)
		if err != nil {
			return nil, err
		}
		if err := pass.Configure(pc.Params); err != nil {
			return nil, err
		}
		pass.SetEnabled(pc.enabled())
		out = append(out, pass)
	}
	return out, nil
}
