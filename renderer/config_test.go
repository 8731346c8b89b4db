package renderer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-renderer/core"
	"scene-renderer/drawlist"
	"scene-renderer/postprocess"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, drawlist.TransparentSkip, cfg.transparentPolicy())

	passes, err := cfg.passes()
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, "tonemap", passes[0].Name())
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "renderer.toml", `
width = 800
height = 600
shadow_map_size = 1024
transparent_shadows = "alpha-test"
alloc_failure = "abandon"
clear_color = { R = 0.2, G = 0.3, B = 0.4, A = 1.0 }

[[post_process]]
name = "bloom"
params = { threshold = 0.8, passes = 3 }

[[post_process]]
name = "tonemap"
enabled = false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int32(800), cfg.Width)
	assert.Equal(t, int32(600), cfg.Height)
	assert.Equal(t, int32(1024), cfg.ShadowMapSize)
	assert.Equal(t, drawlist.TransparentAlphaTest, cfg.transparentPolicy())
	assert.Equal(t, AllocAbandon, cfg.AllocFailure)
	assert.Equal(t, core.Color{R: 0.2, G: 0.3, B: 0.4, A: 1}, cfg.ClearColor)
	// Untouched keys keep their defaults.
	assert.True(t, cfg.HDR)
	assert.Equal(t, uint64(600), cfg.IdleEvictionFrames)

	passes, err := cfg.passes()
	require.NoError(t, err)
	require.Len(t, passes, 2)
	bloom := passes[0].(*postprocess.Bloom)
	assert.InDelta(t, 0.8, bloom.Threshold, 1e-6)
	assert.InDelta(t, 3, bloom.Passes, 1e-6)
	assert.False(t, passes[1].Enabled())
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "renderer.yml", `
width: 320
height: 240
shadows: false
hdr: false
post_process:
  - name: colorgrade
    params:
      Saturation: 0.5
  - name: tonemap
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int32(320), cfg.Width)
	assert.False(t, cfg.Shadows)
	assert.False(t, cfg.HDR)

	passes, err := cfg.passes()
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.InDelta(t, 0.5, passes[0].(*postprocess.ColorGrade).Saturation, 1e-6)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "read config")

	_, err = LoadConfig(writeConfig(t, "renderer.json", `{}`))
	assert.ErrorContains(t, err, "unsupported format")

	_, err = LoadConfig(writeConfig(t, "broken.toml", "width = ["))
	assert.ErrorContains(t, err, "parse config")

	_, err = LoadConfig(writeConfig(t, "bad.yaml", "width: -1\n"))
	assert.ErrorContains(t, err, "must be positive")
}

func TestValidateJoinsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	cfg.ShadowMapSize = 0
	cfg.TransparentShadows = "blend"
	cfg.AllocFailure = "retry"
	cfg.PostProcess = []PassConfig{{Name: "ssao"}, {Name: "blur", Params: map[string]float64{"sigma": 2}}}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"size 0x720", "shadow_map_size", "transparent_shadows", "alloc_failure", "post_process[0]", "post_process[1]"} {
		assert.ErrorContains(t, err, want)
	}

	cfg = DefaultConfig()
	cfg.Shadows = false
	cfg.ShadowMapSize = 0
	assert.NoError(t, cfg.Validate())
}
