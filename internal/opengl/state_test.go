package opengl

import (
	"testing"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/stretchr/testify/assert"

	"scene-renderer/gpu"
)

func TestEnumMapping(t *testing.T) {
	assert.Equal(t, uint32(gl.LESS), compareFunc(gpu.CompareLess))
	assert.Equal(t, uint32(gl.LEQUAL), compareFunc(gpu.CompareLessEqual))
	assert.Equal(t, uint32(gl.ALWAYS), compareFunc(gpu.CompareAlways))
	assert.Equal(t, uint32(gl.ONE_MINUS_SRC_ALPHA), blendFactor(gpu.BlendOneMinusSrcAlpha))
	assert.Equal(t, uint32(gl.ONE), blendFactor(gpu.BlendOne))
	assert.Equal(t, uint32(gl.FUNC_REVERSE_SUBTRACT), blendEquation(gpu.BlendReverseSubtract))
	assert.Equal(t, uint32(gl.REPLACE), stencilOp(gpu.StencilReplace))
	assert.Equal(t, uint32(gl.POINTS), primitive(gpu.Points))
	assert.Equal(t, uint32(gl.TRIANGLES), primitive(gpu.Triangles))
}

func TestStencilWriteMask(t *testing.T) {
	outline := gpu.StencilState{Enabled: true, Func: gpu.CompareAlways, Ref: 1, ReadMask: 0xFF, WriteMask: 0x0F}
	assert.Equal(t, uint32(0x0F), stencilWriteMask(outline))

	outline.Enabled = false
	assert.Equal(t, uint32(0xFF), stencilWriteMask(outline), "clears must reach every bit")
}

func TestFormats(t *testing.T) {
	f, err := glFormat(gpu.FormatRGBA16F)
	assert.NoError(t, err)
	assert.Equal(t, int32(gl.RGBA16F), f.internal)
	assert.Equal(t, uint32(gl.HALF_FLOAT), f.xtype)

	f, err = glFormat(gpu.FormatDepth24)
	assert.NoError(t, err)
	assert.Equal(t, uint32(gl.DEPTH_COMPONENT), f.format)

	_, err = glFormat(gpu.FormatNone)
	assert.Error(t, err)
}

// Resource calls on a lost device fail before touching GL.
func TestLostDeviceNeedsNoContext(t *testing.T) {
	d := &Device{}
	d.reset()
	d.MarkLost()

	assert.ErrorIs(t, d.Status(), gpu.ErrContextLost)
	_, err := d.CreateMesh(gpu.MeshData{Label: "m"})
	assert.ErrorIs(t, err, gpu.ErrContextLost)
	_, err = d.CreateTexture(gpu.TextureDesc{Label: "t"}, nil)
	assert.ErrorIs(t, err, gpu.ErrContextLost)
	_, _, err = d.CreateTarget(gpu.TargetDesc{Label: "rt"})
	assert.ErrorIs(t, err, gpu.ErrContextLost)
	_, err = d.CompileProgram("p", "", "")
	assert.ErrorIs(t, err, gpu.ErrContextLost)
	assert.Equal(t, int32(-1), d.UniformLocation(1, "uModel"))
	d.DeleteTexture(3)
	d.DeleteProgram(4)
	d.DeleteMesh(5)
}
