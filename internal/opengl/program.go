package opengl

import (
	"log/slog"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"scene-renderer/gpu"
)

// CompileProgram compiles and links a vertex/fragment pair. Failures carry
// the driver's info log.
func (d *Device) CompileProgram(label, vertexSrc, fragmentSrc string) (gpu.Program, error) {
	if d.lost {
		return 0, gpu.ErrContextLost
	}
	vert, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)
	frag, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, &gpu.CompileError{Stage: "link", Log: strings.TrimRight(log, "\x00")}
	}
	d.log.Debug("linked program", slog.String("label", label), slog.Uint64("program", uint64(prog)))
	return gpu.Program(prog), nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		stage := "vertex"
		if shaderType == gl.FRAGMENT_SHADER {
			stage = "fragment"
		}
		return 0, &gpu.CompileError{Stage: stage, Log: strings.TrimRight(log, "\x00")}
	}
	return shader, nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	if d.lost || p == 0 {
		return
	}
	gl.DeleteProgram(uint32(p))
}

func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	if d.lost {
		return -1
	}
	return gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
}
