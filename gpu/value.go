package gpu

import (
	"fmt"

	"scene-renderer/math"
)

type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueInt
	ValueFloat
	ValueVec2
	ValueVec3
	ValueVec4
	ValueMat4
)

// Value is a uniform value. It is comparable, which lets the state tracker
// skip uploads of unchanged uniforms with a plain ==.
type Value struct {
	Kind ValueKind
	I    int32
	F    [16]float32
}

func Int(i int32) Value {
	return Value{Kind: ValueInt, I: i}
}

func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

func Float(f float32) Value {
	return Value{Kind: ValueFloat, F: [16]float32{f}}
}

func Vec2(v math.Vec2) Value {
	return Value{Kind: ValueVec2, F: [16]float32{v.X, v.Y}}
}

func Vec3(v math.Vec3) Value {
	return Value{Kind: ValueVec3, F: [16]float32{v.X, v.Y, v.Z}}
}

func Vec4(v math.Vec4) Value {
	return Value{Kind: ValueVec4, F: [16]float32{v.X, v.Y, v.Z, v.W}}
}

func Mat4(m math.Mat4) Value {
	v := Value{Kind: ValueMat4}
	for i := 0; i < 4; i++ {
		copy(v.F[i*4:i*4+4], m[i][:])
	}
	return v
}

func (v Value) String() string {
	switch v.Kind {
	case ValueInt:
		return fmt.Sprintf("int(%d)", v.I)
	case ValueFloat:
		return fmt.Sprintf("float(%g)", v.F[0])
	case ValueVec2:
		return fmt.Sprintf("vec2%v", v.F[:2])
	case ValueVec3:
		return fmt.Sprintf("vec3%v", v.F[:3])
	case ValueVec4:
		return fmt.Sprintf("vec4%v", v.F[:4])
	case ValueMat4:
		return fmt.Sprintf("mat4%v", v.F[:])
	}
	return "none"
}

// Uniform is a named uniform value.
type Uniform struct {
	Name  string
	Value Value
}
