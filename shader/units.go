package shader

import (
	"fmt"

	"scene-renderer/scene"
)

// Texture unit assignment. Material samplers use the low units, shadow maps
// the upper half.
const (
	UnitAlbedo            = 0
	UnitNormal            = 1
	UnitMetallicRoughness = 2
	UnitEmissive          = 3
	FirstShadowUnit       = 8
)

// MaterialUnits maps each slot of a material to a texture unit. Built-in
// samplers have fixed units; custom samplers are numbered in order.
func MaterialUnits(slots []scene.TextureSlot) []int {
	units := make([]int, len(slots))
	next := 0
	for i, s := range slots {
		switch s.Sampler {
		case "uAlbedoMap":
			units[i] = UnitAlbedo
		case "uNormalMap":
			units[i] = UnitNormal
		case "uMetallicRoughnessMap":
			units[i] = UnitMetallicRoughness
		case "uEmissiveMap":
			units[i] = UnitEmissive
		default:
			units[i] = next
		}
		if units[i] >= next {
			next = units[i] + 1
		}
	}
	return units
}

// ShadowUnit returns the unit of shadow slot i.
func ShadowUnit(i int) int { return FirstShadowUnit + i }

// Indexed returns the uniform name of element i of an array uniform.
func Indexed(name string, i int) string {
	return fmt.Sprintf("%s[%d]", name, i)
}
