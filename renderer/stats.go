package renderer

import (
	"fmt"

	"scene-renderer/cache"
	"scene-renderer/state"
)

// Diagnostic kinds.
const (
	DiagShader   = "shader"
	DiagResource = "resource"
	DiagShadow   = "shadow"
	DiagUpload   = "upload"
)

// Diagnostic is a degraded result that did not fail the frame.
type Diagnostic struct {
	Kind    string
	Subject string
	Err     error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %v", d.Kind, d.Subject, d.Err)
}

// Stats describe one frame.
type Stats struct {
	Frame     uint64
	DrawCalls int
	Triangles int
	// CacheHitRate is the resource cache hit rate of this frame.
	CacheHitRate float64
	Cache        cache.Stats
	ProgramBinds int
	TextureBinds int
	StateChanges int

	ShadowPasses int
	PostPasses   int
	Culled       int
	Skipped      int

	Diagnostics []Diagnostic
}

func (s *Stats) fill(c cache.Stats, t state.Counters) {
	s.Cache = c
	s.CacheHitRate = c.HitRate()
	s.DrawCalls = int(t.Draws)
	s.Triangles = int(t.Triangles)
	s.ProgramBinds = int(t.ProgramBinds)
	s.TextureBinds = int(t.TextureBinds)
	s.StateChanges = int(t.StateChanges)
}

func (s Stats) String() string {
	return fmt.Sprintf("frame %d: %d draws, %d tris, hit %.0f%%, %d programs, %d textures, %d states, %d shadow, %d post, %d culled",
		s.Frame, s.DrawCalls, s.Triangles, s.CacheHitRate*100, s.ProgramBinds, s.TextureBinds, s.StateChanges,
		s.ShadowPasses, s.PostPasses, s.Culled)
}
