package main

import (
	"fmt"
	"strings"
	"time"

	"scene-renderer/renderer"
)

// hud accumulates frame timings and renders them into the window title.
type hud struct {
	title  string
	frames int
	since  time.Duration
	fps    float64
}

// tick reports whether the fps reading was refreshed.
func (h *hud) tick(dt time.Duration) bool {
	h.frames++
	h.since += dt
	if h.since < 500*time.Millisecond {
		return false
	}
	h.fps = float64(h.frames) / h.since.Seconds()
	h.frames = 0
	h.since = 0
	return true
}

func (h *hud) text(stats renderer.Stats, clock string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %.0f fps | %d draws | %d tris | hit %.0f%%",
		h.title, h.fps, stats.DrawCalls, stats.Triangles, stats.CacheHitRate*100)
	if stats.ShadowPasses > 0 {
		fmt.Fprintf(&b, " | %d shadow", stats.ShadowPasses)
	}
	if clock != "" {
		fmt.Fprintf(&b, " | %s", clock)
	}
	if n := len(stats.Diagnostics); n > 0 {
		fmt.Fprintf(&b, " | %d warnings", n)
	}
	return b.String()
}
