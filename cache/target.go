package cache

import (
	"errors"

	"scene-renderer/gpu"
)

// Target describes an off-screen render target. Like geometry it is keyed by
// identity and versioned; Resize bumps the version so the next acquire
// reallocates the attachments.
type Target struct {
	desc    gpu.TargetDesc
	version uint64
}

func NewTarget(desc gpu.TargetDesc) *Target {
	return &Target{desc: desc, version: 1}
}

func (t *Target) Desc() gpu.TargetDesc { return t.desc }
func (t *Target) Version() uint64      { return t.version }

// Resize changes the attachment size. It is a no-op for the current size.
func (t *Target) Resize(width, height int32) {
	if t.desc.Width == width && t.desc.Height == height {
		return
	}
	t.desc.Width = width
	t.desc.Height = height
	t.version++
}

type targetHandles struct {
	target      gpu.Target
	attachments gpu.Attachments
}

type targetUploader struct {
	dev gpu.Device
}

var errNoPartialTarget = errors.New("render targets are always recreated")

func (targetUploader) version(t *Target) uint64           { return t.version }
func (targetUploader) label(t *Target) string             { return t.desc.Label }
func (targetUploader) signature(t *Target) gpu.TargetDesc { return t.desc }

func (u targetUploader) create(t *Target) (targetHandles, error) {
	h, att, err := u.dev.CreateTarget(t.desc)
	return targetHandles{target: h, attachments: att}, err
}

func (targetUploader) update(targetHandles, *Target) error { return errNoPartialTarget }

func (u targetUploader) destroy(h targetHandles) { u.dev.DeleteTarget(h.target) }

// AcquireTarget returns the framebuffer and attachments for t.
func (c *Cache) AcquireTarget(t *Target) (gpu.Target, gpu.Attachments, error) {
	h, err := c.targets.acquire(c, t)
	return h.target, h.attachments, err
}

// ReleaseTarget drops an owner; see ReleaseGeometry.
func (c *Cache) ReleaseTarget(t *Target) bool {
	return c.targets.release(t)
}
