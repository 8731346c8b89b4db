package cache

import (
	"errors"
	"log/slog"

	"scene-renderer/gpu"
)

// uploader moves one kind of descriptor to the GPU.
type uploader[K comparable, H comparable, S comparable] interface {
	version(K) uint64
	label(K) string
	signature(K) S
	create(K) (H, error)
	// update overwrites h in place; only called when the signature is unchanged.
	update(h H, key K) error
	destroy(H)
}

type entry[K comparable, H comparable, S comparable] struct {
	key     K
	handle  H
	sig     S
	version uint64
	refs    int
	// live is false once the handle is gone: after context loss, eviction
	// or a failed recreation. The next acquire uploads again.
	live     bool
	doomed   bool
	lastUsed uint64
	node     *lruNode[*entry[K, H, S]]
}

// table holds the entries for one descriptor kind, keyed by descriptor identity.
type table[K comparable, H comparable, S comparable] struct {
	kind    string
	up      uploader[K, H, S]
	entries map[K]*entry[K, H, S]
	lru     lruList[*entry[K, H, S]]
	doomed  []*entry[K, H, S]
}

func newTable[K comparable, H comparable, S comparable](kind string, up uploader[K, H, S]) *table[K, H, S] {
	return &table[K, H, S]{kind: kind, up: up, entries: make(map[K]*entry[K, H, S])}
}

func (t *table[K, H, S]) acquire(c *Cache, key K) (H, error) {
	var zero H
	e := t.entries[key]
	ver := t.up.version(key)

	if e != nil && e.live && e.version == ver {
		c.stats.Hits++
		t.use(e, c.frame)
		return e.handle, nil
	}
	c.stats.Misses++

	sig := t.up.signature(key)
	wasLive := e != nil && e.live
	if wasLive {
		if e.sig == sig {
			err := t.up.update(e.handle, key)
			if err == nil {
				e.version = ver
				c.stats.PartialUpdates++
				t.use(e, c.frame)
				c.log.Debug("partial update", slog.String("kind", t.kind), slog.String("name", t.up.label(key)), slog.Uint64("version", ver))
				return e.handle, nil
			}
			if errors.Is(err, gpu.ErrContextLost) {
				return zero, &ResourceError{Kind: t.kind, Name: t.up.label(key), Err: err}
			}
			c.log.Debug("partial update failed, recreating", slog.String("kind", t.kind), slog.String("name", t.up.label(key)), slog.Any("err", err))
		}
		t.up.destroy(e.handle)
		t.drop(e)
	}

	h, err := t.up.create(key)
	if err != nil {
		return zero, &ResourceError{Kind: t.kind, Name: t.up.label(key), Err: err}
	}
	if e == nil {
		e = &entry[K, H, S]{key: key, refs: 1}
		t.entries[key] = e
	}
	e.handle = h
	e.sig = sig
	e.version = ver
	e.live = true
	t.use(e, c.frame)

	if wasLive {
		c.stats.Reuploads++
		c.log.Debug("reupload", slog.String("kind", t.kind), slog.String("name", t.up.label(key)), slog.Uint64("version", ver))
	} else {
		c.stats.Uploads++
		c.log.Debug("upload", slog.String("kind", t.kind), slog.String("name", t.up.label(key)), slog.Uint64("version", ver))
	}
	return h, nil
}

// use records a use this frame. A use also revives an entry released to
// zero earlier in the frame.
func (t *table[K, H, S]) use(e *entry[K, H, S], frame uint64) {
	e.lastUsed = frame
	if e.doomed {
		e.doomed = false
		e.refs = 1
	}
	if e.node == nil {
		e.node = t.lru.PushFront(e)
	} else {
		t.lru.MoveToFront(e.node)
	}
}

// drop forgets the handle without any GPU call.
func (t *table[K, H, S]) drop(e *entry[K, H, S]) {
	var zero H
	e.handle = zero
	e.live = false
	if e.node != nil {
		t.lru.Remove(e.node)
		e.node = nil
	}
}

func (t *table[K, H, S]) retain(key K) bool {
	e := t.entries[key]
	if e == nil {
		return false
	}
	if e.doomed {
		e.doomed = false
		e.refs = 0
	}
	e.refs++
	return true
}

// release drops one owner. At zero the entry is scheduled for destruction
// at the end of the frame.
func (t *table[K, H, S]) release(key K) bool {
	e := t.entries[key]
	if e == nil || e.doomed {
		return false
	}
	e.refs--
	if e.refs <= 0 {
		e.refs = 0
		e.doomed = true
		t.doomed = append(t.doomed, e)
	}
	return true
}

// flush destroys entries still doomed at the end of the frame.
func (t *table[K, H, S]) flush(c *Cache) {
	for _, e := range t.doomed {
		if !e.doomed {
			continue
		}
		if e.live {
			t.up.destroy(e.handle)
			c.stats.Destroys++
			c.log.Debug("destroy", slog.String("kind", t.kind), slog.String("name", t.up.label(e.key)))
		}
		t.drop(e)
		delete(t.entries, e.key)
	}
	t.doomed = t.doomed[:0]
}

// invalidate forgets every handle without GPU calls. Doomed entries are
// removed outright since there is nothing left to destroy.
func (t *table[K, H, S]) invalidate() {
	for key, e := range t.entries {
		t.drop(e)
		if e.doomed {
			delete(t.entries, key)
		}
	}
	t.doomed = t.doomed[:0]
	t.lru.Clear()
}

// evict frees the GPU copies of entries unused for more than idle frames.
func (t *table[K, H, S]) evict(c *Cache, idle uint64) int {
	n := 0
	for node := t.lru.Oldest(); node != nil; node = t.lru.Oldest() {
		e := node.value
		if c.frame-e.lastUsed <= idle {
			break
		}
		t.up.destroy(e.handle)
		t.drop(e)
		c.stats.Evictions++
		n++
		c.log.Debug("evict", slog.String("kind", t.kind), slog.String("name", t.up.label(e.key)))
	}
	return n
}

// destroyAll frees every live handle and empties the table.
func (t *table[K, H, S]) destroyAll(c *Cache) {
	for key, e := range t.entries {
		if e.live {
			t.up.destroy(e.handle)
			c.stats.Destroys++
		}
		t.drop(e)
		delete(t.entries, key)
	}
	t.doomed = t.doomed[:0]
}

func (t *table[K, H, S]) resident() int {
	n := 0
	for _, e := range t.entries {
		if e.live {
			n++
		}
	}
	return n
}

func (t *table[K, H, S]) lookup(key K) (H, bool) {
	e := t.entries[key]
	if e == nil || !e.live {
		var zero H
		return zero, false
	}
	return e.handle, true
}
