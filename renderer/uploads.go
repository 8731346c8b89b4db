package renderer

import (
	"scene-renderer/scene"
)

// Upload is pixel data that finished loading off the render thread.
type Upload struct {
	Texture *scene.Texture
	Width   int32
	Height  int32
	Pixels  []byte
	// Err reports a failed load; the texture keeps its placeholder.
	Err error
}

// UploadQueue hands loaded data to the render thread. Publish may be called
// from any goroutine; the renderer drains the queue at the start of each
// frame, before any draw list is built.
type UploadQueue struct {
	ch chan Upload
}

func NewUploadQueue(capacity int) *UploadQueue {
	return &UploadQueue{ch: make(chan Upload, capacity)}
}

// Publish queues u. It blocks while the queue is full.
func (q *UploadQueue) Publish(u Upload) { q.ch <- u }

// TryPublish queues u unless the queue is full.
func (q *UploadQueue) TryPublish(u Upload) bool {
	select {
	case q.ch <- u:
		return true
	default:
		return false
	}
}

// drain applies everything queued so far without waiting for more.
func (q *UploadQueue) drain(apply func(Upload)) int {
	n := 0
	for {
		select {
		case u := <-q.ch:
			apply(u)
			n++
		default:
			return n
		}
	}
}

func (q *UploadQueue) Len() int { return len(q.ch) }
