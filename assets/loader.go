package assets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"scene-renderer/internal/logging"
	"scene-renderer/renderer"
	"scene-renderer/scene"
)

// Publisher receives finished loads. *renderer.UploadQueue satisfies it.
type Publisher interface {
	Publish(renderer.Upload)
}

type LoaderConfig struct {
	Workers int
	// MaxSize bounds the longer side of decoded images; zero keeps the
	// original size.
	MaxSize int
	// IdleTimeout is how long a spare worker waits before exiting.
	IdleTimeout time.Duration
}

func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{Workers: 4, MaxSize: 4096, IdleTimeout: time.Second}
}

// TextureLoader decodes image files on a worker pool. Load returns a pending
// texture at once; the pixels reach it through the Publisher, which the
// renderer drains on its own thread before building the next frame.
type TextureLoader struct {
	pool worker.DynamicWorkerPool
	out  Publisher
	cfg  LoaderConfig
	log  *slog.Logger

	mu      sync.Mutex
	loaded  map[string]*scene.Texture
	nextID  int
	pending sync.WaitGroup
}

func NewTextureLoader(out Publisher, cfg LoaderConfig, log *slog.Logger) *TextureLoader {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Second
	}
	return &TextureLoader{
		pool:   worker.NewDynamicWorkerPool(cfg.Workers, 256, cfg.IdleTimeout),
		out:    out,
		cfg:    cfg,
		log:    logging.Component(log, "assets"),
		loaded: make(map[string]*scene.Texture),
	}
}

// Load starts decoding path unless it was requested before, and returns
// the texture that will receive the pixels.
func (l *TextureLoader) Load(path string) *scene.Texture {
	key := filepath.Clean(path)

	l.mu.Lock()
	if t, ok := l.loaded[key]; ok {
		l.mu.Unlock()
		return t
	}
	t := scene.NewPendingTexture(filepath.Base(key))
	l.loaded[key] = t
	id := l.nextID
	l.nextID++
	l.mu.Unlock()

	l.pending.Add(1)
	l.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			defer l.pending.Done()
			return nil, l.decode(key, t)
		},
	})
	return t
}

func (l *TextureLoader) decode(path string, t *scene.Texture) error {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		l.fail(t, err)
		return err
	}
	defer f.Close()

	img, err := Decode(f, l.cfg.MaxSize)
	if err != nil {
		err = fmt.Errorf("%s: %w", path, err)
		l.fail(t, err)
		return err
	}
	l.out.Publish(renderer.Upload{Texture: t, Width: img.Width, Height: img.Height, Pixels: img.Pixels})
	l.log.Debug("decoded texture",
		slog.String("path", path),
		slog.Int("width", int(img.Width)),
		slog.Int("height", int(img.Height)),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (l *TextureLoader) fail(t *scene.Texture, err error) {
	l.log.Warn("texture load failed", slog.String("texture", t.Name), slog.String("error", err.Error()))
	l.out.Publish(renderer.Upload{Texture: t, Err: err})
}

// Wait blocks until every Load issued so far has published its result.
func (l *TextureLoader) Wait() { l.pending.Wait() }
