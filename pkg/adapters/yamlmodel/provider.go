package yamlmodel

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/colloquy/pkg/domain"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 100 * time.Millisecond

// Provider serves the model stored at a path on disk. It implements
// ports.ModelProvider and ports.Watchable.
type Provider struct {
	dir      string
	file     string
	loader   *Loader
	debounce time.Duration
}

// NewProvider creates a provider for the model file at path. Imports are
// resolved inside the directory holding it.
func NewProvider(path string, opts ...Option) (*Provider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	dir := filepath.Dir(abs)
	return &Provider{
		dir:      dir,
		file:     filepath.Base(abs),
		loader:   NewLoader(os.DirFS(dir), append([]Option{WithCommandDir(dir)}, opts...)...),
		debounce: DefaultDebounce,
	}, nil
}

// Load reads the model.
func (p *Provider) Load(ctx context.Context) (*domain.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.loader.Load(p.file)
}

// Watch signals changes to YAML files under the model directory until ctx is
// done.
func (p *Provider) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	err = filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", p.dir, err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer w.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if !isYAML(evt.Name) || evt.Op == fsnotify.Chmod {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(p.debounce)
				} else {
					timer.Reset(p.debounce)
				}
				fire = timer.C
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-fire:
				fire = nil
				select {
				case ch <- struct{}{}:
				default: // a reload is already pending
				}
			}
		}
	}()
	return ch, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
