package policy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/kirillm/action-guard/pkg/utils"
)

// Watcher перечитывает файл политики при изменении и обновляет Store.
// Невалидный файл логируется, предыдущая политика остается.
type Watcher struct {
	path     string
	profile  string
	store    *Store
	logger   *utils.Logger
	watcher  *fsnotify.Watcher
	onReload func(*Policy)
}

// NewWatcher создает наблюдателя. Следит за директорией, чтобы пережить
// атомарную замену файла редакторами.
func NewWatcher(path, profile string, store *Store, logger *utils.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("resolve policy path: %w", err)
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		profile: profile,
		store:   store,
		logger:  logger.Component("policy"),
		watcher: fw,
	}, nil
}

// OnReload задает callback после успешной перезагрузки
func (w *Watcher) OnReload(fn func(*Policy)) {
	w.onReload = fn
}

// Run обрабатывает события до отмены ctx
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug("fsnotify event=%s file=%s", event.Op, event.Name)
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error=%v", err)
		}
	}
}

func (w *Watcher) reload() {
	p, err := Load(w.path, w.profile)
	if err != nil {
		w.logger.Error("policy reload failed, keeping profile %s: %v", w.store.Current().ProfileName, err)
		return
	}

	w.store.Set(p)
	w.logger.Info("policy reloaded: profile=%s", p.ProfileName)

	if w.onReload != nil {
		w.onReload(p)
	}
}
