package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听配置文件变更并回调最新配置
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	stop    chan struct{}
}

// NewWatcher watches the config file's directory; editors usually
// replace the file on save, so watching the file itself would miss
// rename-based writes.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:    path,
		watcher: fw,
		logger:  logger,
		stop:    make(chan struct{}),
	}, nil
}

// Start 启动监听循环，配置重载成功后调用onChange
func (w *Watcher) Start(onChange func(*Config)) {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(w.path)
				if err != nil {
					w.logger.Warn("config reload failed", zap.Error(err))
					continue
				}
				w.logger.Info("config reloaded", zap.String("path", w.path))
				onChange(cfg)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watcher error", zap.Error(err))

			case <-w.stop:
				return
			}
		}
	}()
}

// Stop 停止监听
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
}
