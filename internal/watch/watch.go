// Package watch 监视目录中的着色器源文件，变更稳定后回调重新拆分。
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"fragsplit/internal/diag"
	"fragsplit/pkg/contract"
)

// Handler 处理一个已稳定的源文件路径。
type Handler func(ctx context.Context, path string) error

// Stats 记录监视期间的活动。
type Stats struct {
	Events    int
	Processed int
	Errors    int
	LastPath  string
}

// Watcher 递归监视 dir（跳过 Frags 输出目录），
// 对同一文件的连续事件去抖，静默 debounce 之后调用 Handler 一次。
type Watcher struct {
	mu       sync.Mutex
	fw       *fsnotify.Watcher
	dir      string
	debounce time.Duration
	pending  map[string]time.Time
	handle   Handler
	logger   *diag.Logger
	stats    Stats
}

// New 创建 Watcher；debounce<=0 时使用 500ms。
func New(dir string, debounce time.Duration, handle Handler, logger *diag.Logger) (*Watcher, error) {
	if handle == nil {
		return nil, errors.New("watch: nil handler")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		fw:       fw,
		dir:      dir,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		handle:   handle,
		logger:   logger,
	}, nil
}

// Close 释放底层 fsnotify 资源。
func (w *Watcher) Close() error { return w.fw.Close() }

// Stats 返回当前统计快照。
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run 阻塞直到 ctx 结束或事件通道关闭。ctx 结束返回 nil。
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addTree(w.dir); err != nil {
		return err
	}
	tick := time.NewTicker(max(w.debounce/5, 10*time.Millisecond))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Fail("watch", "watcher error", err, "")
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case now := <-tick.C:
			w.processDebounced(ctx, now)
		}
	}
}

// addTree 监视 root 及其子目录。
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.EqualFold(d.Name(), contract.UnitsDir) {
			return filepath.SkipDir
		}
		return w.fw.Add(p)
	})
}

func isShader(name string) bool {
	return strings.EqualFold(filepath.Ext(name), contract.ShaderExt)
}

// handleEvent 记录写入/创建事件；新建目录加入监视。
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if !strings.EqualFold(filepath.Base(ev.Name), contract.UnitsDir) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Fail("watch", "watch new dir failed", err, ev.Name)
					w.mu.Lock()
					w.stats.Errors++
					w.mu.Unlock()
				}
			}
			return
		}
	}
	if !isShader(ev.Name) {
		return
	}
	w.mu.Lock()
	w.stats.Events++
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// processDebounced 调用已静默超过 debounce 的文件的 Handler，按路径排序。
func (w *Watcher) processDebounced(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var ready []string
	for p, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, p)
			delete(w.pending, p)
		}
	}
	w.mu.Unlock()
	slices.Sort(ready)

	for _, p := range ready {
		if ctx.Err() != nil {
			return
		}
		// 已被删除或改名
		if _, err := os.Stat(p); err != nil {
			continue
		}
		err := w.handle(ctx, p)
		w.mu.Lock()
		w.stats.Processed++
		w.stats.LastPath = p
		if err != nil {
			w.stats.Errors++
		}
		w.mu.Unlock()
		if err != nil {
			w.logger.Fail("watch", "handler failed", err, p)
		}
	}
}
