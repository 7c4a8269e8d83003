package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fragsplit/internal/diag"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recorder) handle(_ context.Context, p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
	return r.err
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w, err := New(dir, 50*time.Millisecond, rec.handle, diag.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// 连续写事件合并为一次回调，仅处理 .shader
func TestDebounce(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "water.shader")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	rec := &recorder{}
	w := newWatcher(t, dir, rec)

	w.handleEvent(fsnotify.Event{Name: p, Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: p, Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: p, Op: fsnotify.Chmod})

	// 未静默：不处理
	w.processDebounced(context.Background(), time.Now())
	assert.Empty(t, rec.got())

	w.processDebounced(context.Background(), time.Now().Add(time.Second))
	assert.Equal(t, []string{p}, rec.got())
	st := w.Stats()
	assert.Equal(t, 2, st.Events)
	assert.Equal(t, 1, st.Processed)
	assert.Equal(t, p, st.LastPath)

	// 已清空
	w.processDebounced(context.Background(), time.Now().Add(time.Hour))
	assert.Len(t, rec.got(), 1)
}

// 已删除的文件被跳过；Handler 错误计数
func TestProcessSkipsMissingAndCountsErrors(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "a.shader")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	rec := &recorder{err: errors.New("split failed")}
	w := newWatcher(t, dir, rec)

	w.handleEvent(fsnotify.Event{Name: keep, Op: fsnotify.Create})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "gone.shader"), Op: fsnotify.Write})
	w.processDebounced(context.Background(), time.Now().Add(time.Second))

	assert.Equal(t, []string{keep}, rec.got())
	assert.Equal(t, 1, w.Stats().Errors)
}

// 新建子目录无法加入监视时记录错误并计数
func TestNewDirWatchFailureCounted(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zapcore.DebugLevel)
	w, err := New(dir, 50*time.Millisecond, (&recorder{}).handle, diag.NewWithCore(core, "c1"))
	require.NoError(t, err)
	// 关闭后 Add 必然失败
	require.NoError(t, w.Close())

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	w.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Create})

	assert.Equal(t, 1, w.Stats().Errors)
	entries := logs.FilterField(zapcore.Field{Key: "comp", Type: zapcore.StringType, String: "watch"}).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "watch new dir failed", entries[0].Message)
	assert.Equal(t, sub, entries[0].ContextMap()["file_id"])

	// Frags 目录不加入监视，也不计错
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "Frags"), Op: fsnotify.Create})
	assert.Equal(t, 1, w.Stats().Errors)
}

func TestNewNilHandler(t *testing.T) {
	_, err := New(t.TempDir(), 0, nil, nil)
	assert.Error(t, err)
}

// 真实文件事件：写入后在去抖窗口之后回调
func TestRunDetectsWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Frags"), 0o755))
	rec := &recorder{}
	w := newWatcher(t, dir, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	p := filepath.Join(dir, "lava.shader")
	require.Eventually(t, func() bool {
		// 监视建立前的写入可能丢失，重复写直到被观察到
		_ = os.WriteFile(p, []byte("#ifdef FRAGMENT\n"), 0o644)
		return len(rec.got()) > 0
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, p, rec.got()[0])
}

func TestRunMissingDir(t *testing.T) {
	w := newWatcher(t, filepath.Join(t.TempDir(), "none"), &recorder{})
	assert.Error(t, w.Run(context.Background()))
}
