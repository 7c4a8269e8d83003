package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fragsplit/internal/diag"
	"fragsplit/pkg/contract"
	rfs "fragsplit/plugins/reader/filesystem"
	"fragsplit/plugins/splitter/fragment"
	wfs "fragsplit/plugins/writer/filesystem"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const twoFrags = "// header\n" +
	"#ifdef FRAGMENT\n" +
	"#version 300 es\n" +
	"void a(){}\n" +
	"#endif\n" +
	"\n" +
	"#ifdef FRAGMENT\n" +
	"#version 300 es\n" +
	"void b(){}\n" +
	"//////////////////////////////////////////////////////\n" +
	"trailing\n" +
	"#endif\n"

func realComponents(t testing.TB) Components {
	t.Helper()
	w, err := wfs.New(nil)
	require.NoError(t, err)
	return Components{
		Reader:   rfs.New(&rfs.Options{AllowExts: []string{contract.ShaderExt}, ExcludeDirNames: []string{contract.UnitsDir}}),
		Splitter: fragment.New(nil),
		Writer:   w,
	}
}

func writeShader(t testing.TB, p, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func readUnit(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, contract.UnitsDir, name))
	require.NoError(t, err)
	return string(b)
}

// 拆分并写出两个片段，内容经过完整变换
func TestSplitSource(t *testing.T) {
	dir := t.TempDir()
	names, err := SplitSource(context.Background(), realComponents(t), "shaders/water.shader", strings.NewReader(twoFrags), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"water_001.frag", "water_002.frag"}, names)
	assert.Equal(t, "#version 320 es\nvoid a(){}\n", readUnit(t, dir, "water_001.frag"))
	assert.Equal(t, "#version 320 es\nvoid b(){}\n", readUnit(t, dir, "water_002.frag"))
}

// 标记不足：不建目录、不写文件
func TestSplitSourceNotEnoughMarkers(t *testing.T) {
	dir := t.TempDir()
	names, err := SplitSource(context.Background(), realComponents(t), "one.shader", strings.NewReader("#ifdef FRAGMENT\nx\n#endif\n"), dir)
	require.NoError(t, err)
	assert.Empty(t, names)
	_, statErr := os.Stat(filepath.Join(dir, contract.UnitsDir))
	assert.True(t, os.IsNotExist(statErr))
}

// 已存在的同名文件被覆盖，已存在的 Frags 目录可复用
func TestSplitSourceOverwrite(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, filepath.Join(dir, contract.UnitsDir, "water_001.frag"), "old content that is longer\n")
	_, err := SplitSource(context.Background(), realComponents(t), "water.shader", strings.NewReader(twoFrags), dir)
	require.NoError(t, err)
	assert.Equal(t, "#version 320 es\nvoid a(){}\n", readUnit(t, dir, "water_001.frag"))
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

// 读取失败归类为 IOFailure(read)
func TestSplitSourceReadFailure(t *testing.T) {
	_, err := SplitSource(context.Background(), realComponents(t), "x.shader", failReader{}, t.TempDir())
	var iof *contract.IOFailure
	require.ErrorAs(t, err, &iof)
	assert.Equal(t, "read", iof.Op)
	assert.Equal(t, "x.shader", iof.Path)
}

// Frags 被普通文件占用：mkdir 失败
func TestSplitSourceMkdirFailure(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, filepath.Join(dir, contract.UnitsDir), "not a dir")
	_, err := SplitSource(context.Background(), realComponents(t), "x.shader", strings.NewReader(twoFrags), dir)
	var iof *contract.IOFailure
	require.ErrorAs(t, err, &iof)
	assert.Equal(t, "mkdir", iof.Op)
}

// 第二次写入失败：第一个文件保留，返回已写出的名字
type failingWriter struct {
	inner contract.Writer
	n     int
}

func (w *failingWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	w.n++
	if w.n == 2 {
		return errors.New("disk full")
	}
	return w.inner.Write(ctx, id, r)
}

func TestSplitSourceWriteFailureKeepsEarlier(t *testing.T) {
	dir := t.TempDir()
	comp := realComponents(t)
	comp.Writer = &failingWriter{inner: comp.Writer}
	names, err := SplitSource(context.Background(), comp, "water.shader", strings.NewReader(twoFrags), dir)
	var iof *contract.IOFailure
	require.ErrorAs(t, err, &iof)
	assert.Equal(t, "write", iof.Op)
	assert.Equal(t, filepath.Join(dir, contract.UnitsDir, "water_002.frag"), iof.Path)
	assert.Equal(t, []string{"water_001.frag"}, names)
	assert.FileExists(t, filepath.Join(dir, contract.UnitsDir, "water_001.frag"))
}

// SplitFile: 文件不存在
func TestSplitFileMissing(t *testing.T) {
	_, err := SplitFile(context.Background(), realComponents(t), filepath.Join(t.TempDir(), "nope.shader"), t.TempDir())
	var iof *contract.IOFailure
	require.ErrorAs(t, err, &iof)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// Run: 目录输入写入 <目录>/Frags，子目录源文件同样汇入
func TestRunDirectory(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, filepath.Join(dir, "a.shader"), twoFrags)
	writeShader(t, filepath.Join(dir, "sub", "b.SHADER"), twoFrags)
	writeShader(t, filepath.Join(dir, "notes.txt"), twoFrags)
	writeShader(t, filepath.Join(dir, "c.shader"), "no markers\n")

	res, err := Run(context.Background(), realComponents(t), Settings{Inputs: []string{dir}, Concurrency: 4}, diag.NewNop())
	require.NoError(t, err)
	require.Len(t, res, 3)
	var all []string
	for _, r := range res {
		assert.Equal(t, dir, r.OutputDir)
		all = append(all, r.Units...)
	}
	assert.ElementsMatch(t, []string{"b_001.frag", "b_002.frag", "a_001.frag", "a_002.frag"}, all)
	ents, err := os.ReadDir(filepath.Join(dir, contract.UnitsDir))
	require.NoError(t, err)
	assert.Len(t, ents, 4)
}

// Run: 文件输入写入其所在目录；配置了 OutputDir 时统一写入
func TestRunOutputDirResolution(t *testing.T) {
	src := t.TempDir()
	p := filepath.Join(src, "lava.shader")
	writeShader(t, p, twoFrags)

	res, err := Run(context.Background(), realComponents(t), Settings{Inputs: []string{p}}, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, src, res[0].OutputDir)
	assert.FileExists(t, filepath.Join(src, contract.UnitsDir, "lava_002.frag"))

	out := t.TempDir()
	_, err = Run(context.Background(), realComponents(t), Settings{Inputs: []string{p}, OutputDir: out}, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, contract.UnitsDir, "lava_001.frag"))
}

// Run: 同一输出目录内同名单元按输入顺序覆盖
func TestRunSameNameLastWins(t *testing.T) {
	out := t.TempDir()
	a := filepath.Join(t.TempDir(), "x.shader")
	b := filepath.Join(t.TempDir(), "x.shader")
	writeShader(t, a, "#ifdef FRAGMENT\nfirst\n#ifdef FRAGMENT\nA2\n")
	writeShader(t, b, "#ifdef FRAGMENT\nsecond\n#ifdef FRAGMENT\nB2\n")
	_, err := Run(context.Background(), realComponents(t), Settings{Inputs: []string{a, b}, OutputDir: out, Concurrency: 8}, nil)
	require.NoError(t, err)
	b1, err := os.ReadFile(filepath.Join(out, contract.UnitsDir, "x_001.frag"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(b1))
}

// 记录每次写入目标，用于观察首错取消
type recordingWriter struct {
	mu  sync.Mutex
	ids []string
}

func (w *recordingWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if strings.Contains(string(id), "bad_") {
		return errors.New("refused")
	}
	w.mu.Lock()
	w.ids = append(w.ids, string(id))
	w.mu.Unlock()
	_, err := io.Copy(io.Discard, r)
	return err
}

// Run: 任一文件失败返回带 IOFailure 的错误
func TestRunFirstError(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, filepath.Join(dir, "bad.shader"), twoFrags)
	comp := realComponents(t)
	comp.Writer = &recordingWriter{}
	_, err := Run(context.Background(), comp, Settings{Inputs: []string{dir}}, nil)
	var iof *contract.IOFailure
	require.ErrorAs(t, err, &iof)
	assert.Equal(t, "write", iof.Op)
}

// Run: 参数校验与输入错误
func TestRunSanity(t *testing.T) {
	_, err := Run(context.Background(), Components{}, Settings{Inputs: []string{"x"}}, nil)
	assert.Error(t, err)
	_, err = Run(context.Background(), realComponents(t), Settings{}, nil)
	assert.Error(t, err)
	_, err = Run(context.Background(), realComponents(t), Settings{Inputs: []string{"-", "a"}}, nil)
	assert.ErrorIs(t, err, contract.ErrInvariantViolation)
	_, err = Run(context.Background(), realComponents(t), Settings{Inputs: []string{filepath.Join(t.TempDir(), "missing")}}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// Run: 已取消的 ctx
func TestRunCanceled(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, filepath.Join(dir, "a.shader"), twoFrags)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, realComponents(t), Settings{Inputs: []string{dir}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
