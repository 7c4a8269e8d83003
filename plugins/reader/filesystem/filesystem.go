package filesystem

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"fragsplit/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 递归时跳过的目录基名（大小写不敏感）。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// AllowExts: 递归时只接受这些扩展名（大小写不敏感，含点，如 ".shader"）。
	// 为空表示不过滤。显式给出的单文件 root 不受影响。
	AllowExts []string `json:"allow_exts"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
//
// 约束：
// 1) 目录内按名字字典序，先子目录后文件，顺序稳定。
// 2) 指向常规文件的符号链接会被读取；指向目录的符号链接忽略。
// 3) "-" 只能单独出现，表示 STDIN，FileID 为 "stdin"。
type FileSystem struct {
	bufSize    int
	excludeDir map[string]struct{}
	allowExt   map[string]struct{}
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	if opts == nil {
		opts = &Options{}
	}
	b := opts.BufSize
	if b <= 0 {
		b = 64 * 1024
	}
	return &FileSystem{
		bufSize:    b,
		excludeDir: lowerSet(opts.ExcludeDirNames, false),
		allowExt:   lowerSet(opts.AllowExts, true),
	}
}

func lowerSet(names []string, ext bool) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if ext && !strings.HasPrefix(n, ".") {
			n = "." + n
		}
		set[n] = struct{}{}
	}
	return set
}

var _ contract.Reader = (*FileSystem)(nil)

// Iterate 遍历 roots，按稳定顺序对每个常规文件调用 yield。
// roots 为空或仅为 "-" 时读取 STDIN。yield 负责关闭 rc。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return yield(contract.FileID("stdin"), newBufferedCloser(os.Stdin, r.bufSize))
	}
	if slices.Contains(roots, "-") {
		return errors.New("stdin '-' cannot be mixed with other roots")
	}
	for _, root := range roots {
		err := r.walk(ctx, root, func(p string) error {
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			brc := newBufferedCloser(f, r.bufSize)
			if err := yield(contract.NormalizeFileID(p), brc); err != nil {
				_ = brc.Close()
				return err
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Paths 返回 root 下 Iterate 会访问的全部文件路径（同样的顺序与过滤），不打开文件。
func (r *FileSystem) Paths(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := r.walk(ctx, root, func(p string) error {
		out = append(out, p)
		return nil
	})
	return out, err
}

// walk 对 root 展开出的每个常规文件调用 visit。
func (r *FileSystem) walk(ctx context.Context, root string, visit func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Lstat(root)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := os.Stat(root)
		if err != nil {
			return err
		}
		if !t.Mode().IsRegular() {
			return nil
		}
		return visit(root)
	}
	if info.IsDir() {
		return r.walkDir(ctx, root, visit)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return visit(root)
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, visit func(string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	slices.SortFunc(entries, func(a, b os.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), visit); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !r.allowed(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		switch {
		case e.Type()&os.ModeSymlink != 0:
			t, err := os.Stat(p)
			if err != nil {
				return err
			}
			if !t.Mode().IsRegular() {
				continue
			}
		case !e.Type().IsRegular():
			// 设备、管道等
			continue
		}
		if err := visit(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) allowed(name string) bool {
	if len(r.allowExt) == 0 {
		return true
	}
	_, ok := r.allowExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
