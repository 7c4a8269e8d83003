package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"fragsplit/internal/diag"
	"fragsplit/pkg/contract"
)

// - 单点并发：仅此层管理并发；原子组件均为同步、无内部并发。
// - 输出目录分组：写入同一目录的源文件串行处理，同名单元的覆盖顺序与输入顺序一致。
// - 首错取消：任一文件失败即 cancel 其余任务，返回该错误；已写出的文件保留。

// Components 聚合拆分所需的原子组件。
type Components struct {
	Reader   contract.Reader
	Splitter contract.Splitter
	Writer   contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs []string
	// OutputDir: 非空时所有片段写入 OutputDir/Frags；
	// 为空时目录输入写入 <目录>/Frags，文件输入写入 <所在目录>/Frags，STDIN 写入 ./Frags。
	OutputDir   string
	Concurrency int
}

// FileResult: 单个源文件的拆分结果。
type FileResult struct {
	FileID    contract.FileID
	OutputDir string
	Units     []string
}

// SplitSource 拆分单个着色器源并写出全部片段，返回按序号排列的单元名。
// 约束：
// 1) 标记少于两个：返回空结果，不创建目录、不写文件；
// 2) 写入 outputDir/Frags，已存在同名文件直接覆盖；
// 3) 读/写失败返回 *contract.IOFailure；此前已写出的文件保留，返回值包含它们的名字。
func SplitSource(ctx context.Context, comp Components, fileID contract.FileID, r io.Reader, outputDir string) ([]string, error) {
	units, err := comp.Splitter.Split(ctx, fileID, r)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, contract.ErrInvariantViolation) {
			return nil, err
		}
		return nil, contract.NewIOFailure("read", string(fileID), err)
	}
	if len(units) == 0 {
		return nil, nil
	}

	dir := filepath.Join(outputDir, contract.UnitsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, contract.NewIOFailure("mkdir", dir, err)
	}
	names := make([]string, 0, len(units))
	for _, u := range units {
		dest := filepath.Join(dir, u.Name)
		if err := comp.Writer.Write(ctx, contract.ArtifactID(filepath.ToSlash(dest)), bytes.NewReader(u.Bytes())); err != nil {
			if ctx.Err() != nil {
				return names, err
			}
			return names, contract.NewIOFailure("write", dest, err)
		}
		names = append(names, u.Name)
	}
	return names, nil
}

// SplitFile 打开 shaderPath 并调用 SplitSource。
func SplitFile(ctx context.Context, comp Components, shaderPath, outputDir string) ([]string, error) {
	f, err := os.Open(shaderPath)
	if err != nil {
		return nil, contract.NewIOFailure("read", shaderPath, err)
	}
	defer f.Close()
	return SplitSource(ctx, comp, contract.NormalizeFileID(shaderPath), f, outputDir)
}

type job struct {
	idx    int
	fileID contract.FileID
	data   []byte
	outDir string
}

// Run 拆分 set.Inputs 下的全部源文件：Reader → Splitter → Writer。
// 结果按 Reader 的遍历顺序返回。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) ([]FileResult, error) {
	if err := sanity(comp, set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	conc := max(set.Concurrency, 1)

	rtimer := logger.Start("reader", "iterate")
	jobs, err := collect(ctx, comp.Reader, set)
	if err != nil {
		logger.Fail("reader", "iterate failed", err, "")
		return nil, fmt.Errorf("reader iterate: %w", err)
	}
	rtimer.Finish("iterate", int64(len(jobs)))

	// 按输出目录分组，组间并发、组内串行
	var order []string
	groups := make(map[string][]job)
	for _, j := range jobs {
		if _, ok := groups[j.outDir]; !ok {
			order = append(order, j.outDir)
		}
		groups[j.outDir] = append(groups[j.outDir], j)
	}

	results := make([]FileResult, len(jobs))
	term := diag.GetTerminal()
	term.RunStart("split", conc)
	runStart := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for _, dir := range order {
		group := groups[dir]
		g.Go(func() error {
			for _, j := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				t0 := time.Now()
				stimer := logger.StartWith("splitter", "split", string(j.fileID))
				names, err := SplitSource(gctx, comp, j.fileID, bytes.NewReader(j.data), j.outDir)
				results[j.idx] = FileResult{FileID: j.fileID, OutputDir: j.outDir, Units: names}
				if err != nil {
					logger.Fail("splitter", "split failed", err, string(j.fileID))
					term.FileDone(string(j.fileID), len(names), false, time.Since(t0))
					return fmt.Errorf("split %s: %w", j.fileID, err)
				}
				stimer.Finish("split", int64(len(names)))
				term.FileDone(string(j.fileID), len(names), true, time.Since(t0))
			}
			return nil
		})
	}
	err = g.Wait()
	term.RunFinish(err == nil, time.Since(runStart))
	logger.InfoFinish("pipeline", "split run", runStart, int64(len(jobs)))
	return results, err
}

// collect 逐个 root 调用 Reader，读入内容并确定输出目录。
func collect(ctx context.Context, rd contract.Reader, set Settings) ([]job, error) {
	inputs := set.Inputs
	if slices.Contains(inputs, "-") && len(inputs) > 1 {
		return nil, fmt.Errorf("%w: stdin '-' cannot be mixed with other roots", contract.ErrInvariantViolation)
	}
	var jobs []job
	for _, root := range inputs {
		outDir, err := outputDirFor(root, set.OutputDir)
		if err != nil {
			return nil, contract.NewIOFailure("read", root, err)
		}
		err = rd.Iterate(ctx, []string{root}, func(id contract.FileID, rc io.ReadCloser) error {
			defer rc.Close()
			b, err := io.ReadAll(rc)
			if err != nil {
				return contract.NewIOFailure("read", string(id), err)
			}
			jobs = append(jobs, job{idx: len(jobs), fileID: id, data: b, outDir: outDir})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func outputDirFor(root, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if root == "-" {
		return ".", nil
	}
	st, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if st.IsDir() {
		return root, nil
	}
	return filepath.Dir(root), nil
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Splitter == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	return nil
}
