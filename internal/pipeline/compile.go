package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fragsplit/internal/diag"
	"fragsplit/internal/metrics"
	"fragsplit/pkg/contract"
)

// CompileSettings: 编译批处理配置。
type CompileSettings struct {
	Concurrency int
	// Cache 可为 nil（不缓存）。
	Cache *ResultCache
}

// Outcome: 单个片段的编译结果与指标。
type Outcome struct {
	Path    string
	Result  contract.CompileResult
	Metrics metrics.Result
	Cached  bool
	// Err: 该片段的读取或编译失败；不影响其余片段。
	Err error
}

// Compile 对 paths 逐个调用编译器并解析周期指标。
// 约束：
// 1) 并发度受 Concurrency 限制，结果按输入顺序返回；
// 2) 单个片段失败记录在其 Outcome.Err 中，不中止批次；
// 3) ctx 取消时中止并返回取消错误；
// 4) 内容相同的片段命中缓存时不再调用编译器。
func Compile(ctx context.Context, c contract.Compiler, paths []string, set CompileSettings, logger *diag.Logger) ([]Outcome, error) {
	if c == nil {
		return nil, errors.New("pipeline: missing compiler")
	}
	conc := max(set.Concurrency, 1)
	out := make([]Outcome, len(paths))
	term := diag.GetTerminal()
	term.RunStart("compile", conc)
	start := time.Now()
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for i, p := range paths {
		g.Go(func() error {
			o, err := compileOne(gctx, c, p, set.Cache, logger)
			if err != nil {
				return err
			}
			out[i] = o
			term.UnitResult(p, o.Metrics.Label(), o.Metrics.Tier)
			term.Progress(int(done.Add(1)), len(paths))
			return nil
		})
	}
	err := g.Wait()
	term.RunFinish(err == nil, time.Since(start))
	logger.InfoFinish("compiler", "compile batch", start, done.Load())
	return out, err
}

// compileOne 仅在 ctx 取消时返回 error；其余失败写入 Outcome.Err。
func compileOne(ctx context.Context, c contract.Compiler, path string, cache *ResultCache, logger *diag.Logger) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	o := Outcome{Path: path, Metrics: metrics.Analyze("")}
	content, err := os.ReadFile(path)
	if err != nil {
		o.Err = contract.NewIOFailure("read", path, err)
		logger.Fail("compiler", "read unit failed", o.Err, path)
		return o, nil
	}
	key := Key(content)
	if res, ok := cache.Get(key); ok {
		o.Result, o.Cached = res, true
		o.Metrics = metrics.Analyze(res.Stdout)
		logger.DebugStart("compiler", "cache hit", path, map[string]string{"key": key[:12]})
		return o, nil
	}

	timer := logger.StartWith("compiler", "compile", path)
	res, err := c.Compile(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		o.Err = fmt.Errorf("compile %s: %w", path, err)
		logger.Fail("compiler", "compile failed", err, path)
		return o, nil
	}
	o.Result = res
	o.Metrics = metrics.Analyze(res.Stdout)
	// 非零退出不缓存，便于修复后重试
	if res.ExitCode == 0 {
		cache.Add(key, res)
	}
	timer.Finish("compile", int64(o.Metrics.Sum))
	return o, nil
}
