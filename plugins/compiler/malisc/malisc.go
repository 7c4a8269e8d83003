package malisc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/mitchellh/go-homedir"

	"fragsplit/pkg/contract"
)

// DefaultSearchDir 为编译器随工具分发时的目录名。
const DefaultSearchDir = "Mali_Offline_Compiler_Windows"

// Options: Mali 离线编译器调用配置。
type Options struct {
	// Path: 显式可执行文件路径，支持 "~" 展开。设置后不再搜索。
	Path string `json:"path,omitempty"`
	// Binary: 可执行文件名，默认 "malisc"（Windows 追加 ".exe"）。
	Binary string `json:"binary,omitempty"`
	// SearchDirs: 依次在 <cwd>/<dir> 与 <可执行文件目录>/<dir> 下查找 Binary。
	// 为空时使用 DefaultSearchDir。最后回退到 PATH。
	SearchDirs []string `json:"search_dirs,omitempty"`
	// ExtraArgs: 追加在单元路径之前的参数，按 shell 规则切分，如 "--core Mali-G78"。
	ExtraArgs string `json:"extra_args,omitempty"`
	// TimeoutSeconds: 单次调用超时；<=0 不设超时。
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Compiler 以子进程方式调用 malisc。
type Compiler struct {
	bin     string
	args    []string
	timeout time.Duration
}

var _ contract.Compiler = (*Compiler)(nil)

// New 解析选项并定位可执行文件；找不到时返回 contract.ErrCompilerNotFound。
func New(raw json.RawMessage) (*Compiler, error) {
	var o Options
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return nil, err
		}
	}
	args, err := shellwords.Parse(o.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("malisc: extra_args: %w", err)
	}
	bin, err := Resolve(o)
	if err != nil {
		return nil, err
	}
	c := &Compiler{bin: bin, args: args}
	if o.TimeoutSeconds > 0 {
		c.timeout = time.Duration(o.TimeoutSeconds) * time.Second
	}
	return c, nil
}

// Binary 返回已定位的可执行文件路径。
func (c *Compiler) Binary() string { return c.bin }

// Resolve 按以下顺序定位编译器：
// 1) Options.Path；
// 2) <cwd>/<dir>/<binary>；
// 3) <可执行文件目录>/<dir>/<binary>；
// 4) PATH 中的 <binary>。
func Resolve(o Options) (string, error) {
	if p := strings.TrimSpace(o.Path); p != "" {
		exp, err := homedir.Expand(p)
		if err != nil {
			return "", fmt.Errorf("malisc: path %q: %w", p, err)
		}
		if isFile(exp) {
			return exp, nil
		}
		return "", fmt.Errorf("%w: %s", contract.ErrCompilerNotFound, exp)
	}

	bin := o.Binary
	if bin == "" {
		bin = "malisc"
	}
	if runtime.GOOS == "windows" && filepath.Ext(bin) == "" {
		bin += ".exe"
	}
	dirs := o.SearchDirs
	if len(dirs) == 0 {
		dirs = []string{DefaultSearchDir}
	}

	var bases []string
	if wd, err := os.Getwd(); err == nil {
		bases = append(bases, wd)
	}
	if exe, err := os.Executable(); err == nil {
		bases = append(bases, filepath.Dir(exe))
	}
	for _, base := range bases {
		for _, d := range dirs {
			d, err := homedir.Expand(d)
			if err != nil {
				continue
			}
			cand := filepath.Join(base, d, bin)
			if filepath.IsAbs(d) {
				cand = filepath.Join(d, bin)
			}
			if isFile(cand) {
				return cand, nil
			}
		}
	}
	if p, err := exec.LookPath(bin); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", contract.ErrCompilerNotFound, bin)
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

// Compile 运行 `<bin> [extra args...] <path>` 并收集输出。
// 非零退出码写入结果；仅启动失败或 ctx 取消/超时返回 error。
func (c *Compiler) Compile(ctx context.Context, path string) (contract.CompileResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	args := append(append([]string(nil), c.args...), path)
	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if cerr := ctx.Err(); cerr != nil {
		return contract.CompileResult{}, cerr
	}
	res := contract.CompileResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			res.ExitCode = ee.ExitCode()
			return res, nil
		}
		return contract.CompileResult{}, fmt.Errorf("malisc: run %s: %w", c.bin, err)
	}
	return res, nil
}
