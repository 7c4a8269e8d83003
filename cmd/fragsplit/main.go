package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "fragsplit/internal/config"
	"fragsplit/internal/diag"
	"fragsplit/internal/state"
)

// 退出码。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// envConfigFile 指定配置文件路径（--config 优先）。
const envConfigFile = "FRAGSPLIT_CONFIG_FILE"

// 缺省配置文件名，按序探测。
var defaultConfigNames = []string{"config.json", "config.yaml", "config.yml"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError 携带退出码。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(format string, a ...any) error {
	return &exitError{code: exitConfig, err: fmt.Errorf(format, a...)}
}

func runtimeErr(format string, a ...any) error {
	return &exitError{code: exitRuntime, err: fmt.Errorf(format, a...)}
}

// app: 单次进程调用的共享状态。
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	status     bool

	corrID string
	start  time.Time
	logger *diag.Logger
	term   *diag.Terminal
}

// run 执行一次 CLI 调用并返回退出码。
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "提示：.env 读取失败（已跳过）：%v\n", err)
	}
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		corrID: uuid.NewString(),
		start:  time.Now(),
		logger: diag.NewNop(),
	}
	defer func() {
		diag.SetTerminal(nil)
		_ = a.logger.Close()
	}()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if !errors.As(err, &ee) {
		// cobra 的参数/旗标错误
		fmt.Fprintf(stderr, "参数错误: %v\n", err)
		return exitConfig
	}
	code := a.logger.Fail("cli", "first error", ee.err, "")
	if code != diag.CodeCancel {
		fmt.Fprintf(stderr, "错误: %v\n", ee.err)
	}
	return ee.code
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fragsplit",
		Short: "Split shader sources into fragment units and grade their cycle counts",
		Long: `fragsplit splits Unity-style .shader files at every "#ifdef FRAGMENT"
marker into standalone GLSL ES fragment units under <dir>/Frags, runs the
Mali offline compiler over the units and grades the longest-path cycles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "配置文件路径（.json/.yaml）；缺省读取 ./config.json（若存在）")
	pf.StringVar(&a.logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	pf.BoolVar(&a.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 逐行输出")

	root.AddCommand(
		a.splitCmd(),
		a.compileCmd(),
		a.metricsCmd(),
		a.listCmd(),
		a.watchCmd(),
		a.initCmd(),
	)
	return root
}

// loadConfig 按 默认 < 文件 < ENV < CLI(--log-level) 合并配置，并以最终级别建立日志。
// 各子命令在此之后叠加自己的旗标。
func (a *app) loadConfig() (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	path := a.configPath
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigFile))
	}
	if path == "" {
		for _, name := range defaultConfigNames {
			if st, err := os.Stat(name); err == nil && !st.IsDir() {
				path = name
				break
			}
		}
	}
	if path != "" {
		base, err := cfgpkg.LoadFile(path)
		if err != nil {
			return cfg, configErr("配置解析失败: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	over, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, configErr("环境变量解析失败: %w", err)
	}
	cfg = cfgpkg.Merge(cfg, over)
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	_ = a.logger.Close()
	a.logger = diag.NewLogger(cfg.Logging.Dir, a.corrID, cfg.Logging.Level)
	a.term = diag.NewTerminal(a.stderr, a.status)
	diag.SetTerminal(a.term)
	a.logger.DebugStart("config", "effective", "", map[string]string{
		"config_file": path,
		"inputs":      strings.Join(cfg.Inputs, ","),
		"output_dir":  cfg.OutputDir,
		"concurrency": fmt.Sprint(cfg.Concurrency),
		"cache_size":  fmt.Sprint(cfg.CacheSize),
		"reader":      cfg.Components.Reader,
		"splitter":    cfg.Components.Splitter,
		"writer":      cfg.Components.Writer,
		"compiler":    cfg.Components.Compiler,
	})
	return cfg, nil
}

// dumpConfig 打印有效配置，便于诊断校验失败。
func (a *app) dumpConfig(c cfgpkg.Config) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(a.stderr, "有效配置:\n%s\n", b)
}

// statePath 返回状态文件路径；无法确定时为空（不记录）。
func statePath() string {
	p, err := state.DefaultPath()
	if err != nil {
		return ""
	}
	return p
}

// lastDir 返回上次使用且仍存在的目录。
func lastDir() string {
	p := statePath()
	if p == "" {
		return ""
	}
	return state.LastDir(p)
}

// remember 记录目录；失败仅提示。
func (a *app) remember(dir string) {
	p := statePath()
	if p == "" {
		return
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return
	}
	if err := state.Remember(p, dir); err != nil {
		fmt.Fprintf(a.stderr, "提示：无法记录最近目录：%v\n", err)
	}
}

// rememberDir: 目录原样返回，文件返回其所在目录。
func rememberDir(p string) string {
	if st, err := os.Stat(p); err == nil && !st.IsDir() {
		return filepath.Dir(p)
	}
	return p
}

// resolveDir: 参数 > 上次目录 > 当前目录。
func resolveDir(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	if d := lastDir(); d != "" {
		return d
	}
	return "."
}
