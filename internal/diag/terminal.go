package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"fragsplit/internal/metrics"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - TTY: 进度单行 \r 覆盖；非 TTY: 只打印关键节点。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	out     *termenv.Output
	enabled bool
	isTTY   bool

	mode        string
	concurrency int
	filesDone   int
	unitsDone   int
	errCount    int
	runStart    time.Time

	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

// 进程级终端（可选，全局设置后供 pipeline 旁路调用）。
var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器。enabled=false 时总是 no-op。
// 可选 termenv.OutputOption 用于固定颜色档位（测试）。
func NewTerminal(w io.Writer, enabled bool, opts ...termenv.OutputOption) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled, out: termenv.NewOutput(w, opts...)}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			t.isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	return t
}

// tierColors: 与分级对应的前景色。
var tierColors = map[metrics.Tier]string{
	metrics.Good:     "#00B400",
	metrics.Moderate: "#FF8C00",
	metrics.Poor:     "#DC0000",
	metrics.Unknown:  "#0064C8",
}

// Colorize 按分级着色；输出不支持颜色时原样返回。
func (t *Terminal) Colorize(s string, tier metrics.Tier) string {
	if t == nil || t.out == nil || t.out.Profile == termenv.Ascii {
		return s
	}
	return t.out.String(s).Foreground(t.out.Color(tierColors[tier])).String()
}

// RunStart: 记录运行上下文（模式、并发）。
func (t *Terminal) RunStart(mode string, concurrency int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.mode = safe(mode)
	t.concurrency = concurrency
	t.filesDone, t.unitsDone, t.errCount = 0, 0, 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("[run] %s | 并发=%d", t.mode, concurrency))
}

// FileDone: 一个着色器文件处理完毕（units 为写出的片段数）。
func (t *Terminal) FileDone(fileID string, units int, ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.filesDone++
	t.unitsDone += units
	status := "done"
	if !ok {
		status = "fail"
		t.errCount++
	}
	t.clearInline()
	t.println(fmt.Sprintf("[%s] %s | 片段 %d | 用时 %s", status, shortenBase(fileID, 48), units, formatDur(dur)))
}

// UnitResult: 一个片段的编译结果（周期和与分级）。
func (t *Terminal) UnitResult(name, label string, tier metrics.Tier) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.unitsDone++
	if tier == metrics.Unknown {
		t.errCount++
	}
	t.clearInline()
	t.println(fmt.Sprintf("[unit] %s | 周期和 %s", shortenBase(name, 48), t.Colorize(fmt.Sprintf("%s (%s)", label, tier), tier)))
}

// Progress: 周期性进度（≥100ms 节流，仅 TTY）。
func (t *Terminal) Progress(done, total int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || !t.isTTY {
		return
	}
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	t.printInline(fmt.Sprintf("[%s] 进度 %d/%d | 错误 %d | 并发 %d | 用时 %s",
		t.mode, done, total, t.errCount, t.concurrency, formatSince(t.runStart)))
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.clearInline()
	t.println(fmt.Sprintf("[%s] 全部完成 | 文件 %d | 片段 %d | 总用时 %s", tag, t.filesDone, t.unitsDone, formatDur(dur)))
}

func (t *Terminal) clearInline() {
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
}

func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) printInline(s string) {
	if !t.enabled {
		return
	}
	// 新行比旧行短时用空格覆盖尾部
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	b.WriteString(strings.Repeat(" ", pad))
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	rs := []rune(base)
	if len(rs) <= max {
		return base
	}
	cut := max - 1
	if cut < 1 {
		cut = 1
	}
	return string(rs[:cut]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
