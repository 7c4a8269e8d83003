package contract

import (
	"context"
	"fmt"
	"strings"
)

// CompileResult: 外部离线编译器一次运行的原始输出。
// 只有 Stdout 参与指标解析；ExitCode 与 Stderr 仅作为诊断文本展示。
type CompileResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Diagnostic 返回用于展示的完整文本：非零退出时附加退出码与 stderr。
func (r CompileResult) Diagnostic() string {
	if r.ExitCode == 0 {
		return r.Stdout
	}
	var b strings.Builder
	b.WriteString(r.Stdout)
	fmt.Fprintf(&b, "\n\nexit code: %d", r.ExitCode)
	if r.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr: %s", r.Stderr)
	}
	return b.String()
}

// Compiler: 外部编译器协作者。给定单元文件路径，返回其输出。
// 约束：
// 1) 非零退出码是结果而非错误；
// 2) 仅在无法启动/被取消时返回 error；
// 3) 并发安全（由 pipeline 控制并发度）。
type Compiler interface {
	Compile(ctx context.Context, path string) (CompileResult, error)
}
