package diag

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"fragsplit/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeIO        Code = "io"
	CodeInvariant Code = "invariant"
	CodeCompiler  Code = "compiler"
	CodeCancel    Code = "cancel"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	var ee *exec.ExitError
	if errors.Is(err, contract.ErrCompilerNotFound) || errors.As(err, &ee) {
		return CodeCompiler
	}
	if errors.Is(err, contract.ErrInvariantViolation) || errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	var iof *contract.IOFailure
	var perr *os.PathError
	if errors.As(err, &iof) || errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
