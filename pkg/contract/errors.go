package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类。
var (
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrCompilerNotFound: 未找到外部编译器可执行文件。
	ErrCompilerNotFound = errors.New("compiler not found")
)

// IOFailure: 源文件读取或输出目录/文件写入失败，携带出错路径。
type IOFailure struct {
	Op   string // read|mkdir|write
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }

// NewIOFailure 包装底层错误；err 为 nil 时返回 nil。
func NewIOFailure(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOFailure{Op: op, Path: path, Err: err}
}
