package contract

import (
	"context"
	"io"
)

// Splitter: 将单个着色器源文件拆分为有序 Unit 序列。
// 约束：
// 1) 标记少于两个时返回空序列且不报错；
// 2) Ordinal 自 1 严格递增且稳定；
// 3) 行尾按原样保留，不做 CRLF 归一；
// 4) 无内部并发、幂等；
// 5) 不触碰文件系统。
type Splitter interface {
	Split(ctx context.Context, fileID FileID, r io.Reader) ([]Unit, error)
}
