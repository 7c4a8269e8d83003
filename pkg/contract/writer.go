package contract

import (
	"context"
	"io"
)

// ArtifactID: 输出工件标识，即目标文件路径（规范化前的本地路径）。
type ArtifactID = FileID

// Writer: 将单元内容持久化到目标介质。
// 约束：
//  1. 同名目标覆盖写；
//  2. 流式写入，按字节透传，不修改内容；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}
