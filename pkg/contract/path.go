package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// BaseName 返回 FileID 的基名（去掉最后一个扩展名）。
// 以点开头且无其他点的名称（如 ".shader"）视为无扩展名。
func BaseName(id FileID) string {
	base := path.Base(string(id))
	ext := path.Ext(base)
	if ext == "" || ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}
