package contract

// FileID: 逻辑文件ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Unit: 从一个着色器源文件中拆出的片元编译单元。
// 约束：
// - Ordinal 自 1 起严格递增，等于其起始标记在源文件中的序号；
// - Name 由 <基名>_<三位序号>.frag 构成；
// - Lines 为处理后的行，保留原始行尾（\n 或 \r\n），按原样写出。
type Unit struct {
	FileID  FileID
	Ordinal int
	Name    string
	Lines   []string
	// [StartLine, EndLine) 为该块在源文件中的行区间（0 起）。
	StartLine int
	EndLine   int
}

// Bytes 返回单元的完整文本（行按原样拼接）。
func (u Unit) Bytes() []byte {
	n := 0
	for _, l := range u.Lines {
		n += len(l)
	}
	b := make([]byte, 0, n)
	for _, l := range u.Lines {
		b = append(b, l...)
	}
	return b
}
