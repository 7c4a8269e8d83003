package contract

// 着色器源文件与编译报告中使用的固定文本常量。
// 拆分器、指标解析与目录列举共用此处定义。
const (
	// FragmentMarker 片元块起始标记。
	FragmentMarker = "#ifdef FRAGMENT"
	// EndifDirective 候选块结束指令。
	EndifDirective = "#endif"
	// SeparatorLine 块内截断分隔线（54 个 '/'）。
	SeparatorLine = "//////////////////////////////////////////////////////"
	// VersionLegacy 需要改写的版本指令。
	VersionLegacy = "#version 300 es"
	// VersionTarget 改写后的版本指令。
	VersionTarget = "#version 320 es"

	// UnitsDir 输出子目录名（位于源目录旁）。
	UnitsDir = "Frags"
	// UnitExt 单元文件扩展名。
	UnitExt = ".frag"
	// ShaderExt 源文件扩展名。
	ShaderExt = ".shader"

	// CyclesLabel 编译报告中最长路径周期数所在行的标签。
	CyclesLabel = "Longest Path Cycles:"
)
