package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs []string `json:"inputs"`
	// OutputDir: 片段输出根（写入 <OutputDir>/Frags）；为空时按输入推断。
	OutputDir   string `json:"output_dir"`
	Concurrency int    `json:"concurrency"`
	// CacheSize: 编译结果 LRU 容量；<=0 关闭缓存（覆盖时用 -1 表示关闭）。
	CacheSize int     `json:"cache_size"`
	Logging   Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`

	Report Report `json:"report"`
}

// Logging: 日志等级与目录；轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader   string `json:"reader"`
	Splitter string `json:"splitter"`
	Writer   string `json:"writer"`
	Compiler string `json:"compiler"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader   json.RawMessage `json:"reader"`
	Splitter json.RawMessage `json:"splitter"`
	Writer   json.RawMessage `json:"writer"`
	Compiler json.RawMessage `json:"compiler"`
}

// Report: compile 结果导出。Path 为空时不导出。
type Report struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}
