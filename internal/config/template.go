package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// 输入为当前目录，编译器为 malisc，选项列出全部键并给出中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:      []string{"."},
		Concurrency: 4,
		CacheSize:   d.CacheSize,
		Logging:     d.Logging,
		Components:  d.Components,
		Report:      Report{Path: "", Format: "csv"},
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": ["Frags", ".git"],
  "allow_exts": [".shader"]
}`)
	cfg.Options.Splitter = json.RawMessage(`{
  "max_source_bytes": 0
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "root": "",
  "atomic": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	cfg.Options.Compiler = json.RawMessage(`{
  "path": "",
  "binary": "",
  "search_dirs": ["Mali_Offline_Compiler_Windows"],
  "extra_args": "",
  "timeout_seconds": 60
}`)
	return cfg
}

// EnvTemplate 返回 .env 模板内容（全部注释，按需取消）。
func EnvTemplate() string {
	return `# fragsplit environment overrides (process env wins over this file)
# FRAGSPLIT_INPUTS=shaders
# FRAGSPLIT_OUTPUT_DIR=
# FRAGSPLIT_CONCURRENCY=4
# FRAGSPLIT_CACHE_SIZE=256
# FRAGSPLIT_LOG_LEVEL=info
# FRAGSPLIT_LOG_DIR=logs
# FRAGSPLIT_COMPONENTS_COMPILER=malisc
# FRAGSPLIT_OPTIONS_COMPILER_JSON={"path":"","extra_args":""}
# FRAGSPLIT_REPORT_PATH=
# FRAGSPLIT_REPORT_FORMAT=csv
# FRAGSPLIT_STATE_FILE=
`
}
