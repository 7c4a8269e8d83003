package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix 为环境变量覆盖前缀。
const EnvPrefix = "FRAGSPLIT_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Concurrency: 1,
		CacheSize:   256,
		Logging:     Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:   "fs",
			Splitter: "fragment",
			Writer:   "fs",
			Compiler: "malisc",
		},
		Options: Options{
			// 默认只读取 .shader，且不回扫输出目录
			Reader: json.RawMessage(`{"allow_exts":[".shader"],"exclude_dir_names":["Frags"]}`),
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML 解析 YAML 配置：先转为 JSON，再走 LoadJSON 的严格解码。
// Options 子树因此同样以原样 JSON 交给工厂。
func LoadYAML(path string, raw []byte) (Config, error) {
	if len(raw) == 0 {
		if path == "" {
			return Config{}, errors.New("no config source provided")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		raw = b
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	js, err := json.Marshal(tree)
	if err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return LoadJSON("", js)
}

// LoadFile 按扩展名选择解析器：.yaml/.yml 为 YAML，其余为 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path, nil)
	default:
		return LoadJSON(path, nil)
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.OutputDir != "" {
		out.OutputDir = over.OutputDir
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.CacheSize != 0 {
		out.CacheSize = over.CacheSize
	}
	if lv := strings.TrimSpace(over.Logging.Level); lv != "" {
		out.Logging.Level = lv
	}
	if over.Logging.Dir != "" {
		out.Logging.Dir = over.Logging.Dir
	}

	// 组件名（空不覆盖）
	out.Components.Reader = pick(out.Components.Reader, over.Components.Reader)
	out.Components.Splitter = pick(out.Components.Splitter, over.Components.Splitter)
	out.Components.Writer = pick(out.Components.Writer, over.Components.Writer)
	out.Components.Compiler = pick(out.Components.Compiler, over.Components.Compiler)

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Splitter) > 0 {
		out.Options.Splitter = cloneRaw(over.Options.Splitter)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Compiler) > 0 {
		out.Options.Compiler = cloneRaw(over.Options.Compiler)
	}

	out.Report.Path = pick(out.Report.Path, over.Report.Path)
	out.Report.Format = pick(out.Report.Format, over.Report.Format)
	return out
}

func pick(cur, over string) string {
	if t := strings.TrimSpace(over); t != "" {
		return t
	}
	return cur
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 前缀 FRAGSPLIT_；集合之外的键忽略。
// 支持：INPUTS, OUTPUT_DIR, CONCURRENCY, CACHE_SIZE, LOG_LEVEL, LOG_DIR,
// COMPONENTS_{READER,SPLITTER,WRITER,COMPILER},
// OPTIONS_{READER,SPLITTER,WRITER,COMPILER}_JSON, REPORT_PATH, REPORT_FORMAT。
// 数值解析失败返回错误。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		nk := strings.TrimPrefix(key, EnvPrefix)
		tv := strings.TrimSpace(val)
		switch nk {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "OUTPUT_DIR":
			over.OutputDir = tv
		case "CONCURRENCY", "CACHE_SIZE":
			if tv == "" {
				continue
			}
			n, err := strconv.Atoi(tv)
			if err != nil {
				return Config{}, fmt.Errorf("env %s: %w", key, err)
			}
			if nk == "CONCURRENCY" {
				over.Concurrency = n
			} else {
				over.CacheSize = n
			}
		case "LOG_LEVEL":
			over.Logging.Level = tv
		case "LOG_DIR":
			over.Logging.Dir = tv
		case "COMPONENTS_READER":
			over.Components.Reader = tv
		case "COMPONENTS_SPLITTER":
			over.Components.Splitter = tv
		case "COMPONENTS_WRITER":
			over.Components.Writer = tv
		case "COMPONENTS_COMPILER":
			over.Components.Compiler = tv
		case "OPTIONS_READER_JSON":
			over.Options.Reader = rawOrNil(tv)
		case "OPTIONS_SPLITTER_JSON":
			over.Options.Splitter = rawOrNil(tv)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = rawOrNil(tv)
		case "OPTIONS_COMPILER_JSON":
			over.Options.Compiler = rawOrNil(tv)
		case "REPORT_PATH":
			over.Report.Path = tv
		case "REPORT_FORMAT":
			over.Report.Format = tv
		}
	}
	return over, nil
}

// rawOrNil: 空值视为未设置，避免清空现有配置。
func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
