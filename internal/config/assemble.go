package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fragsplit/internal/pipeline"
	"fragsplit/internal/report"
	"fragsplit/pkg/contract"
	"fragsplit/pkg/registry"
)

// Validate 对拆分运行做静态校验（输入、并发、组件名、导出格式）。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	dash := false
	for _, r := range cfg.Inputs {
		t := strings.TrimSpace(r)
		if t == "" {
			return errors.New("config: input path cannot be empty")
		}
		if t == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	if err := validateCommon(cfg); err != nil {
		return err
	}
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Splitter, d.Components.Splitter); registry.Splitter[name] == nil {
		return fmt.Errorf("config: splitter %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	return nil
}

// ValidateCompiler 对编译运行做静态校验。
func ValidateCompiler(cfg Config) error {
	if err := validateCommon(cfg); err != nil {
		return err
	}
	if name := effName(cfg.Components.Compiler, Defaults().Components.Compiler); registry.Compiler[name] == nil {
		return fmt.Errorf("config: compiler %q not registered", name)
	}
	return nil
}

func validateCommon(cfg Config) error {
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q invalid", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Report.Format) {
	case "", report.FormatCSV, report.FormatJSON:
	default:
		return fmt.Errorf("config: report.format %q invalid", cfg.Report.Format)
	}
	for name, raw := range map[string]json.RawMessage{
		"reader": cfg.Options.Reader, "splitter": cfg.Options.Splitter,
		"writer": cfg.Options.Writer, "compiler": cfg.Options.Compiler,
	} {
		if len(raw) > 0 && !json.Valid(raw) {
			return fmt.Errorf("config: options.%s is not valid JSON", name)
		}
	}
	return nil
}

// Assemble 构造拆分所需的 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()
	r, err := registry.Reader[effName(cfg.Components.Reader, d.Components.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader: %w", err)
	}
	s, err := registry.Splitter[effName(cfg.Components.Splitter, d.Components.Splitter)](cfg.Options.Splitter)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("splitter: %w", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Components.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer: %w", err)
	}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		OutputDir:   cfg.OutputDir,
		Concurrency: cfg.Concurrency,
	}
	return pipeline.Components{Reader: r, Splitter: s, Writer: w}, set, nil
}

// AssembleCompiler 构造编译器与编译设置（含结果缓存）。
// 编译器缺失时错误包裹 contract.ErrCompilerNotFound。
func AssembleCompiler(cfg Config) (contract.Compiler, pipeline.CompileSettings, error) {
	if err := ValidateCompiler(cfg); err != nil {
		return nil, pipeline.CompileSettings{}, err
	}
	name := effName(cfg.Components.Compiler, Defaults().Components.Compiler)
	c, err := registry.Compiler[name](cfg.Options.Compiler)
	if err != nil {
		return nil, pipeline.CompileSettings{}, fmt.Errorf("compiler %s: %w", name, err)
	}
	cache, err := pipeline.NewResultCache(cfg.CacheSize)
	if err != nil {
		return nil, pipeline.CompileSettings{}, err
	}
	return c, pipeline.CompileSettings{Concurrency: cfg.Concurrency, Cache: cache}, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
