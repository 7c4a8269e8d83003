package diag

import (
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化事件日志：单行 JSON，字段固定为
// corr_id/comp/stage/code/dur_ms/count/file_id，底层为 zap。
// nil *Logger 上的所有方法均为 no-op。
type Logger struct {
	z    *zap.Logger
	sink io.Closer
}

// NewLogger 以配置的 level 初始化，写入 dir 下的滚动文件（10 MiB 轮转）。
// dir 为空时使用 "logs"。
func NewLogger(dir, corrID, level string) *Logger {
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	sink := NewRotatingFile(dir, 10*1024*1024)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), sink, ParseLevel(level))
	return &Logger{z: zap.New(core).With(zap.String("corr_id", corrID)), sink: sink}
}

// NewWithCore 以任意 zapcore.Core 构造，测试中配合 observer 使用。
func NewWithCore(core zapcore.Core, corrID string) *Logger {
	return &Logger{z: zap.New(core).With(zap.String("corr_id", corrID))}
}

// NewNop 返回丢弃一切输出的 Logger。
func NewNop() *Logger { return &Logger{z: zap.NewNop()} }

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     utcRFC3339,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

func utcRFC3339(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339))
}

// ParseLevel: debug|info|warn|error，其它值按 info。
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Zap 暴露底层 zap.Logger（nil 接收者返回 Nop）。
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

// Close 刷新并关闭文件 sink。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

func event(comp, stage, fileID string) []zap.Field {
	fs := []zap.Field{zap.String("comp", comp), zap.String("stage", stage)}
	if fileID != "" {
		fs = append(fs, zap.String("file_id", fileID))
	}
	return fs
}

func kvFields(fs []zap.Field, kv map[string]string) []zap.Field {
	if len(kv) > 0 {
		fs = append(fs, zap.Any("kv", kv))
	}
	return fs
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "")
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	if l == nil {
		return nil
	}
	l.z.Info(msg, event(comp, "start", fileID)...)
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// DebugStart 输出调试级别的 start 事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Debug(msg, kvFields(event(comp, "start", fileID), kv)...)
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "")
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	if l == nil {
		return
	}
	fs := append(event(comp, "error", fileID), zap.String("code", code))
	if durSince != nil {
		fs = append(fs, zap.Int64("dur_ms", time.Since(*durSince).Milliseconds()))
	}
	l.z.Error(msg, fs...)
}

// Fail 按 Classify 归类 err 并记录 error 事件，返回分类码。
func (l *Logger) Fail(comp, msg string, err error, fileID string) Code {
	code := Classify(err)
	if l == nil {
		return code
	}
	fs := append(event(comp, "error", fileID), zap.String("code", string(code)), zap.Error(err))
	l.z.Error(msg, fs...)
	return code
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	if l == nil {
		return
	}
	fs := append(event(comp, "finish", ""),
		zap.Int64("dur_ms", time.Since(start).Milliseconds()),
		zap.Int64("count", count))
	l.z.Info(msg, fs...)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	fs := append(event(t.comp, "finish", t.fileID),
		zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()),
		zap.Int64("count", count))
	t.l.z.Info(msg, fs...)
}
