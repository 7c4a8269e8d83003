package mock

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"fragsplit/pkg/contract"
)

// Options: 离线调试配置（均可选）。
type Options struct {
	// Report: 固定输出文本。为空时按单元内容生成报告：
	// 第一个周期值为非空行数，其余为 0。
	Report string `json:"report,omitempty"`
	// ExitCode/Stderr: 固定的退出码与错误输出。
	ExitCode int    `json:"exit_code,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	// DelayMS: 每次调用前的人工延迟，用于并发与取消测试。
	DelayMS int `json:"delay_ms,omitempty"`
}

// Compiler 不启动任何进程。
type Compiler struct {
	opt   Options
	calls atomic.Int64
}

var _ contract.Compiler = (*Compiler)(nil)

func New(raw json.RawMessage) (*Compiler, error) {
	var o Options
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return nil, err
		}
	}
	return &Compiler{opt: o}, nil
}

// Calls 返回 Compile 被调用的次数。
func (c *Compiler) Calls() int64 { return c.calls.Load() }

func (c *Compiler) Compile(ctx context.Context, path string) (contract.CompileResult, error) {
	c.calls.Add(1)
	if c.opt.DelayMS > 0 {
		t := time.NewTimer(time.Duration(c.opt.DelayMS) * time.Millisecond)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return contract.CompileResult{}, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return contract.CompileResult{}, err
	}
	res := contract.CompileResult{Stdout: c.opt.Report, Stderr: c.opt.Stderr, ExitCode: c.opt.ExitCode}
	if res.Stdout != "" {
		return res, nil
	}
	n, err := nonBlankLines(path)
	if err != nil {
		return contract.CompileResult{}, contract.NewIOFailure("read", path, err)
	}
	res.Stdout = Report(n)
	return res, nil
}

// Report 生成一份仿 malisc 格式的报告，Longest Path 周期为 (n, 0, 0)。
func Report(n int) string {
	var b strings.Builder
	b.WriteString("Mali Offline Compiler (mock)\n")
	b.WriteString("Fragment Shader\n\n")
	b.WriteString("                                A      LS       T    Bound\n")
	b.WriteString("Total Instruction Cycles:       " + fmt.Sprintf("%d       0       0        A\n", n))
	b.WriteString("Shortest Path Cycles:           0       0       0        A\n")
	fmt.Fprintf(&b, "%s          %d       0       0        A\n", contract.CyclesLabel, n)
	return b.String()
}

func nonBlankLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}
