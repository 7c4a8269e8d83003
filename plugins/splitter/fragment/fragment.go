// Package fragment 将组合着色器源文件拆分为独立的片元编译单元。
//
// 源文件以行序列处理：先一次性记录全部 "#ifdef FRAGMENT" 标记行号，
// 再按相邻标记对切出块区间，逐块变换。切片共享源行，不修改源序列；
// 仅在版本改写时复制。
package fragment

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"fragsplit/pkg/contract"
)

// Options 为 Fragment Splitter 的可选配置（最小必要）。
type Options struct {
	// MaxSourceBytes: 源文件最大字节数。0 表示不限制。
	MaxSourceBytes int `json:"max_source_bytes"`
}

// Splitter 实现片元拆分。
type Splitter struct {
	maxBytes int
}

// New 创建 Fragment Splitter。
func New(opts *Options) *Splitter {
	mb := 0
	if opts != nil && opts.MaxSourceBytes > 0 {
		mb = opts.MaxSourceBytes
	}
	return &Splitter{maxBytes: mb}
}

var _ contract.Splitter = (*Splitter)(nil)

// Split 读取单个源文件并拆分为 []Unit；标记少于两个时返回 nil。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) ([]contract.Unit, error) {
	lines, err := s.readLines(ctx, r)
	if err != nil {
		return nil, err
	}
	return SplitLines(fileID, lines), nil
}

// SplitLines 对已读入的行执行拆分。纯函数，不触碰文件系统。
func SplitLines(fileID contract.FileID, lines []string) []contract.Unit {
	markers := Markers(lines)
	if len(markers) < 2 {
		return nil
	}
	base := contract.BaseName(fileID)
	units := make([]contract.Unit, 0, len(markers))
	for i, start := range markers {
		end := len(lines)
		if i+1 < len(markers) {
			end = markers[i+1]
		}
		ordinal := i + 1
		units = append(units, contract.Unit{
			FileID:    fileID,
			Ordinal:   ordinal,
			Name:      UnitName(base, ordinal),
			Lines:     Process(lines[start:end]),
			StartLine: start,
			EndLine:   end,
		})
	}
	return units
}

// Markers 返回所有包含起始标记的行号（严格递增）。
func Markers(lines []string) []int {
	var idx []int
	for i, l := range lines {
		if strings.Contains(l, contract.FragmentMarker) {
			idx = append(idx, i)
		}
	}
	return idx
}

// UnitName 生成 <base>_<NNN>.frag，ordinal 自 1 起。
func UnitName(base string, ordinal int) string {
	return fmt.Sprintf("%s_%03d%s", base, ordinal, contract.UnitExt)
}

// Process 对单个块执行变换，顺序固定：
//  1. 首行含起始标记则去掉；
//  2. 截断到第一条分隔线之前；
//  3. 截断到最后一个 #endif 之前；
//  4. 去掉末尾空白行；
//  5. 改写版本指令。
//
// 先分隔线后 #endif：分隔线之后的 #endif 不会被保留。
func Process(block []string) []string {
	out := block
	if len(out) > 0 && strings.Contains(out[0], contract.FragmentMarker) {
		out = out[1:]
	}
	if k := indexContaining(out, contract.SeparatorLine); k >= 0 {
		out = out[:k]
	}
	if j := lastIndexContaining(out, contract.EndifDirective); j >= 0 {
		out = out[:j]
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	res := make([]string, len(out))
	for i, l := range out {
		res[i] = strings.ReplaceAll(l, contract.VersionLegacy, contract.VersionTarget)
	}
	return res
}

func indexContaining(lines []string, sub string) int {
	for i, l := range lines {
		if strings.Contains(l, sub) {
			return i
		}
	}
	return -1
}

func lastIndexContaining(lines []string, sub string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], sub) {
			return i
		}
	}
	return -1
}

// readLines 按行读取并保留行尾；最后一行可无换行。
func (s *Splitter) readLines(ctx context.Context, r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var lines []string
	total := 0
	for {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		line, err := br.ReadString('\n')
		if line != "" {
			total += len(line)
			if s.maxBytes > 0 && total > s.maxBytes {
				return nil, fmt.Errorf("%w: source too large: > %d bytes", contract.ErrInvariantViolation, s.maxBytes)
			}
			lines = append(lines, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return nil, err
		}
	}
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
