// Package report 导出片段编译结果并计算汇总统计。
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	"fragsplit/internal/metrics"
	"fragsplit/internal/pipeline"
)

// 支持的导出格式。
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Row: 单个片段一行。
type Row struct {
	Unit     string `csv:"unit" json:"unit"`
	Cycles   int    `csv:"cycles" json:"cycles"`
	Measured bool   `csv:"measured" json:"measured"`
	Tier     string `csv:"tier" json:"tier"`
	ExitCode int    `csv:"exit_code" json:"exit_code"`
	Cached   bool   `csv:"cached" json:"cached"`
	Error    string `csv:"error" json:"error,omitempty"`
}

// Summary: 汇总统计。Mean/StdDev/Max 仅基于可解析出周期和的片段。
type Summary struct {
	Units    int            `json:"units"`
	Measured int            `json:"measured"`
	Failed   int            `json:"failed"`
	Mean     float64        `json:"mean"`
	StdDev   float64        `json:"stddev"`
	Max      int            `json:"max"`
	Tiers    map[string]int `json:"tiers"`
}

// FromOutcomes 将编译结果转换为行；base 非空时 Unit 取相对 base 的路径。
func FromOutcomes(outs []pipeline.Outcome, base string) []Row {
	rows := make([]Row, 0, len(outs))
	for _, o := range outs {
		name := o.Path
		if base != "" {
			if rel, err := filepath.Rel(base, o.Path); err == nil {
				name = rel
			}
		}
		r := Row{
			Unit:     filepath.ToSlash(name),
			Cycles:   o.Metrics.Sum,
			Measured: o.Metrics.OK,
			Tier:     o.Metrics.Tier.String(),
			ExitCode: o.Result.ExitCode,
			Cached:   o.Cached,
		}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		rows = append(rows, r)
	}
	return rows
}

// Summarize 计算汇总统计。
func Summarize(rows []Row) Summary {
	s := Summary{Units: len(rows), Tiers: map[string]int{}}
	for _, t := range []metrics.Tier{metrics.Good, metrics.Moderate, metrics.Poor, metrics.Unknown} {
		s.Tiers[t.String()] = 0
	}
	var xs []float64
	for _, r := range rows {
		s.Tiers[r.Tier]++
		if r.Error != "" {
			s.Failed++
		}
		if !r.Measured {
			continue
		}
		s.Measured++
		xs = append(xs, float64(r.Cycles))
		s.Max = max(s.Max, r.Cycles)
	}
	switch len(xs) {
	case 0:
	case 1:
		s.Mean = xs[0]
	default:
		s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	}
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}

// Write 按 format 写出：csv 为逐行表格，json 为 {units, summary}。
func Write(w io.Writer, format string, rows []Row) error {
	switch strings.ToLower(format) {
	case FormatCSV:
		if err := gocsv.Marshal(&rows, w); err != nil {
			return fmt.Errorf("report csv: %w", err)
		}
		return nil
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		doc := struct {
			Units   []Row   `json:"units"`
			Summary Summary `json:"summary"`
		}{Units: rows, Summary: Summarize(rows)}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("report json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// FormatFor 在 format 为空时按扩展名推断（.csv → csv，其余 json）。
func FormatFor(path, format string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// WriteFile 写出到 path（覆盖）。
func WriteFile(path, format string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, FormatFor(path, format), rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
