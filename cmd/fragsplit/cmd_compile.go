package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fragsplit/internal/catalog"
	cfgpkg "fragsplit/internal/config"
	"fragsplit/internal/diag"
	"fragsplit/internal/pipeline"
	"fragsplit/internal/report"
	"fragsplit/pkg/contract"
)

func (a *app) compileCmd() *cobra.Command {
	var (
		show         bool
		reportPath   string
		reportFormat string
		concurrency  int
	)
	cmd := &cobra.Command{
		Use:   "compile [units or dirs...]",
		Short: "Compile fragment units and grade their longest-path cycles",
		Long: `Run the offline compiler over fragment units. A directory argument selects
every unit under <dir>/Frags. Without arguments the last used directory is used.
The sum of the three longest-path cycle values is graded:
<=40 good, 41-79 moderate, >=80 poor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			var over cfgpkg.Config
			if concurrency > 0 {
				over.Concurrency = concurrency
			}
			over.Report = cfgpkg.Report{Path: reportPath, Format: reportFormat}
			cfg = cfgpkg.Merge(cfg, over)

			c, set, err := cfgpkg.AssembleCompiler(cfg)
			if err != nil {
				return configErr("装配失败: %w", err)
			}
			if len(args) == 0 {
				args = []string{resolveDir(nil)}
			}
			paths, base, err := unitPaths(cmd, args)
			if err != nil {
				return runtimeErr("列出片段失败: %w", err)
			}
			if len(paths) == 0 {
				fmt.Fprintln(a.stdout, "no fragment units found")
				return nil
			}

			outs, err := pipeline.Compile(cmd.Context(), c, paths, set, a.logger)
			if err != nil {
				return runtimeErr("编译中止: %w", err)
			}
			rows := report.FromOutcomes(outs, base)
			paint := diag.NewTerminal(a.stdout, true)
			failed := 0
			for i, o := range outs {
				name := rows[i].Unit
				if o.Err != nil {
					failed++
					fmt.Fprintf(a.stdout, "%s: error: %v\n", name, o.Err)
					continue
				}
				line := fmt.Sprintf("%s: %s (%s)", name, o.Metrics.Label(), o.Metrics.Tier)
				fmt.Fprintln(a.stdout, paint.Colorize(line, o.Metrics.Tier))
				if show {
					fmt.Fprintf(a.stdout, "%s\n\n", o.Result.Diagnostic())
				}
			}
			sum := report.Summarize(rows)
			fmt.Fprintf(a.stdout, "units=%d measured=%d failed=%d mean=%.1f stddev=%.1f max=%d\n",
				sum.Units, sum.Measured, sum.Failed, sum.Mean, sum.StdDev, sum.Max)

			if cfg.Report.Path != "" {
				if err := report.WriteFile(cfg.Report.Path, cfg.Report.Format, rows); err != nil {
					return runtimeErr("导出报告失败: %w", err)
				}
			}
			if failed > 0 {
				return runtimeErr("%d of %d units failed", failed, len(outs))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&show, "show", false, "打印完整编译器输出")
	f.StringVar(&reportPath, "report", "", "导出报告路径")
	f.StringVar(&reportFormat, "report-format", "", "报告格式 csv|json（缺省按扩展名）")
	f.IntVar(&concurrency, "concurrency", 0, "并发度（覆盖配置）")
	return cmd
}

// unitPaths 展开参数：目录取 <dir>/Frags 下全部片段，文件原样保留。
// 仅有一个目录参数时 base 为其 Frags 目录，用于报告中的相对名。
func unitPaths(cmd *cobra.Command, args []string) (paths []string, base string, err error) {
	dirs := 0
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, "", err
		}
		if !st.IsDir() {
			paths = append(paths, arg)
			continue
		}
		dirs++
		ps, err := catalog.UnitPaths(cmd.Context(), arg)
		if err != nil {
			return nil, "", err
		}
		paths = append(paths, ps...)
		base = filepath.Join(arg, contract.UnitsDir)
	}
	if dirs != 1 || len(args) != 1 {
		base = ""
	}
	return paths, base, nil
}
