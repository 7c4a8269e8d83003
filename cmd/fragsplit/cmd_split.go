package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "fragsplit/internal/config"
	"fragsplit/internal/pipeline"
	"fragsplit/pkg/contract"
)

var pipelineRun = pipeline.Run

func (a *app) splitCmd() *cobra.Command {
	var (
		out         string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "split [roots...]",
		Short: "Split shader files into Frags/<name>_NNN.frag units",
		Long: `Split every .shader file under the given roots (files, directories, or "-"
for STDIN). Units are written to <dir>/Frags, overwriting existing files.
Without roots the configured inputs are used, then the last used directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			var over cfgpkg.Config
			over.Inputs = args
			over.OutputDir = out
			if concurrency > 0 {
				over.Concurrency = concurrency
			}
			cfg = cfgpkg.Merge(cfg, over)
			if len(cfg.Inputs) == 0 {
				if d := lastDir(); d != "" {
					cfg.Inputs = []string{d}
				}
			}
			comp, set, err := cfgpkg.Assemble(cfg)
			if err != nil {
				a.dumpConfig(cfg)
				return configErr("装配失败: %w", err)
			}

			t := a.logger.Start("pipeline", "split")
			results, err := pipelineRun(cmd.Context(), comp, set, a.logger)
			if err != nil {
				return runtimeErr("运行失败: %w", err)
			}
			total := 0
			for _, r := range results {
				total += len(r.Units)
				if len(r.Units) == 0 {
					fmt.Fprintf(a.stdout, "%s: no fragment markers\n", r.FileID)
					continue
				}
				fmt.Fprintf(a.stdout, "%s: %d units -> %s\n", r.FileID, len(r.Units), filepath.Join(r.OutputDir, contract.UnitsDir))
			}
			t.Finish("split", int64(total))
			if in := set.Inputs[0]; in != "-" {
				a.remember(rememberDir(in))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出根目录（片段写入 <out>/Frags）")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "并发度（覆盖配置）")
	return cmd
}
