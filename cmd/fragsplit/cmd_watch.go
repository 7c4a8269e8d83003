package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "fragsplit/internal/config"
	"fragsplit/internal/pipeline"
	"fragsplit/internal/watch"
)

func (a *app) watchCmd() *cobra.Command {
	var (
		debounce time.Duration
		initial  bool
	)
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-split shader files whenever they change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			dir := resolveDir(args)
			cfg.Inputs = []string{dir}
			comp, set, err := cfgpkg.Assemble(cfg)
			if err != nil {
				return configErr("装配失败: %w", err)
			}
			ctx := cmd.Context()
			if initial {
				if _, err := pipelineRun(ctx, comp, set, a.logger); err != nil {
					return runtimeErr("初次拆分失败: %w", err)
				}
			}
			// 与初次拆分一致：目录根的片段统一写入 <dir>/Frags
			outDir := cfg.OutputDir
			if outDir == "" {
				outDir = dir
			}
			handle := func(ctx context.Context, path string) error {
				names, err := pipeline.SplitFile(ctx, comp, path, outDir)
				if err != nil {
					fmt.Fprintf(a.stdout, "%s: error: %v\n", path, err)
					return err
				}
				fmt.Fprintf(a.stdout, "%s: %d units\n", path, len(names))
				return nil
			}
			w, err := watch.New(dir, debounce, handle, a.logger)
			if err != nil {
				return runtimeErr("启动监视失败: %w", err)
			}
			defer w.Close()
			a.remember(dir)
			fmt.Fprintf(a.stderr, "watching %s (Ctrl+C to stop)\n", dir)
			if err := w.Run(ctx); err != nil {
				return runtimeErr("监视失败: %w", err)
			}
			st := w.Stats()
			fmt.Fprintf(a.stderr, "events=%d processed=%d errors=%d\n", st.Events, st.Processed, st.Errors)
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "同一文件事件的静默间隔")
	cmd.Flags().BoolVar(&initial, "initial", true, "启动时先完整拆分一次")
	return cmd
}
