package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fragsplit/internal/diag"
	"fragsplit/internal/metrics"
)

func (a *app) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics [file|-]",
		Short: "Grade a saved offline compiler report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = a.stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return runtimeErr("读取报告失败: %w", err)
				}
				defer f.Close()
				r = f
			}
			b, err := io.ReadAll(r)
			if err != nil {
				return runtimeErr("读取报告失败: %w", err)
			}
			res := metrics.Analyze(string(b))
			paint := diag.NewTerminal(a.stdout, true)
			fmt.Fprintln(a.stdout, paint.Colorize(fmt.Sprintf("%s (%s)", res.Label(), res.Tier), res.Tier))
			return nil
		},
	}
}
