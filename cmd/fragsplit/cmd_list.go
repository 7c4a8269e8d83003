package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fragsplit/internal/catalog"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List shader sources and generated fragment units",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := resolveDir(args)
			shaders, err := catalog.Shaders(cmd.Context(), dir)
			if err != nil {
				return runtimeErr("列出着色器失败: %w", err)
			}
			units, err := catalog.Units(cmd.Context(), dir)
			if err != nil {
				return runtimeErr("列出片段失败: %w", err)
			}
			fmt.Fprintf(a.stdout, "Shaders (%d):\n", len(shaders))
			for _, s := range shaders {
				fmt.Fprintf(a.stdout, "  %s\n", s)
			}
			fmt.Fprintf(a.stdout, "Units (%d):\n", len(units))
			for _, u := range units {
				fmt.Fprintf(a.stdout, "  %s\n", u)
			}
			a.remember(dir)
			return nil
		},
	}
}
