package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "fragsplit/internal/config"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "Write a default config.json and .env template (existing files are kept)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return configErr("生成默认配置失败: %w", err)
			}
			b, err := json.MarshalIndent(cfgpkg.DefaultTemplateConfig(), "", "  ")
			if err != nil {
				return configErr("生成默认配置失败: %w", err)
			}
			for _, f := range []struct {
				name string
				data []byte
			}{
				{"config.json", append(b, '\n')},
				{".env", []byte(cfgpkg.EnvTemplate())},
			} {
				p := filepath.Join(dir, f.name)
				created, err := writeNew(p, f.data)
				if err != nil {
					return configErr("生成 %s 失败: %w", f.name, err)
				}
				if created {
					fmt.Fprintf(a.stdout, "wrote %s\n", p)
				} else {
					fmt.Fprintf(a.stdout, "skip %s (exists)\n", p)
				}
			}
			return nil
		},
	}
}

// writeNew 仅在文件不存在时创建；已存在返回 (false, nil)。
func writeNew(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}
