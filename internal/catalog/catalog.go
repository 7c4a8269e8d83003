// Package catalog 列出目录中的着色器源文件与已生成的片段。
package catalog

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"

	"fragsplit/pkg/contract"
	rfs "fragsplit/plugins/reader/filesystem"
)

// Shaders 递归列出 dir 下的 .shader 文件（扩展名大小写不敏感），
// 返回相对 dir 的路径，字典序。
func Shaders(ctx context.Context, dir string) ([]string, error) {
	return list(ctx, dir, dir, contract.ShaderExt)
}

// Units 递归列出 dir/Frags 下的 .frag 文件，路径相对 dir/Frags。
// Frags 不存在时返回空列表。
func Units(ctx context.Context, dir string) ([]string, error) {
	frags := filepath.Join(dir, contract.UnitsDir)
	out, err := list(ctx, frags, frags, contract.UnitExt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return out, err
}

// UnitPaths 与 Units 相同，但返回可直接打开的完整路径。
func UnitPaths(ctx context.Context, dir string) ([]string, error) {
	rel, err := Units(ctx, dir)
	if err != nil {
		return nil, err
	}
	frags := filepath.Join(dir, contract.UnitsDir)
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(frags, r)
	}
	return out, nil
}

func list(ctx context.Context, root, base, ext string) ([]string, error) {
	r := rfs.New(&rfs.Options{AllowExts: []string{ext}})
	paths, err := r.Paths(ctx, root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	slices.Sort(out)
	return out, nil
}
