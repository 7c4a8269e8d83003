// Package state 持久化最近一次使用的工作目录。
package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// EnvFile 覆盖状态文件路径。
const EnvFile = "FRAGSPLIT_STATE_FILE"

// State 为落盘内容。
type State struct {
	LastPath string `json:"last_path"`
}

// DefaultPath: $FRAGSPLIT_STATE_FILE，否则 ~/.fragsplit/state.json。
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvFile)); p != "" {
		return homedir.Expand(p)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".fragsplit", "state.json"), nil
}

// Load 读取状态；文件不存在时返回零值。内容损坏时返回错误。
func Load(path string) (State, error) {
	var s State
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, err
	}
	return s, nil
}

// Save 写入状态（缩进 JSON）。
func Save(path string, s State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// LastDir 返回仍然存在的上次目录；不存在或未记录时返回 ""。
func LastDir(path string) string {
	s, err := Load(path)
	if err != nil || s.LastPath == "" {
		return ""
	}
	if st, err := os.Stat(s.LastPath); err != nil || !st.IsDir() {
		return ""
	}
	return s.LastPath
}

// Remember 记录目录（转换为绝对路径）。
func Remember(path, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return Save(path, State{LastPath: abs})
}
