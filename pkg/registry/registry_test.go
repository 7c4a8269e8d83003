package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"fragsplit/pkg/contract"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	if err := strictUnmarshal(nil, &o); err != nil || o.A != 0 {
		t.Fatalf("nil 输入失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1}`), &o); err != nil || o.A != 1 {
		t.Fatalf("合法 JSON 解析失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o); err == nil {
		t.Fatalf("未知字段应报错")
	}
}

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	t.Run("reader", func(t *testing.T) {
		if _, err := Reader["fs"](json.RawMessage(`{"allow_exts":[".shader"]}`)); err != nil {
			t.Fatalf("reader: %v", err)
		}
		if _, err := Reader["fs"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("reader 未对未知字段报错")
		}
	})
	t.Run("splitter", func(t *testing.T) {
		if _, err := Splitter["fragment"](json.RawMessage(`{"max_source_bytes":1024}`)); err != nil {
			t.Fatalf("splitter: %v", err)
		}
		if _, err := Splitter["fragment"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("splitter 未对未知字段报错")
		}
	})
	t.Run("writer", func(t *testing.T) {
		tmp := t.TempDir()
		if _, err := Writer["fs"](json.RawMessage(fmt.Sprintf(`{"root":%q}`, tmp))); err != nil {
			t.Fatalf("writer: %v", err)
		}
		if _, err := Writer["fs"](nil); err != nil {
			t.Fatalf("writer 无 root: %v", err)
		}
		bad := json.RawMessage(fmt.Sprintf(`{"root":%q,"x":1}`, tmp))
		if _, err := Writer["fs"](bad); err == nil {
			t.Fatalf("writer 未对未知字段报错")
		}
	})
	t.Run("compiler-mock", func(t *testing.T) {
		if _, err := Compiler["mock"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("mock: %v", err)
		}
	})
	t.Run("compiler-malisc", func(t *testing.T) {
		raw := json.RawMessage(fmt.Sprintf(`{"path":%q}`, filepath.Join(t.TempDir(), "malisc")))
		if _, err := Compiler["malisc"](raw); !errors.Is(err, contract.ErrCompilerNotFound) {
			t.Fatalf("malisc 未按预期报错: %v", err)
		}
	})
}
