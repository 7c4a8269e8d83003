package registry

import (
	"bytes"
	"encoding/json"

	"fragsplit/pkg/contract"
	cmalisc "fragsplit/plugins/compiler/malisc"
	cmock "fragsplit/plugins/compiler/mock"
	rfs "fragsplit/plugins/reader/filesystem"
	sfrag "fragsplit/plugins/splitter/fragment"
	wfs "fragsplit/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewSplitter 工厂签名：接收原样 JSON Options。
type NewSplitter func(raw json.RawMessage) (contract.Splitter, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewCompiler 工厂签名：接收原样 JSON Options。
type NewCompiler func(raw json.RawMessage) (contract.Compiler, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Splitter 工厂注册表。
var Splitter = map[string]NewSplitter{
	// fragment: 按 #ifdef FRAGMENT 标记切分着色器源
	"fragment": func(raw json.RawMessage) (contract.Splitter, error) {
		var opts sfrag.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sfrag.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Compiler 工厂注册表。插件自行严格解码选项。
var Compiler = map[string]NewCompiler{
	// malisc: Mali 离线编译器子进程
	"malisc": func(raw json.RawMessage) (contract.Compiler, error) { return cmalisc.New(raw) },
	// mock: 不启动进程，按内容生成报告
	"mock": func(raw json.RawMessage) (contract.Compiler, error) { return cmock.New(raw) },
}
