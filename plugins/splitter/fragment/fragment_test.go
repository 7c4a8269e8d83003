package fragment

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"fragsplit/pkg/contract"
)

const sep = "//////////////////////////////////////////////////////"

// lines 将多行文本拆为保留行尾的行序列。
func lines(s string) []string {
	if s == "" {
		return nil
	}
	out := strings.SplitAfter(s, "\n")
	if out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// TestMarkers 标记行号严格递增
func TestMarkers(t *testing.T) {
	src := lines("a\n#ifdef FRAGMENT\nb\n  #ifdef FRAGMENT // x\n#ifdef VERTEX\n")
	got := Markers(src)
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("markers = %v", got)
	}
	if Markers(nil) != nil {
		t.Fatalf("空输入应无标记")
	}
}

// TestUnitName 三位补零、1 起
func TestUnitName(t *testing.T) {
	if got := UnitName("water", 1); got != "water_001.frag" {
		t.Fatalf("got %s", got)
	}
	if got := UnitName("w", 12); got != "w_012.frag" {
		t.Fatalf("got %s", got)
	}
	if got := UnitName("w", 1234); got != "w_1234.frag" {
		t.Fatalf("got %s", got)
	}
}

// TestSplitLinesTooFewMarkers 少于两个标记：空结果
func TestSplitLinesTooFewMarkers(t *testing.T) {
	for _, src := range []string{"", "void main(){}\n", "#ifdef FRAGMENT\nx\n#endif\n"} {
		if units := SplitLines("a.shader", lines(src)); units != nil {
			t.Fatalf("expect nil units for %q, got %d", src, len(units))
		}
	}
}

// TestSplitLinesBlocks 块边界、序号与命名
func TestSplitLinesBlocks(t *testing.T) {
	src := lines("header\n#ifdef FRAGMENT\nA\n#endif\n#ifdef FRAGMENT\nB\n#endif\ntail\n")
	units := SplitLines("dir/Lit.shader", src)
	if len(units) != 2 {
		t.Fatalf("expect 2 units, got %d", len(units))
	}
	if units[0].Name != "Lit_001.frag" || units[1].Name != "Lit_002.frag" {
		t.Fatalf("names: %s %s", units[0].Name, units[1].Name)
	}
	if units[0].StartLine != 1 || units[0].EndLine != 4 || units[1].StartLine != 4 || units[1].EndLine != len(src) {
		t.Fatalf("ranges: %+v %+v", units[0], units[1])
	}
	if !reflect.DeepEqual(units[0].Lines, []string{"A\n"}) {
		t.Fatalf("unit1 lines %q", units[0].Lines)
	}
	// 最后一块延伸到文件尾，"tail" 在最后一个 #endif 之后被丢弃
	if !reflect.DeepEqual(units[1].Lines, []string{"B\n"}) {
		t.Fatalf("unit2 lines %q", units[1].Lines)
	}
	if units[1].Ordinal != 2 || units[1].FileID != "dir/Lit.shader" {
		t.Fatalf("ordinal/fileID: %+v", units[1])
	}
}

// TestSplitLinesDoesNotMutateSource 源序列不被修改
func TestSplitLinesDoesNotMutateSource(t *testing.T) {
	src := lines("#ifdef FRAGMENT\n#version 300 es\n#endif\n#ifdef FRAGMENT\n#version 300 es\n")
	cp := append([]string(nil), src...)
	_ = SplitLines("a.shader", src)
	if !reflect.DeepEqual(src, cp) {
		t.Fatalf("source mutated: %q", src)
	}
}

// TestProcessSeparatorBeforeEndif 分隔线优先：其后的 #endif 不得出现
func TestProcessSeparatorBeforeEndif(t *testing.T) {
	block := lines("#ifdef FRAGMENT\nkeep\n#endif\nkeep2\n" + sep + "\nafter\n#endif\n")
	got := Process(block)
	// 分隔线截断后剩余 [keep, #endif, keep2]，再截到最后一个 #endif 之前
	if !reflect.DeepEqual(got, []string{"keep\n"}) {
		t.Fatalf("got %q", got)
	}
	block = lines("#ifdef FRAGMENT\nkeep\n" + sep + "\n#endif\n")
	got = Process(block)
	if !reflect.DeepEqual(got, []string{"keep\n"}) {
		t.Fatalf("got %q", got)
	}
	for _, l := range got {
		if strings.Contains(l, "#endif") {
			t.Fatalf("#endif after separator reappeared: %q", got)
		}
	}
}

// TestProcessSeparatorSubstring 分隔线按子串匹配
func TestProcessSeparatorSubstring(t *testing.T) {
	block := lines("x\n  " + sep + "// more\ny\n")
	got := Process(block)
	if !reflect.DeepEqual(got, []string{"x\n"}) {
		t.Fatalf("got %q", got)
	}
	// 53 个斜杠不是分隔线
	short := strings.Repeat("/", 53)
	got = Process(lines("x\n" + short + "\ny\n"))
	if len(got) != 3 {
		t.Fatalf("53 slashes must not truncate: %q", got)
	}
}

// TestProcessNoSeparatorNoEndif 无分隔线、无 #endif：保留全部
func TestProcessNoSeparatorNoEndif(t *testing.T) {
	got := Process(lines("#ifdef FRAGMENT\na\nb\n"))
	if !reflect.DeepEqual(got, []string{"a\n", "b\n"}) {
		t.Fatalf("got %q", got)
	}
}

// TestProcessLastEndif 多个 #endif 时截到最后一个
func TestProcessLastEndif(t *testing.T) {
	got := Process(lines("#ifdef FRAGMENT\n#ifdef X\nx\n#endif\ny\n#endif\n\nz\n"))
	want := []string{"#ifdef X\n", "x\n", "#endif\n", "y\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}
}

// TestProcessTrailingBlanks 末尾空白行：零个、若干、全部
func TestProcessTrailingBlanks(t *testing.T) {
	if got := Process(lines("a\nb\n")); !reflect.DeepEqual(got, []string{"a\n", "b\n"}) {
		t.Fatalf("no trailing blanks changed: %q", got)
	}
	if got := Process(lines("a\n\n  \n\t\r\n#endif\n")); !reflect.DeepEqual(got, []string{"a\n"}) {
		t.Fatalf("trailing blanks kept: %q", got)
	}
	if got := Process(lines("a\n \n\n")); !reflect.DeepEqual(got, []string{"a\n"}) {
		t.Fatalf("trailing blanks without #endif kept: %q", got)
	}
	if got := Process(lines("\n  \n\t\n")); len(got) != 0 {
		t.Fatalf("all-blank block should be empty: %q", got)
	}
	// 中间空行保留
	if got := Process(lines("a\n\nb\n")); len(got) != 3 {
		t.Fatalf("inner blank removed: %q", got)
	}
}

// TestProcessVersionRewrite 每处 #version 300 es 均改写
func TestProcessVersionRewrite(t *testing.T) {
	got := Process(lines("#version 300 es\nprecision mediump float;\n// #version 300 es #version 300 es\n"))
	want := []string{"#version 320 es\n", "precision mediump float;\n", "// #version 320 es #version 320 es\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}
	// 其他版本不改
	if got := Process(lines("#version 310 es\n")); got[0] != "#version 310 es\n" {
		t.Fatalf("other versions must stay: %q", got)
	}
}

// TestProcessEmptyResult 截断后为空仍返回空切片
func TestProcessEmptyResult(t *testing.T) {
	got := Process(lines("#ifdef FRAGMENT\n#endif\n"))
	if got == nil || len(got) != 0 {
		t.Fatalf("expect empty non-nil, got %#v", got)
	}
	if got := Process(nil); len(got) != 0 {
		t.Fatalf("nil block: %q", got)
	}
}

// TestProcessFirstLineOnly 仅首行的标记被去掉
func TestProcessFirstLineOnly(t *testing.T) {
	got := Process(lines("a\n#ifdef FRAGMENT\n"))
	if !reflect.DeepEqual(got, []string{"a\n", "#ifdef FRAGMENT\n"}) {
		t.Fatalf("got %q", got)
	}
}

// TestSplitCRLF 保留 CRLF 行尾
func TestSplitCRLF(t *testing.T) {
	src := "#ifdef FRAGMENT\r\n#version 300 es\r\nA\r\n#endif\r\n#ifdef FRAGMENT\r\nB"
	units, err := New(nil).Split(context.Background(), "x.shader", strings.NewReader(src))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expect 2 units, got %d", len(units))
	}
	if string(units[0].Bytes()) != "#version 320 es\r\nA\r\n" {
		t.Fatalf("unit1 %q", units[0].Bytes())
	}
	// 末行无换行时原样保留
	if string(units[1].Bytes()) != "B" {
		t.Fatalf("unit2 %q", units[1].Bytes())
	}
}

// TestSplitEndToEndExample 标记位于 2/10/25 行，仅第二块含分隔线
func TestSplitEndToEndExample(t *testing.T) {
	src := make([]string, 0, 32)
	for i := 0; i < 32; i++ {
		src = append(src, "// filler\n")
	}
	src[2] = "#ifdef FRAGMENT\n"
	src[3] = "void a(){}\n"
	src[8] = "#endif\n"
	src[10] = "#ifdef FRAGMENT\n"
	src[11] = "void b(){}\n"
	src[13] = sep + "\n"
	src[14] = "void hidden(){}\n"
	src[20] = "#endif\n"
	src[25] = "#ifdef FRAGMENT\n"
	src[26] = "void c(){}\n"
	src[30] = "#endif\n"
	units := SplitLines("scene.shader", src)
	if len(units) != 3 {
		t.Fatalf("expect 3 units, got %d", len(units))
	}
	names := []string{units[0].Name, units[1].Name, units[2].Name}
	if !reflect.DeepEqual(names, []string{"scene_001.frag", "scene_002.frag", "scene_003.frag"}) {
		t.Fatalf("names %v", names)
	}
	if !reflect.DeepEqual(units[1].Lines, []string{"void b(){}\n", "// filler\n"}) {
		t.Fatalf("block 2 must stop at separator: %q", units[1].Lines)
	}
	if len(units[0].Lines) != 5 || len(units[2].Lines) != 4 {
		t.Fatalf("block sizes %d %d", len(units[0].Lines), len(units[2].Lines))
	}
}

// TestSplitTooLarge 超出 MaxSourceBytes
func TestSplitTooLarge(t *testing.T) {
	s := New(&Options{MaxSourceBytes: 8})
	_, err := s.Split(context.Background(), "a.shader", strings.NewReader("#ifdef FRAGMENT\n#ifdef FRAGMENT\n"))
	if !errors.Is(err, contract.ErrInvariantViolation) {
		t.Fatalf("expect size error, got %v", err)
	}
}

// TestSplitCtxCancel 上下文取消
func TestSplitCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Split(ctx, "a.shader", strings.NewReader("x\n"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx cancel, got %v", err)
	}
}

// TestSplitReadError 底层读取错误上抛
func TestSplitReadError(t *testing.T) {
	_, err := New(nil).Split(context.Background(), "a.shader", errReader{})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expect read error, got %v", err)
	}
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }
