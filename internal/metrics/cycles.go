// Package metrics 从离线编译器报告中提取最长路径周期数并分级。
package metrics

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"fragsplit/pkg/contract"
)

// Tier 为周期数总和的分级。
type Tier int

const (
	Unknown Tier = iota
	Good
	Moderate
	Poor
)

// 分级阈值（含边界）。
const (
	GoodMax     = 40
	ModerateMax = 79
)

func (t Tier) String() string {
	switch t {
	case Good:
		return "good"
	case Moderate:
		return "moderate"
	case Poor:
		return "poor"
	default:
		return "unknown"
	}
}

// MarshalText 以字符串形式输出（JSON/CSV 报表使用）。
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

var digitRun = regexp.MustCompile(`[0-9]+`)

// ExtractCyclesSum 在报告中查找第一行含 "Longest Path Cycles:" 的文本，
// 取标签之后的数字串，求前三个之和。
// 无匹配行、数字不足三个、数字或总和超出 int 时 ok=false。
func ExtractCyclesSum(report string) (sum int, ok bool) {
	for _, line := range strings.Split(report, "\n") {
		_, after, found := strings.Cut(line, contract.CyclesLabel)
		if !found {
			continue
		}
		runs := digitRun.FindAllString(after, 3)
		if len(runs) < 3 {
			return 0, false
		}
		for _, r := range runs {
			n, err := strconv.Atoi(r)
			// 总和溢出同样视为缺失
			if err != nil || n > math.MaxInt-sum {
				return 0, false
			}
			sum += n
		}
		return sum, true
	}
	return 0, false
}

// Classify 将总和分级；ok=false 视为缺失。
func Classify(sum int, ok bool) Tier {
	switch {
	case !ok:
		return Unknown
	case sum <= GoodMax:
		return Good
	case sum <= ModerateMax:
		return Moderate
	default:
		return Poor
	}
}

// Result 为一次报告解析的结果。
type Result struct {
	Sum  int
	OK   bool
	Tier Tier
}

// Analyze 解析并分级。
func Analyze(report string) Result {
	sum, ok := ExtractCyclesSum(report)
	return Result{Sum: sum, OK: ok, Tier: Classify(sum, ok)}
}

// Label 返回用于展示的文本：有值时为总和，缺失时为 "--"。
func (r Result) Label() string {
	if !r.OK {
		return "--"
	}
	return strconv.Itoa(r.Sum)
}
