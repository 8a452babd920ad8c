package scoring

import "math"

// 评分阶段
const (
	PhasePreDeploy  = "pre_deploy"  // 部署前：特征存在性检查
	PhasePostDeploy = "post_deploy" // 部署后：线上浏览器检查
)

// 阈值定义
const (
	ParityThreshold          = 90 // 还原度达标线
	DifferentiationThreshold = 60 // 差异化安全线（越高越安全）
	DefaultWeight            = 5  // 未列入权重表的检查项的兜底权重
)

// Check 单项检查结果，score 由外部启发式计算
type Check struct {
	Feature string `json:"feature"`
	Score   int    `json:"score"`            // 0-100
	Weight  int    `json:"weight,omitempty"` // 0 表示按权重表取值
	Detail  string `json:"detail,omitempty"`
}

// FeatureWeights 部署前特征权重表，核心功能权重高于视觉细节
var FeatureWeights = map[string]int{
	"landing_page":      10,
	"api_integration":   10,
	"auth":              9,
	"crud":              9,
	"dashboard":         8,
	"payments":          8,
	"search":            6,
	"notifications":     5,
	"settings":          4,
	"responsive_layout": 4,
	"loading_state":     2,
}

// BrowserWeights 部署后按功能类别加权，CRUD 最重、搜索最轻
var BrowserWeights = map[string]int{
	"crud":       10,
	"navigation": 8,
	"forms":      7,
	"auth":       7,
	"rendering":  6,
	"search":     4,
}

// Report 归一化的评分报告，部署前后共用同一投影
type Report struct {
	Phase           string   `json:"phase"`
	Overall         int      `json:"overall"`
	Threshold       int      `json:"threshold"`
	PassesThreshold bool     `json:"passes_threshold"`
	Checks          []Check  `json:"checks,omitempty"`
	MissingFeatures []string `json:"missing_features,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Aggregate 加权聚合为 0-100 的整数百分比
// 空检查集返回 0，不会除零
func Aggregate(checks []Check, weights map[string]int) int {
	var weightedSum, totalWeight float64

	for _, check := range checks {
		w := check.Weight
		if w <= 0 {
			if tw, ok := weights[check.Feature]; ok {
				w = tw
			} else {
				w = DefaultWeight
			}
		}
		weightedSum += float64(check.Score) / 100 * float64(w)
		totalWeight += float64(w)
	}

	if totalWeight == 0 {
		return 0
	}

	return int(math.Round(100 * weightedSum / totalWeight))
}

// NewReport 聚合检查集并判定是否达标
func NewReport(phase string, checks []Check, weights map[string]int, threshold int) *Report {
	overall := Aggregate(checks, weights)

	report := &Report{
		Phase:           phase,
		Overall:         overall,
		Threshold:       threshold,
		PassesThreshold: len(checks) > 0 && overall >= threshold,
		Checks:          checks,
	}

	// 得分为 0 的特征视为缺失
	for _, check := range checks {
		if check.Score == 0 {
			report.MissingFeatures = append(report.MissingFeatures, check.Feature)
		}
	}

	return report
}
