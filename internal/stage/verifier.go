package stage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/scoring"
)

const (
	// maxScanFileSize 超过此大小的文件跳过关键词扫描
	maxScanFileSize = 512 * 1024
)

// HeuristicVerifier 部署前还原度评估
// 对每个特征做关键词存在性扫描，打分交给 scoring 聚合
// 确定性启发式，同样的产物永远得到同样的报告
type HeuristicVerifier struct {
	threshold int
}

func NewHeuristicVerifier(threshold int) *HeuristicVerifier {
	if threshold <= 0 {
		threshold = scoring.ParityThreshold
	}
	return &HeuristicVerifier{threshold: threshold}
}

func (v *HeuristicVerifier) CheckParity(ctx context.Context, analysis *model.Analysis, outputDir string) (*scoring.Report, error) {
	contents, err := readTextFiles(outputDir)
	if err != nil {
		return nil, Fail("verify", "读取产物目录失败", err)
	}

	checks := make([]scoring.Check, 0, len(analysis.Features))
	for _, feature := range analysis.Features {
		hits := countFeatureHits(feature, contents)
		checks = append(checks, scoring.Check{
			Feature: normalizeFeature(feature),
			Score:   hitScore(hits),
			Detail:  fmt.Sprintf("matched in %d files", hits),
		})
	}

	report := scoring.NewReport(scoring.PhasePreDeploy, checks, scoring.FeatureWeights, v.threshold)

	for _, missing := range report.MissingFeatures {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("implement missing feature: %s", missing))
	}

	return report, nil
}

// hitScore 命中文件数映射到分值：0 → 0，1 → 60，≥2 → 100
func hitScore(hits int) int {
	switch {
	case hits >= 2:
		return 100
	case hits == 1:
		return 60
	}
	return 0
}

// countFeatureHits 统计特征关键词命中的文件数
// 特征名按 _ 和 - 拆词，所有词都出现才算命中
func countFeatureHits(feature string, contents map[string]string) int {
	tokens := featureTokens(feature)
	if len(tokens) == 0 {
		return 0
	}

	hits := 0
	for _, content := range contents {
		lower := strings.ToLower(content)
		matched := true
		for _, token := range tokens {
			if !strings.Contains(lower, token) {
				matched = false
				break
			}
		}
		if matched {
			hits++
		}
	}
	return hits
}

func featureTokens(feature string) []string {
	raw := strings.FieldsFunc(strings.ToLower(feature), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) >= 3 { // 过滤 of/to 之类的短词
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func normalizeFeature(feature string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(feature)), " ", "_")
}

// readTextFiles 读取目录下全部文本文件，路径 → 内容
func readTextFiles(root string) (map[string]string, error) {
	contents := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // 单个文件读不到不影响整体扫描
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxScanFileSize {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		contents[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return contents, nil
}
