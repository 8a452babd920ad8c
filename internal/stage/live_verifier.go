package stage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/scoring"
)

const (
	// maxBodySize 线上页面读取上限
	maxBodySize = 2 * 1024 * 1024
)

// HTTPLiveVerifier 部署后线上验证
// 对线上页面做 HTTP 层面的功能类别检查，不做真实浏览器自动化
type HTTPLiveVerifier struct {
	client        *http.Client
	threshold     int
	diffThreshold int
}

func NewHTTPLiveVerifier(parityThreshold, diffThreshold int) *HTTPLiveVerifier {
	if parityThreshold <= 0 {
		parityThreshold = scoring.ParityThreshold
	}
	if diffThreshold <= 0 {
		diffThreshold = scoring.DifferentiationThreshold
	}
	return &HTTPLiveVerifier{
		client:        &http.Client{Timeout: 30 * time.Second},
		threshold:     parityThreshold,
		diffThreshold: diffThreshold,
	}
}

// CheckDeployment 按功能类别检查线上页面
func (v *HTTPLiveVerifier) CheckDeployment(ctx context.Context, analysis *model.Analysis, appURL string) (*scoring.Report, error) {
	body, err := v.fetch(ctx, appURL)
	if err != nil {
		return nil, Fail("verify_deployment", "线上页面访问失败", err)
	}

	lower := strings.ToLower(body)

	// 类别 → HTML 层面的存在性标记
	categoryMarkers := map[string][]string{
		"rendering":  {"<html", "<body"},
		"navigation": {"<nav", "href="},
		"forms":      {"<form", "<input"},
		"crud":       {"<button", "fetch(", "method="},
		"auth":       {"login", "password"},
		"search":     {"search"},
	}

	checks := make([]scoring.Check, 0, len(categoryMarkers))
	for category, markers := range categoryMarkers {
		found := 0
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				found++
			}
		}
		score := 0
		if found == len(markers) {
			score = 100
		} else if found > 0 {
			score = 50
		}
		checks = append(checks, scoring.Check{
			Feature: category,
			Score:   score,
			Detail:  fmt.Sprintf("%d/%d markers", found, len(markers)),
		})
	}

	return scoring.NewReport(scoring.PhasePostDeploy, checks, scoring.BrowserWeights, v.threshold), nil
}

// CheckDifferentiation 差异化检查，分数越高与原产品区分越明显
func (v *HTTPLiveVerifier) CheckDifferentiation(ctx context.Context, analysis *model.Analysis, appURL string) (*scoring.Report, error) {
	body, err := v.fetch(ctx, appURL)
	if err != nil {
		return nil, Fail("verify_deployment", "线上页面访问失败", err)
	}

	lower := strings.ToLower(body)
	target := strings.ToLower(analysis.TargetName)

	checks := []scoring.Check{
		{
			// 页面中不出现目标产品名
			Feature: "name_distinct",
			Score:   boolScore(target == "" || !strings.Contains(lower, target)),
			Weight:  10,
		},
		{
			// 有自己的 title
			Feature: "own_branding",
			Score:   boolScore(strings.Contains(lower, "<title>")),
			Weight:  5,
		},
	}

	return scoring.NewReport(scoring.PhasePostDeploy, checks, nil, v.diffThreshold), nil
}

func (v *HTTPLiveVerifier) fetch(ctx context.Context, appURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, appURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func boolScore(ok bool) int {
	if ok {
		return 100
	}
	return 0
}
