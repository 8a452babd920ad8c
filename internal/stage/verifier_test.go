package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/scoring"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestHeuristicVerifier_CheckParity(t *testing.T) {
	dir := t.TempDir()
	// auth 在两个文件里出现，crud 一个，search 一个都没有
	writeFile(t, dir, "src/auth.js", "export function login() { /* auth flow */ }")
	writeFile(t, dir, "src/routes.js", "router.post('/auth/login', handler)")
	writeFile(t, dir, "src/items.js", "function createItem() {} // crud operations")

	v := NewHeuristicVerifier(scoring.ParityThreshold)
	report, err := v.CheckParity(context.Background(), &model.Analysis{
		Features: []string{"auth", "crud", "search"},
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, scoring.PhasePreDeploy, report.Phase)
	assert.Len(t, report.Checks, 3)

	byFeature := make(map[string]scoring.Check)
	for _, c := range report.Checks {
		byFeature[c.Feature] = c
	}
	assert.Equal(t, 100, byFeature["auth"].Score)
	assert.Equal(t, 60, byFeature["crud"].Score)
	assert.Equal(t, 0, byFeature["search"].Score)

	assert.Contains(t, report.MissingFeatures, "search")
	assert.Contains(t, report.Recommendations, "implement missing feature: search")
}

func TestHeuristicVerifier_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html><body>dashboard view</body></html>")

	v := NewHeuristicVerifier(90)
	analysis := &model.Analysis{Features: []string{"dashboard", "payments"}}

	first, err := v.CheckParity(context.Background(), analysis, dir)
	require.NoError(t, err)
	second, err := v.CheckParity(context.Background(), analysis, dir)
	require.NoError(t, err)

	assert.Equal(t, first.Overall, second.Overall)
	assert.Equal(t, first.MissingFeatures, second.MissingFeatures)
}

func TestHeuristicVerifier_SkipsNodeModules(t *testing.T) {
	dir := t.TempDir()
	// 依赖目录里的命中不算数
	writeFile(t, dir, "node_modules/lib/index.js", "search search search")
	writeFile(t, dir, "app.js", "console.log('hello')")

	v := NewHeuristicVerifier(90)
	report, err := v.CheckParity(context.Background(), &model.Analysis{
		Features: []string{"search"},
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Checks[0].Score)
}

func TestHeuristicVerifier_MissingDir(t *testing.T) {
	v := NewHeuristicVerifier(90)
	report, err := v.CheckParity(context.Background(), &model.Analysis{
		Features: []string{"auth"},
	}, filepath.Join(t.TempDir(), "does-not-exist"))

	// WalkDir 对不存在的根目录会在回调里拿到 err，被跳过后得到空内容集
	if err != nil {
		assert.Nil(t, report)
		return
	}
	assert.Equal(t, 0, report.Overall)
}

func TestFeatureTokens(t *testing.T) {
	assert.Equal(t, []string{"api", "integration"}, featureTokens("api_integration"))
	assert.Equal(t, []string{"loading", "state"}, featureTokens("Loading-State"))
	// 短词被过滤
	assert.Empty(t, featureTokens("of to"))
}

func TestHitScore(t *testing.T) {
	assert.Equal(t, 0, hitScore(0))
	assert.Equal(t, 60, hitScore(1))
	assert.Equal(t, 100, hitScore(2))
	assert.Equal(t, 100, hitScore(10))
}
