package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_WeightedAverage(t *testing.T) {
	// landing_page 权重 10 满分，auth 权重 9 零分 → round(100*10/19) = 53
	checks := []Check{
		{Feature: "landing_page", Score: 100},
		{Feature: "auth", Score: 0},
	}

	assert.Equal(t, 53, Aggregate(checks, FeatureWeights))
}

func TestAggregate_EmptyChecks(t *testing.T) {
	assert.Equal(t, 0, Aggregate(nil, FeatureWeights))
	assert.Equal(t, 0, Aggregate([]Check{}, FeatureWeights))
}

func TestAggregate_DefaultWeight(t *testing.T) {
	// 未列入权重表的特征按兜底权重 5 参与
	checks := []Check{
		{Feature: "landing_page", Score: 100}, // 权重 10
		{Feature: "unknown_feature", Score: 0},
	}

	assert.Equal(t, 67, Aggregate(checks, FeatureWeights)) // round(100*10/15)
}

func TestAggregate_ExplicitWeightOverride(t *testing.T) {
	checks := []Check{
		{Feature: "auth", Score: 100, Weight: 1},
		{Feature: "crud", Score: 0, Weight: 1},
	}

	assert.Equal(t, 50, Aggregate(checks, FeatureWeights))
}

func TestAggregate_AllPerfect(t *testing.T) {
	checks := []Check{
		{Feature: "auth", Score: 100},
		{Feature: "crud", Score: 100},
		{Feature: "search", Score: 100},
	}

	assert.Equal(t, 100, Aggregate(checks, FeatureWeights))
}

func TestAggregate_Monotonic(t *testing.T) {
	base := []Check{
		{Feature: "auth", Score: 50},
		{Feature: "crud", Score: 50},
	}
	improved := []Check{
		{Feature: "auth", Score: 80},
		{Feature: "crud", Score: 50},
	}

	assert.Greater(t, Aggregate(improved, FeatureWeights), Aggregate(base, FeatureWeights))
}

func TestNewReport_PassesThreshold(t *testing.T) {
	checks := []Check{
		{Feature: "auth", Score: 100},
		{Feature: "crud", Score: 90},
	}

	report := NewReport(PhasePreDeploy, checks, FeatureWeights, ParityThreshold)

	assert.Equal(t, PhasePreDeploy, report.Phase)
	assert.True(t, report.PassesThreshold)
	assert.GreaterOrEqual(t, report.Overall, ParityThreshold)
}

func TestNewReport_EmptyChecksNeverPass(t *testing.T) {
	// 空检查集聚合为 0 且不视为达标，阈值为 0 也一样
	report := NewReport(PhasePreDeploy, nil, FeatureWeights, 0)

	assert.Equal(t, 0, report.Overall)
	assert.False(t, report.PassesThreshold)
}

func TestNewReport_MissingFeatures(t *testing.T) {
	checks := []Check{
		{Feature: "auth", Score: 100},
		{Feature: "payments", Score: 0},
		{Feature: "search", Score: 0},
	}

	report := NewReport(PhasePreDeploy, checks, FeatureWeights, ParityThreshold)

	assert.ElementsMatch(t, []string{"payments", "search"}, report.MissingFeatures)
	assert.False(t, report.PassesThreshold)
}

func TestNewReport_PostDeployDifferentiation(t *testing.T) {
	checks := []Check{
		{Feature: "name_distinct", Score: 100, Weight: 10},
		{Feature: "own_branding", Score: 0, Weight: 5},
	}

	report := NewReport(PhasePostDeploy, checks, nil, DifferentiationThreshold)

	assert.Equal(t, 67, report.Overall) // round(100*10/15)
	assert.True(t, report.PassesThreshold)
}
