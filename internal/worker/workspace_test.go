package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobWorkspaceLayout(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/data/clones", "job_3_notion-abc123"),
		JobWorkspace("/data/clones", 3, "notion-abc123"))

	assert.Equal(t,
		filepath.Join("/data/clones", "job_3_notion-abc123", "v2"),
		IterationDir("/data/clones", 3, "notion-abc123", 2))
}

func TestEnsureWorkspace(t *testing.T) {
	base := t.TempDir()

	dir, err := EnsureWorkspace(base, 1, "app")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCleanupWorkspace(t *testing.T) {
	base := t.TempDir()

	dir, err := EnsureWorkspace(base, 1, "app")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>"), 0o644))

	require.NoError(t, CleanupWorkspace(base, 1, "app"))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupWorkspace_RefusesEscape(t *testing.T) {
	// 恶意 slug 不能把删除目标带出工作目录
	err := CleanupWorkspace(t.TempDir(), 1, "../../../etc")
	assert.Error(t, err)
}

func TestCleanupWorkspace_MissingDirIsFine(t *testing.T) {
	assert.NoError(t, CleanupWorkspace(t.TempDir(), 99, "never-created"))
}
