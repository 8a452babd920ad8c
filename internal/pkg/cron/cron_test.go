package cron

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/repository"
	"github.com/qs3c/clone_gen_server/internal/testutil"
)

func TestCleanupWorkspaces(t *testing.T) {
	dir := t.TempDir()

	oldDir := filepath.Join(dir, "job_1_old-app")
	freshDir := filepath.Join(dir, "job_2_fresh-app")
	otherDir := filepath.Join(dir, "unrelated")
	require.NoError(t, os.MkdirAll(oldDir, 0o755))
	require.NoError(t, os.MkdirAll(freshDir, 0o755))
	require.NoError(t, os.MkdirAll(otherDir, 0o755))

	// 把旧目录的修改时间拨回两天前
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldDir, past, past))
	require.NoError(t, os.Chtimes(otherDir, past, past))

	svc := NewService(nil, nil, dir, 24, 0)
	svc.CleanupAll()

	_, err := os.Stat(oldDir)
	assert.True(t, os.IsNotExist(err), "expired workspace should be removed")

	_, err = os.Stat(freshDir)
	assert.NoError(t, err, "fresh workspace should survive")

	// 非 job_ 前缀的目录即使过期也不动
	_, err = os.Stat(otherDir)
	assert.NoError(t, err)
}

func TestCleanupWorkspaces_MissingBaseDir(t *testing.T) {
	svc := NewService(nil, nil, filepath.Join(t.TempDir(), "gone"), 24, 0)
	// 目录不存在时静默跳过
	svc.CleanupAll()
}

func TestPruneTerminalJobs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	jobRepo := repository.NewJobRepository(db)
	iterRepo := repository.NewIterationRepository(db)

	oldDone := testutil.TestCloneJob(t, db, testutil.WithStatus(model.StatusComplete))
	testutil.TestIteration(t, db, oldDone.ID, 1, 92)
	oldRunning := testutil.TestCloneJob(t, db, testutil.WithStatus(model.StatusGenerating))
	freshDone := testutil.TestCloneJob(t, db, testutil.WithStatus(model.StatusComplete))

	// 把前两个任务的更新时间拨回保留期之外
	cutoff := time.Now().AddDate(0, 0, -40)
	require.NoError(t, db.Exec(
		"UPDATE clone_jobs SET updated_at = ? WHERE id IN (?, ?)",
		cutoff, oldDone.ID, oldRunning.ID,
	).Error)

	svc := NewService(jobRepo, iterRepo, "", 24, 30)
	svc.CleanupAll()

	_, err := jobRepo.GetByID(oldDone.ID)
	assert.Error(t, err, "expired terminal job should be pruned")

	count, err := iterRepo.CountByJobID(oldDone.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "iterations should be pruned with the job")

	// 运行中的任务就算过期也保留
	_, err = jobRepo.GetByID(oldRunning.ID)
	assert.NoError(t, err)

	// 保留期内的终态任务保留
	_, err = jobRepo.GetByID(freshDone.ID)
	assert.NoError(t, err)
}

func TestPruneTerminalJobs_Disabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	jobRepo := repository.NewJobRepository(db)
	job := testutil.TestCloneJob(t, db, testutil.WithStatus(model.StatusFailed))

	cutoff := time.Now().AddDate(0, 0, -400)
	require.NoError(t, db.Exec("UPDATE clone_jobs SET updated_at = ? WHERE id = ?", cutoff, job.ID).Error)

	// jobRetainDays = 0 表示不清理历史任务
	svc := NewService(jobRepo, repository.NewIterationRepository(db), "", 24, 0)
	svc.CleanupAll()

	_, err := jobRepo.GetByID(job.ID)
	assert.NoError(t, err)
}
