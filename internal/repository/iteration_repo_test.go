package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/clone_gen_server/internal/testutil"
)

func TestIterationRepository_ListByJobID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	repo := NewIterationRepository(db)

	job := testutil.TestCloneJob(t, db)
	other := testutil.TestCloneJob(t, db)

	// 乱序插入，读取时按版本升序
	testutil.TestIteration(t, db, job.ID, 2, 70)
	testutil.TestIteration(t, db, job.ID, 1, 40)
	testutil.TestIteration(t, db, other.ID, 1, 90)

	records, err := repo.ListByJobID(job.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Version)
	assert.Equal(t, 2, records[1].Version)
	assert.Equal(t, 40, records[0].ParityScore)
}

func TestIterationRepository_CountByJobID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	repo := NewIterationRepository(db)

	job := testutil.TestCloneJob(t, db)
	testutil.TestIteration(t, db, job.ID, 1, 40)
	testutil.TestIteration(t, db, job.ID, 2, 70)

	count, err := repo.CountByJobID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIterationRepository_DeleteByJobID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	repo := NewIterationRepository(db)

	job := testutil.TestCloneJob(t, db)
	keep := testutil.TestCloneJob(t, db)
	testutil.TestIteration(t, db, job.ID, 1, 40)
	testutil.TestIteration(t, db, keep.ID, 1, 90)

	require.NoError(t, repo.DeleteByJobID(job.ID))

	count, _ := repo.CountByJobID(job.ID)
	assert.Equal(t, int64(0), count)
	count, _ = repo.CountByJobID(keep.ID)
	assert.Equal(t, int64(1), count)
}
