package manifest

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := Open(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	return rec
}

func TestStageLifecycle(t *testing.T) {
	rec := openTestRecorder(t)

	st := rec.Stage("metadyn")
	st.Job("mtd0000_00", nil)
	st.Job("mtd0000_01", errors.New("not converged"))
	st.Job("mtd0010_00", nil)
	st.End(nil)

	stages, err := rec.Stages()
	require.NoError(t, err)
	require.Len(t, stages, 1)

	got := stages[0]
	assert.Equal(t, "metadyn", got.Name)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 3, got.Jobs)
	assert.Equal(t, 1, got.Failures)
	require.NotNil(t, got.FinishedAt)

	jobs, err := rec.Jobs(got.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	byName := make(map[string]JobRun)
	for _, j := range jobs {
		byName[j.Name] = j
	}
	assert.Equal(t, StatusCompleted, byName["mtd0000_00"].Status)
	assert.Equal(t, StatusFailed, byName["mtd0000_01"].Status)
	assert.Contains(t, byName["mtd0000_01"].Error, "not converged")
}

func TestStageFailure(t *testing.T) {
	rec := openTestRecorder(t)

	st := rec.Stage("reactions")
	st.End(errors.New("lane 3 forward: not converged"))

	stages, err := rec.Stages()
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, StatusFailed, stages[0].Status)
	assert.Contains(t, stages[0].Error, "lane 3")
}

func TestConcurrentJobRecording(t *testing.T) {
	rec := openTestRecorder(t)
	st := rec.Stage("refine")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%4 == 0 {
				err = errors.New("boom")
			}
			st.Job("job", err)
		}(i)
	}
	wg.Wait()
	st.End(nil)

	stages, err := rec.Stages()
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, 20, stages[0].Jobs)
	assert.Equal(t, 5, stages[0].Failures)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder

	st := rec.Stage("init")
	st.Job("anything", nil)
	st.End(nil)

	stages, err := rec.Stages()
	assert.NoError(t, err)
	assert.Empty(t, stages)
}

func TestMultipleStages(t *testing.T) {
	rec := openTestRecorder(t)

	for _, name := range []string{"init", "metadyn", "refine", "reactions"} {
		st := rec.Stage(name)
		st.End(nil)
	}

	stages, err := rec.Stages()
	require.NoError(t, err)
	require.Len(t, stages, 4)
}
