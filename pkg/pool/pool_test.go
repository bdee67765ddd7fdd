package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intTask struct {
	value int
	err   error
	delay time.Duration
	body  func()
}

func (t *intTask) Execute(ctx context.Context) (int, error) {
	if t.body != nil {
		t.body()
	}
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	return t.value, t.err
}

func TestRunPreservesSubmissionOrder(t *testing.T) {
	var tasks []Task[int]
	for i := 0; i < 20; i++ {
		// Later tasks finish first, results must still come back in
		// submission order.
		tasks = append(tasks, &intTask{value: i, delay: time.Duration(20-i) * time.Millisecond})
	}

	results := Run(context.Background(), 4, tasks)
	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, i, r.Value)
		assert.NoError(t, r.Err)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const workers = 3
	var current, peak atomic.Int32

	var tasks []Task[int]
	for i := 0; i < 30; i++ {
		tasks = append(tasks, &intTask{
			delay: 5 * time.Millisecond,
			body: func() {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
			},
		})
	}
	// current is decremented via the done hook, after Execute returns.
	results := Run(context.Background(), workers, tasks, WithOnDone(func(int, error) {
		current.Add(-1)
	}))

	require.Len(t, results, 30)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestPartition(t *testing.T) {
	boom := errors.New("boom")
	var tasks []Task[int]
	for i := 0; i < 7; i++ {
		task := &intTask{value: i}
		if i%3 == 0 {
			task.err = fmt.Errorf("task %d: %w", i, boom)
		}
		tasks = append(tasks, task)
	}

	results := Run(context.Background(), 2, tasks)
	converged, errored := Partition(results)

	// 0, 3 and 6 fail, the rest converge; together they cover all 7.
	assert.Equal(t, []int{1, 2, 4, 5}, converged)
	require.Len(t, errored, 3)
	assert.Len(t, converged, len(tasks)-len(errored))
	for _, r := range errored {
		assert.ErrorIs(t, r.Err, boom)
		assert.Zero(t, r.Index%3)
	}
}

func TestFirstError(t *testing.T) {
	first := errors.New("first")
	later := errors.New("later")
	tasks := []Task[int]{
		&intTask{value: 0},
		&intTask{err: first, delay: 10 * time.Millisecond},
		&intTask{err: later},
	}

	results := Run(context.Background(), 3, tasks)
	// Fail-fast picks the earliest submitted failure, not the first to
	// finish.
	assert.ErrorIs(t, FirstError(results), first)

	assert.NoError(t, FirstError([]Result[int]{{Value: 1}, {Value: 2}}))
}

func TestRunRecoversPanics(t *testing.T) {
	tasks := []Task[int]{
		&intTask{value: 1},
		&intTask{body: func() { panic("engine exploded") }},
	}

	results := Run(context.Background(), 2, tasks)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorContains(t, results[1].Err, "panic")
	assert.ErrorContains(t, results[1].Err, "engine exploded")
}

func TestOnDoneHook(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task[int]{
		&intTask{value: 1},
		&intTask{err: boom},
		&intTask{value: 3},
	}

	var mu sync.Mutex
	seen := make(map[int]error)
	Run(context.Background(), 2, tasks, WithOnDone(func(i int, err error) {
		mu.Lock()
		seen[i] = err
		mu.Unlock()
	}))

	require.Len(t, seen, 3)
	assert.NoError(t, seen[0])
	assert.ErrorIs(t, seen[1], boom)
	assert.NoError(t, seen[2])
}

func TestRunWithZeroWorkers(t *testing.T) {
	results := Run(context.Background(), 0, []Task[int]{&intTask{value: 9}})
	require.Len(t, results, 1)
	assert.Equal(t, 9, results[0].Value)
}

func TestRunEmptyBatch(t *testing.T) {
	assert.Empty(t, Run[int](context.Background(), 4, nil))
}
