package parallel_test

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"churn/lib/utils/parallel"

	"github.com/stretchr/testify/assert"
)

func square(x int) (int, error) {
	return x * x, nil
}

func squareSleep(x int) (int, error) {
	time.Sleep(100 * time.Millisecond)
	return x * x, nil
}

func TestParallelProcessing(t *testing.T) {
	inputs := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	maxWorkers := runtime.GOMAXPROCS(0)
	results, err := parallel.Process(context.Background(), maxWorkers, inputs, square)
	assert.NoError(t, err)
	expected := []int{1, 4, 9, 16, 25, 36, 49, 64, 81, 100}
	assert.Equal(t, expected, results)

	start := time.Now()
	results, err = parallel.Process(context.Background(), len(inputs), inputs, squareSleep)
	elapsed := time.Since(start)
	assert.NoError(t, err)
	assert.Equal(t, expected, results)
	assert.Less(t, elapsed, time.Duration(len(inputs))*100*time.Millisecond)
}

func TestProcessEmptyInput(t *testing.T) {
	results, err := parallel.Process(context.Background(), 4, []int{}, square)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestProcessSingleWorker(t *testing.T) {
	var inflight, peak int32
	f := func(x int) (int, error) {
		n := atomic.AddInt32(&inflight, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return x, nil
	}
	results, err := parallel.Process(context.Background(), 1, []int{1, 2, 3, 4}, f)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, results)
	assert.Equal(t, int32(1), peak)
}

func TestProcessError(t *testing.T) {
	f := func(x int) (int, error) {
		if x == 3 {
			return 0, fmt.Errorf("bad input: %d", x)
		}
		return x, nil
	}
	_, err := parallel.Process(context.Background(), 2, []int{1, 2, 3, 4, 5}, f)
	assert.EqualError(t, err, "bad input: 3")
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := parallel.Process(ctx, 2, []int{1, 2, 3}, squareSleep)
	assert.ErrorIs(t, err, context.Canceled)
}
