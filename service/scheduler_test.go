package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestSchedulerBoundsParallelism(t *testing.T) {
	s := NewScheduler(3)

	var (
		current int32
		peak    int32
		mu      sync.Mutex
		ran     []string
	)
	var tasks []Task
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("task%d", i)
		tasks = append(tasks, Task{Name: name, Run: func(context.Context) error {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return nil
		}})
	}

	require.NoError(t, s.Run(context.Background(), tasks...))
	assert.Len(t, ran, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestSchedulerCollectsSiblingFailures(t *testing.T) {
	s := NewScheduler(2)
	var done int32
	tasks := []Task{
		{Name: "peer1", Run: func(context.Context) error { return errors.New("boom") }},
		{Name: "peer2", Run: func(context.Context) error { atomic.AddInt32(&done, 1); return nil }},
		{Name: "peer3", Run: func(context.Context) error { return errors.New("bang") }},
		{Name: "peer4", Run: func(context.Context) error { atomic.AddInt32(&done, 1); return nil }},
	}

	err := s.Run(context.Background(), tasks...)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&done))

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	msg := err.Error()
	assert.Contains(t, msg, "peer1: boom")
	assert.Contains(t, msg, "peer3: bang")
}

func TestSchedulerDefaultsWorkers(t *testing.T) {
	assert.Equal(t, DefaultWorkers, NewScheduler(0).Workers())
	assert.Equal(t, 5, NewScheduler(5).Workers())
	assert.NoError(t, NewScheduler(1).Run(context.Background()))
}
