package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chatshop/pkg/logger"
)

func newDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := New(context.Background(), logger.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d
}

func TestTasksForOneKeyRunInSubmissionOrder(t *testing.T) {
	d := newDispatcher(t)
	var mu sync.Mutex
	var seen []int
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, d.Submit("user", func(context.Context) {
			defer wg.Done()
			mu.Lock()
			seen = append(seen, i)
			mu.Unlock()
		}))
	}
	wg.Wait()
	for i, v := range seen {
		require.Equal(t, i, v)
	}
}

// A select followed immediately by an add must always see the selection.
func TestSelectThenAddIsSerialized(t *testing.T) {
	d := newDispatcher(t)
	for round := 0; round < 100; round++ {
		var selected, added string
		done := make(chan struct{})
		product := fmt.Sprintf("p%d", round)
		require.NoError(t, d.Submit("user", func(context.Context) {
			time.Sleep(time.Microsecond)
			selected = product
		}))
		require.NoError(t, d.Submit("user", func(context.Context) {
			added = selected
			close(done)
		}))
		<-done
		require.Equal(t, product, added)
	}
}

func TestDistinctKeysRunInParallel(t *testing.T) {
	d := newDispatcher(t)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Submit("slow", func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	done := make(chan struct{})
	require.NoError(t, d.Submit("fast", func(context.Context) { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("busy key blocked another key")
	}
	close(release)
}

func TestPanicIsIsolatedToTask(t *testing.T) {
	d := newDispatcher(t)
	done := make(chan struct{})
	require.NoError(t, d.Submit("user", func(context.Context) { panic("boom") }))
	require.NoError(t, d.Submit("user", func(context.Context) { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task after a panic never ran")
	}
}

func TestIdleMailboxesAreDropped(t *testing.T) {
	d := newDispatcher(t)
	done := make(chan struct{})
	require.NoError(t, d.Submit("user", func(context.Context) { close(done) }))
	<-done
	assert.Eventually(t, func() bool { return d.Active() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMaxPendingRejectsOverflow(t *testing.T) {
	d := newDispatcher(t, WithMaxPending(1))
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Submit("user", func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, d.Submit("user", func(context.Context) {}))
	assert.ErrorIs(t, d.Submit("user", func(context.Context) {}), ErrBusy)
	close(release)
}

func TestCloseDrainsAndRejects(t *testing.T) {
	d, err := New(context.Background(), logger.Nop())
	require.NoError(t, err)
	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Submit(fmt.Sprintf("u%d", i%3), func(context.Context) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			ran++
			mu.Unlock()
		}))
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 10, ran)
	assert.ErrorIs(t, d.Submit("u0", func(context.Context) {}), ErrClosed)
}

func TestCloseHonorsDeadline(t *testing.T) {
	d, err := New(context.Background(), logger.Nop())
	require.NoError(t, err)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, d.Submit("user", func(context.Context) { <-release }))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(d.Close(ctx), context.DeadlineExceeded))
}

func TestSubmitRejectsNilTask(t *testing.T) {
	d := newDispatcher(t)
	assert.Error(t, d.Submit("user", nil))
}
