package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPushPopOrder(t *testing.T) {
	m := New[int]()
	for i := 0; i < 100; i++ {
		require.True(t, m.Push(i))
	}

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		got, err := m.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	assert.Equal(t, 0, m.Len())
}

func TestPopBlocksUntilPush(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := New[string]()
	done := make(chan string)

	go func() {
		v, err := m.Pop(context.Background())
		if err != nil {
			done <- err.Error()
			return
		}
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	m.Push("hello")

	select {
	case v := <-done:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestCloseDrainsThenErrors(t *testing.T) {
	m := New[int]()
	m.Push(1)
	m.Push(2)
	m.Close()

	assert.False(t, m.Push(3), "push after close should be rejected")

	ctx := context.Background()
	v, err := m.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = m.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = m.Pop(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWakesBlockedPop(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := New[int]()
	errCh := make(chan error)
	go func() {
		_, err := m.Pop(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake Pop")
	}
}

func TestPopHonorsContext(t *testing.T) {
	m := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	m := New[[2]int]()
	const producers, perProducer = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.Push([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()
	m.Close()

	last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	ctx := context.Background()
	for {
		item, err := m.Pop(ctx)
		if err != nil {
			break
		}
		assert.Greater(t, item[1], last[item[0]])
		last[item[0]] = item[1]
	}
	for p := 0; p < producers; p++ {
		assert.Equal(t, perProducer-1, last[p])
	}
}
