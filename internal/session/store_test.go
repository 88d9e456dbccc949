package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/mmassist/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCreator is a test double for Creator.
type fakeCreator struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeCreator) CreateSession(ctx context.Context) (string, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return "thread_" + string(rune('a'+n-1)), nil
}

func newTestStore(t *testing.T, creator Creator, size int) *Store {
	t.Helper()
	s, err := NewStore(creator, size, logging.New(nil, "silent"))
	require.NoError(t, err)
	return s
}

func TestGetOrCreate_ReusesSessionForSameThread(t *testing.T) {
	creator := &fakeCreator{}
	s := newTestStore(t, creator, 0)

	first, err := s.GetOrCreate(context.Background(), "root-1")
	require.NoError(t, err)
	second, err := s.GetOrCreate(context.Background(), "root-1")
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "root-1", first.ThreadKey)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Equal(t, int32(1), creator.calls.Load())
}

func TestGetOrCreate_DistinctThreads(t *testing.T) {
	creator := &fakeCreator{}
	s := newTestStore(t, creator, 0)

	a, err := s.GetOrCreate(context.Background(), "root-1")
	require.NoError(t, err)
	b, err := s.GetOrCreate(context.Background(), "root-2")
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Equal(t, int32(2), creator.calls.Load())
	assert.Equal(t, 2, s.Len())
}

func TestGetOrCreate_ConcurrentSameThreadCreatesOnce(t *testing.T) {
	creator := &fakeCreator{delay: 20 * time.Millisecond}
	s := newTestStore(t, creator, 0)

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := s.GetOrCreate(context.Background(), "root-1")
			assert.NoError(t, err)
			ids[i] = sess.SessionID
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), creator.calls.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGetOrCreate_CreationError(t *testing.T) {
	creator := &fakeCreator{err: errors.New("503 service unavailable")}
	s := newTestStore(t, creator, 0)

	_, err := s.GetOrCreate(context.Background(), "root-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, creator.err)
	assert.Contains(t, err.Error(), "root-1")
	assert.Equal(t, 0, s.Len())

	// nothing was stored, so the next message retries
	creator.err = nil
	sess, err := s.GetOrCreate(context.Background(), "root-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, int32(2), creator.calls.Load())
}

func TestGetOrCreate_CancelledCallerDoesNotFailOthers(t *testing.T) {
	creator := &fakeCreator{delay: 50 * time.Millisecond}
	s := newTestStore(t, creator, 0)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.GetOrCreate(ctx, "root-1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return creator.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		sess string
		err  error
	}
	second := make(chan result, 1)
	go func() {
		sess, err := s.GetOrCreate(context.Background(), "root-1")
		second <- result{sess.SessionID, err}
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)

	got := <-second
	require.NoError(t, got.err)
	assert.NotEmpty(t, got.sess)
	assert.Equal(t, int32(1), creator.calls.Load())
	assert.Equal(t, 1, s.Len())
}

func TestGetOrCreate_EmptyKey(t *testing.T) {
	creator := &fakeCreator{}
	s := newTestStore(t, creator, 0)

	_, err := s.GetOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyThreadKey)
	assert.Equal(t, int32(0), creator.calls.Load())
}

func TestGetOrCreate_EvictsLeastRecentlyUsed(t *testing.T) {
	creator := &fakeCreator{}
	s := newTestStore(t, creator, 2)

	for _, key := range []string{"r1", "r2", "r3"} {
		_, err := s.GetOrCreate(context.Background(), key)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Len())

	_, err := s.GetOrCreate(context.Background(), "r3")
	require.NoError(t, err)
	assert.Equal(t, int32(3), creator.calls.Load())

	_, err = s.GetOrCreate(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, int32(4), creator.calls.Load())
}
