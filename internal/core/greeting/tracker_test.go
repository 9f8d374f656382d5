package greeting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	days  map[string]string
	calls int
	err   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{days: make(map[string]string)}
}

func (m *memoryStore) MarkGreeted(_ context.Context, key string, day time.Time) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	d := day.Format("2006-01-02")
	if m.days[key] == d {
		return true, nil
	}
	m.days[key] = d
	return false, nil
}

var wib = time.FixedZone("WIB", 7*60*60)

func TestTracker_FirstCallMarks(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	tr := NewTracker(store, wib, nil)
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, wib)

	greeted, err := tr.CheckAndMarkGreeted(context.Background(), "6281234567890", now)
	require.NoError(t, err)
	assert.False(t, greeted)

	greeted, err = tr.CheckAndMarkGreeted(context.Background(), "6281234567890", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, greeted)
	assert.Equal(t, 1, store.calls, "second check should be served from the day cache")
}

func TestTracker_NextDayGreetsAgain(t *testing.T) {
	t.Parallel()

	tr := NewTracker(newMemoryStore(), wib, nil)
	day1 := time.Date(2026, 10, 17, 23, 0, 0, 0, wib)

	greeted, err := tr.CheckAndMarkGreeted(context.Background(), "628111", day1)
	require.NoError(t, err)
	assert.False(t, greeted)

	greeted, err = tr.CheckAndMarkGreeted(context.Background(), "628111", day1.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, greeted)
}

func TestTracker_ResetKeepsPersistedDay(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	tr := NewTracker(store, wib, nil)
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, wib)

	_, err := tr.CheckAndMarkGreeted(context.Background(), "628111", now)
	require.NoError(t, err)
	require.NoError(t, tr.ResetAll())

	greeted, err := tr.CheckAndMarkGreeted(context.Background(), "628111", now)
	require.NoError(t, err)
	assert.True(t, greeted, "store still holds today's record")
}

func TestTracker_StoreError(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.err = errors.New("db down")
	tr := NewTracker(store, wib, nil)

	_, err := tr.CheckAndMarkGreeted(context.Background(), "628111", time.Now())
	require.Error(t, err)

	store.err = nil
	greeted, err := tr.CheckAndMarkGreeted(context.Background(), "628111", time.Now())
	require.NoError(t, err)
	assert.False(t, greeted, "failed attempts must not be cached")
}

func TestTracker_InvalidKey(t *testing.T) {
	t.Parallel()

	tr := NewTracker(nil, wib, nil)
	_, err := tr.CheckAndMarkGreeted(context.Background(), "  ", time.Now())
	assert.ErrorIs(t, err, ErrInvalidKey)
}
