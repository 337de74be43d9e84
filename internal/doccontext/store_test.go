package doccontext

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStore_Empty(t *testing.T) {
	s := NewStore()
	assert.False(t, s.HasContext())
	assert.Equal(t, Context{}, s.Get())
	assert.Zero(t, s.Generation())
}

func TestStore_UpdateReplacesWholesale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(fixedClock(now)))

	s.Update("doc-a", "Alpha")
	got := s.Get()
	assert.Equal(t, Context{DocumentID: "doc-a", DocumentName: "Alpha", LastUpdateTime: now}, got)
	assert.True(t, got.HasContext())

	s.Update("doc-b", "")
	assert.Equal(t, "", s.Get().DocumentName, "name must not carry over")
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Update("doc-a", "Alpha")

	snap := s.Get()
	snap.DocumentID = "mutated"
	assert.Equal(t, "doc-a", s.Get().DocumentID)
}

func TestStore_NotifiesOnlyOnDocumentChange(t *testing.T) {
	s := NewStore()
	var got []string
	s.Subscribe(func(c Context) { got = append(got, c.DocumentID) })

	s.Update("doc-a", "Alpha")
	s.Update("doc-a", "Alpha renamed")
	s.Update("doc-a", "Alpha")
	s.Update("doc-b", "Beta")
	s.Update("doc-b", "Beta")
	s.Update("", "")
	s.Update("", "")
	s.Update("doc-a", "Alpha")

	assert.Equal(t, []string{"doc-a", "doc-b", "", "doc-a"}, got)
	assert.Equal(t, uint64(4), s.Generation())
	assert.Equal(t, "Alpha", s.Get().DocumentName)

	snap, gen := s.Snapshot()
	assert.Equal(t, s.Get(), snap)
	assert.Equal(t, uint64(4), gen)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore()
	var first, second int
	unsub := s.Subscribe(func(Context) { first++ })
	s.Subscribe(func(Context) { second++ })

	s.Update("doc-a", "")
	unsub()
	unsub()
	s.Update("doc-b", "")

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestStore_ObserverCanRead(t *testing.T) {
	s := NewStore()
	var seen Context
	s.Subscribe(func(c Context) {
		seen = s.Get()
		require.Equal(t, c, seen)
	})
	s.Update("doc-a", "Alpha")
	assert.Equal(t, "doc-a", seen.DocumentID)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	notified := 0
	s.Subscribe(func(Context) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.Update("doc-a", "")
			} else {
				s.Update("doc-b", "")
			}
			_ = s.Get()
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int(s.Generation()), notified)
}
