package queue

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	time int64
	id   int
}

func (i item) PlaybackTime() int64 { return i.time }

func drain(q *Queue[item]) []item {
	var out []item
	for {
		it, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, it)
	}
}

func TestPopReturnsTimeOrder(t *testing.T) {
	q := New[item](0)
	rng := rand.New(rand.NewSource(7))
	for i := range 200 {
		q.Push(item{time: rng.Int63n(1000), id: i})
	}

	out := drain(q)
	require.Len(t, out, 200)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i-1].time, out[i].time)
	}
}

func TestEqualTimestampsKeepPushOrder(t *testing.T) {
	q := New[item](0)
	for i := range 10 {
		q.Push(item{time: 5, id: i})
	}
	q.Offer(item{time: 5, id: 10}, item{time: 5, id: 11})

	for i, it := range drain(q) {
		assert.Equal(t, i, it.id)
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := New[item](0)
	_, ok := q.Peek()
	assert.False(t, ok)

	q.Push(item{time: 3}, item{time: 1})
	it, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, int64(1), it.time)
	assert.Equal(t, 2, q.Len())
}

func TestNoItemReturnedTwice(t *testing.T) {
	q := New[item](0)
	q.Push(item{time: 1, id: 1})

	_, ok := q.Pop()
	assert.True(t, ok)
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestPopDue(t *testing.T) {
	q := New[item](0)
	q.Push(item{time: 100}, item{time: 200})

	_, ok := q.PopDue(99)
	assert.False(t, ok)

	it, ok := q.PopDue(100)
	require.True(t, ok)
	assert.Equal(t, int64(100), it.time)

	_, ok = q.PopDue(150)
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestPruneStaleRemovesExactlyExpired(t *testing.T) {
	q := New[item](0)
	for _, ts := range []int64{10, 40, 49, 50, 51, 90} {
		q.Push(item{time: ts})
	}

	// time + 50 < 100  <=>  time < 50
	removed := q.PruneStale(100, 50)
	assert.Equal(t, 3, removed)

	var times []int64
	for _, it := range drain(q) {
		times = append(times, it.time)
	}
	assert.Equal(t, []int64{50, 51, 90}, times)
}

func TestCapacityDropsOldest(t *testing.T) {
	q := New[item](3)
	for ts := range 5 {
		q.Push(item{time: int64(ts)})
	}

	stats := q.Stats()
	assert.Equal(t, 3, stats.Len)
	assert.Equal(t, uint64(2), stats.Dropped)

	it, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(2), it.time)
}

func TestOfferParksWhileLocked(t *testing.T) {
	q := New[item](0)

	q.mu.Lock()
	direct := q.Offer(item{time: 2, id: 2}, item{time: 1, id: 1})
	_, pruned := q.TryPruneStale(1000, 0)
	q.mu.Unlock()

	assert.False(t, direct)
	assert.False(t, pruned)
	assert.Equal(t, uint64(2), q.Stats().Deferred)

	out := drain(q)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].id)
	assert.Equal(t, 2, out[1].id)
}

func TestOfferGoesStraightInWhenFree(t *testing.T) {
	q := New[item](0)
	assert.True(t, q.Offer(item{time: 1}))
	n, ok := q.TryPruneStale(10, 0)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestClear(t *testing.T) {
	q := New[item](0)
	q.Push(item{time: 1})
	q.Clear()
	assert.Equal(t, 0, q.Len())
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const total = 5000
	q := New[item](0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range total {
			q.Offer(item{time: int64(i), id: i})
		}
	}()

	var got []item
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(got) < total {
			if it, ok := q.PopDue(int64(total)); ok {
				got = append(got, it)
			}
		}
	}()

	wg.Wait()
	<-done

	require.Len(t, got, total)
	seen := make(map[int]bool, total)
	for _, it := range got {
		assert.False(t, seen[it.id], "item %d returned twice", it.id)
		seen[it.id] = true
	}
	assert.Equal(t, 0, q.Len())
}
