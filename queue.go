package locktimer

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

const (
	maxQueueShards     = 64
	minSamplesPerShard = 4
)

var (
	// spillConfig makes one pass over the other shards when the producer's
	// own shard is full, without sleeping.
	spillConfig = ring.WriteConfig{
		Strategy:    ring.NextShard,
		MaxRetries:  1,
		MaxBackoffs: 1,
	}

	// waitConfig is used under OverflowBlock: every shard, then sleeps growing
	// from 100µs to 10ms. The writer gives up after MaxBackoffs sleeps so the
	// caller can check whether the sink was closed meanwhile.
	waitConfig = ring.WriteConfig{
		Strategy:           ring.Hybrid,
		MaxRetries:         1,
		BackoffDuration:    100 * time.Microsecond,
		MaxBackoffDuration: 10 * time.Millisecond,
		BackoffMultiplier:  2,
		MaxBackoffs:        10,
	}
)

// sampleQueue is the bounded multi-producer single-consumer queue between
// releasing goroutines and the flush loop. A producer writes to the shard
// picked by its goroutine id and spills into the other shards once that one
// is full, so a single goroutine can fill the whole capacity. Samples stay
// FIFO per goroutine as long as its own shard has room.
type sampleQueue struct {
	ring     *ring.ShardedRing
	capacity int

	// Number of successful writes not yet read. Taken as the snapshot size at
	// the start of a drain, so samples arriving during a drain wait for the
	// next one.
	pending atomic.Int64
}

func newSampleQueue(capacity int) (*sampleQueue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: queue capacity %d", ErrInvalidConfig, capacity)
	}
	shards := nextPowerOfTwo(uint64(runtime.GOMAXPROCS(0)))
	if shards > maxQueueShards {
		shards = maxQueueShards
	}
	size := nextPowerOfTwo(uint64(capacity))
	if size < shards*minSamplesPerShard {
		size = shards * minSamplesPerShard
	}
	r, err := ring.NewShardedRing(size, shards)
	if err != nil {
		return nil, fmt.Errorf("create sample queue: %w", err)
	}
	return &sampleQueue{ring: r, capacity: int(r.Cap())}, nil
}

// push never blocks. It returns false when every shard is full.
func (q *sampleQueue) push(producerID uint64, s *Sample) bool {
	if !q.ring.Write(producerID, s) && !ring.NewWriter(q.ring, producerID, spillConfig).Write(s) {
		return false
	}
	q.pending.Add(1)
	return true
}

// pushWait sleeps with growing backoff until s fits or done reports true.
func (q *sampleQueue) pushWait(producerID uint64, s *Sample, done func() bool) bool {
	w := ring.NewWriter(q.ring, producerID, waitConfig)
	for !done() {
		if w.Write(s) {
			q.pending.Add(1)
			return true
		}
		w.Reset()
	}
	return false
}

// len is approximate while producers are active.
func (q *sampleQueue) len() int {
	if n := q.pending.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// drain hands at most len() samples to fn, in queue order, and returns how
// many it handed over. Only the flush loop may call it.
func (q *sampleQueue) drain(fn func(*Sample)) int {
	n := q.pending.Load()
	var done int64
	for done < n {
		v, ok := q.ring.TryRead()
		if !ok {
			break
		}
		q.pending.Add(-1)
		done++
		if s, ok := v.(*Sample); ok {
			fn(s)
		}
	}
	return int(done)
}

func nextPowerOfTwo(v uint64) uint64 {
	n := uint64(1)
	for n < v {
		n <<= 1
	}
	return n
}
