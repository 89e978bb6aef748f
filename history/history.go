// Package history keeps a short-lived, in-memory record of broadcast traffic
// so late joiners can catch up with the HISTORY command. Entries age out on a
// TTL and the buffer is capacity-bounded; nothing survives a restart.
package history

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// DefaultTTL is how long a broadcast stays retrievable.
	DefaultTTL = 5 * time.Minute
	// DefaultCapacity bounds the number of retained broadcasts.
	DefaultCapacity = 100
)

// Entry is one retained broadcast. Seq orders entries by send time.
type Entry struct {
	Seq    uint64
	Sender string
	Text   string
}

// Log is a TTL-bounded buffer of recent broadcast messages. It is safe for
// concurrent use by multiple goroutines.
type Log struct {
	cache    *cache.Cache
	capacity int
	seq      atomic.Uint64
	pruneMu  sync.Mutex
}

// NewLog creates a Log retaining entries for ttl, holding at most capacity
// entries. Non-positive arguments select the package defaults.
func NewLog(ttl time.Duration, capacity int) *Log {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Log{
		cache:    cache.New(ttl, ttl),
		capacity: capacity,
	}
}

// Append records one broadcast. When the buffer is full the oldest retained
// entry is dropped.
func (l *Log) Append(sender, text string) {
	seq := l.seq.Add(1)
	l.cache.SetDefault(strconv.FormatUint(seq, 10), Entry{Seq: seq, Sender: sender, Text: text})
	l.prune()
}

// Recent returns the retained entries in send order.
func (l *Log) Recent() []Entry {
	items := l.cache.Items()
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, item.Object.(Entry))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	return l.cache.ItemCount()
}

// prune evicts oldest entries until the buffer fits its capacity.
func (l *Log) prune() {
	l.pruneMu.Lock()
	defer l.pruneMu.Unlock()

	for l.cache.ItemCount() > l.capacity {
		var oldest uint64
		first := true
		for _, item := range l.cache.Items() {
			e := item.Object.(Entry)
			if first || e.Seq < oldest {
				oldest = e.Seq
				first = false
			}
		}

		if first {
			return
		}

		l.cache.Delete(strconv.FormatUint(oldest, 10))
	}
}
