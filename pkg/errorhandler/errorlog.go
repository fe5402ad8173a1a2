package errorhandler

import (
	"sync"
	"time"
)

const (
	// DefaultLogCapacity bounds the in-memory error log.
	DefaultLogCapacity = 1000

	recentErrorsLimit = 10
)

// errorLog is a fixed-capacity ring buffer; the oldest entries are evicted first.
type errorLog struct {
	mu      sync.RWMutex
	entries []*WorkflowError
	start   int
	size    int
}

func newErrorLog(capacity int) *errorLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}

	return &errorLog{entries: make([]*WorkflowError, capacity)}
}

func (l *errorLog) append(we *WorkflowError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.entries)

	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = we
		l.size++

		return
	}

	l.entries[l.start] = we
	l.start = (l.start + 1) % capacity
}

// snapshot returns copies of the entries accepted by keep, oldest first.
func (l *errorLog) snapshot(keep func(*WorkflowError) bool) []*WorkflowError {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*WorkflowError, 0, l.size)

	for i := range l.size {
		we := l.entries[(l.start+i)%len(l.entries)]
		if keep == nil || keep(we) {
			out = append(out, we.clone())
		}
	}

	return out
}

func (l *errorLog) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.entries)
	l.start = 0
	l.size = 0
}

func (l *errorLog) count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.size
}

// TimeRange bounds error statistics. A zero From or To leaves that side open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r *TimeRange) contains(t time.Time) bool {
	if r == nil {
		return true
	}

	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}

	if !r.To.IsZero() && t.After(r.To) {
		return false
	}

	return true
}

// Stats summarizes logged errors.
type Stats struct {
	Total          int               `json:"total"`
	ByType         map[ErrorType]int `json:"byType"`
	BySeverity     map[Severity]int  `json:"bySeverity"`
	ByNode         map[string]int    `json:"byNode"`
	RetryableCount int               `json:"retryableCount"`
	// RecentErrors holds up to the last 10 errors, newest first.
	RecentErrors []*WorkflowError `json:"recentErrors"`
}

func computeStats(entries []*WorkflowError) Stats {
	stats := Stats{
		Total:      len(entries),
		ByType:     make(map[ErrorType]int),
		BySeverity: make(map[Severity]int),
		ByNode:     make(map[string]int),
	}

	for _, we := range entries {
		stats.ByType[we.Type]++
		stats.BySeverity[we.Severity]++

		if node := nodeKey(we); node != "" {
			stats.ByNode[node]++
		}

		if we.Retryable {
			stats.RetryableCount++
		}
	}

	for i := len(entries) - 1; i >= 0 && len(stats.RecentErrors) < recentErrorsLimit; i-- {
		stats.RecentErrors = append(stats.RecentErrors, entries[i])
	}

	return stats
}

func nodeKey(we *WorkflowError) string {
	if we.NodeID != "" {
		return we.NodeID
	}

	return we.NodeName
}
