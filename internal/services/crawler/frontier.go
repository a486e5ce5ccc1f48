package crawler

import (
	"context"
	"sync"
	"time"
)

// FrontierEntry is one discovered page awaiting fetch. Created when a link
// is first seen in scope, never mutated afterwards.
type FrontierEntry struct {
	URL    string // canonical
	Depth  int
	Parent string
}

// DequeueState reports the frontier's answer to a dequeue attempt
type DequeueState int

const (
	// DequeueReady - an entry was handed out and the budget charged
	DequeueReady DequeueState = iota
	// DequeueEmpty - nothing pending right now, but in-flight workers may
	// still produce more work
	DequeueEmpty
	// DequeueBudgetExhausted - the page budget is spent; pending work will
	// never be fetched
	DequeueBudgetExhausted
	// DequeueDone - quiescent: no pending work and no in-flight workers
	DequeueDone
)

// Frontier is the single source of truth for "what to crawl next" and
// "when to stop". It exclusively owns the pending queue, the visited set,
// the page budget and the in-flight counter; workers touch that state only
// through these methods, all serialized by one mutex.
type Frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  []*FrontierEntry
	visited  map[string]bool
	budget   int
	inFlight int
	closed   bool

	enqueued int
	fetched  int
}

// NewFrontier creates a frontier with a page budget of maxPages
func NewFrontier(maxPages int) *Frontier {
	f := &Frontier{
		pending: make([]*FrontierEntry, 0, 64),
		visited: make(map[string]bool),
		budget:  maxPages,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Seed unconditionally enqueues the canonical base URL and marks it visited
func (f *Frontier) Seed(canonical string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[canonical] {
		return
	}
	f.visited[canonical] = true
	f.pending = append(f.pending, &FrontierEntry{URL: canonical, Depth: 0})
	f.enqueued++
	f.cond.Signal()
}

// TryEnqueue adds a newly discovered canonical URL to the pending queue.
// The visited-set insert and the enqueue happen atomically under one lock,
// so the same URL can never be enqueued twice no matter how many workers
// race on it. Returns whether the URL was newly enqueued.
func (f *Frontier) TryEnqueue(canonical, parent string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.visited[canonical] {
		return false
	}
	f.visited[canonical] = true
	f.pending = append(f.pending, &FrontierEntry{URL: canonical, Depth: depth, Parent: parent})
	f.enqueued++
	f.cond.Signal()
	return true
}

// tryDequeueLocked implements the admission gate. Caller holds f.mu.
func (f *Frontier) tryDequeueLocked() (*FrontierEntry, DequeueState) {
	if f.budget <= 0 {
		if f.inFlight == 0 {
			return nil, DequeueDone
		}
		return nil, DequeueBudgetExhausted
	}
	if len(f.pending) == 0 {
		if f.inFlight == 0 {
			return nil, DequeueDone
		}
		return nil, DequeueEmpty
	}

	// FIFO pop: breadth-first order gives shallow pages priority before the
	// budget runs out
	entry := f.pending[0]
	f.pending = f.pending[1:]
	f.budget--
	f.fetched++
	f.inFlight++
	return entry, DequeueReady
}

// TryDequeue atomically checks budget and queue: if both admit, it charges
// the budget, increments the in-flight counter and pops the oldest entry.
// Otherwise it reports why nothing was handed out.
func (f *Frontier) TryDequeue() (*FrontierEntry, DequeueState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tryDequeueLocked()
}

// Dequeue blocks until an entry is available, the crawl is quiescent, or
// ctx is cancelled. The wait is bounded: a periodic broadcast forces every
// sleeping worker to re-check quiescence so the last worker to finish can
// observe Done.
func (f *Frontier) Dequeue(ctx context.Context) (*FrontierEntry, DequeueState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if ctx.Err() != nil || f.closed {
			return nil, DequeueDone
		}

		entry, state := f.tryDequeueLocked()
		switch state {
		case DequeueReady, DequeueDone:
			return entry, state
		}

		// Empty or budget-exhausted with work still in flight: wait for a
		// signal, but wake everyone periodically so stuck waiters re-check
		timer := time.AfterFunc(250*time.Millisecond, func() {
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		})
		f.cond.Wait()
		timer.Stop()
	}
}

// MarkDone decrements the in-flight counter once a worker has completely
// finished an entry, including pushing every link it discovered. Deferring
// this until after link enqueue is what makes quiescence detection sound: a
// sibling observing an empty queue cannot conclude Done while this entry
// might still produce work.
func (f *Frontier) MarkDone(entry *FrontierEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight > 0 {
		f.inFlight--
	}
	if f.inFlight == 0 {
		f.cond.Broadcast()
	}
}

// IsExhausted reports quiescence: nothing pending and nobody mid-page
func (f *Frontier) IsExhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (len(f.pending) == 0 || f.budget <= 0) && f.inFlight == 0
}

// Close wakes all blocked workers; subsequent dequeues return Done
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// PendingLen returns the number of discovered-but-unfetched entries
func (f *Frontier) PendingLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// InFlight returns the number of entries currently held by workers
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// BudgetRemaining returns how many more pages may be fetched
func (f *Frontier) BudgetRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.budget
}

// Fetched returns how many entries have been handed to workers
func (f *Frontier) Fetched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched
}

// SkippedOverBudget returns the count of discovered pages that will never
// be fetched because the budget ran out before they were dequeued
func (f *Frontier) SkippedOverBudget() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.budget > 0 {
		return 0
	}
	return len(f.pending)
}
