package bus

import (
	"strings"
	"sync"
	"time"
)

// FlushFunc receives one aggregated turn: the conversation id and the
// combined text of all fragments collected during the debounce window.
type FlushFunc func(conversationID, text string)

// TurnDebouncer merges bursts of rapid messages from the same conversation
// into a single logical turn before processing.
//
// Each conversation has at most one pending timer. Enqueueing while a timer
// is armed cancels and replaces it (last-message-wins restart). The first
// turn of a conversation uses a longer window so a customer typing out an
// initial multi-message requirement is captured whole; every later turn uses
// the short burst window.
type TurnDebouncer struct {
	mu          sync.Mutex
	firstWindow time.Duration
	burstWindow time.Duration
	flush       FlushFunc
	convs       map[string]*convBuffer
	stopped     bool
}

type convBuffer struct {
	fragments []string
	timer     *time.Timer
	gen       uint64 // bumped on every (re)arm; stale timers bail out
	firstTurn bool   // true until this conversation's first flush
}

// NewTurnDebouncer creates a debouncer. flush is invoked on the timer
// goroutine, exactly once per aggregation cycle, outside the internal lock.
func NewTurnDebouncer(firstWindow, burstWindow time.Duration, flush FlushFunc) *TurnDebouncer {
	return &TurnDebouncer{
		firstWindow: firstWindow,
		burstWindow: burstWindow,
		flush:       flush,
		convs:       make(map[string]*convBuffer),
	}
}

// SetWindows updates the debounce windows. Applies to timers armed after the
// call; an already armed timer keeps its original window.
func (d *TurnDebouncer) SetWindows(firstWindow, burstWindow time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if firstWindow > 0 {
		d.firstWindow = firstWindow
	}
	if burstWindow > 0 {
		d.burstWindow = burstWindow
	}
}

// Enqueue appends text to the conversation's pending queue and (re)arms its
// debounce timer. Text that is empty after trimming is a no-op, so a timer
// is only ever armed with at least one fragment queued.
func (d *TurnDebouncer) Enqueue(conversationID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	b, ok := d.convs[conversationID]
	if !ok {
		b = &convBuffer{firstTurn: true}
		d.convs[conversationID] = b
	}

	b.fragments = append(b.fragments, text)
	b.gen++
	gen := b.gen

	window := d.burstWindow
	if b.firstTurn {
		window = d.firstWindow
	}

	// Last-message-wins: cancel any previously armed flush outright.
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(window, func() {
		d.fire(conversationID, gen)
	})
}

// fire performs the flush for one aggregation cycle. The generation check
// discards timers that were superseded by a re-arm after they were scheduled
// but before they acquired the lock, so each cycle flushes at most once.
func (d *TurnDebouncer) fire(conversationID string, gen uint64) {
	d.mu.Lock()

	b, ok := d.convs[conversationID]
	if !ok || d.stopped || b.gen != gen || len(b.fragments) == 0 {
		d.mu.Unlock()
		return
	}

	// Atomically swap out the queue. A message enqueued from here on starts
	// a brand-new cycle and is never merged into this turn.
	fragments := b.fragments
	b.fragments = nil
	b.timer = nil
	b.firstTurn = false
	d.mu.Unlock()

	d.flush(conversationID, strings.Join(fragments, "\n"))
}

// PendingDepth reports how many fragments are queued for a conversation.
func (d *TurnDebouncer) PendingDepth(conversationID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.convs[conversationID]; ok {
		return len(b.fragments)
	}
	return 0
}

// IsFirstTurn reports whether a conversation has not yet flushed its first
// turn. Unknown conversations report true.
func (d *TurnDebouncer) IsFirstTurn(conversationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.convs[conversationID]; ok {
		return b.firstTurn
	}
	return true
}

// Stop cancels all pending timers and discards queued fragments. Further
// enqueues are ignored.
func (d *TurnDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, b := range d.convs {
		if b.timer != nil {
			b.timer.Stop()
			b.timer = nil
		}
		b.fragments = nil
	}
}
