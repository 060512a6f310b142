package coalesce

import "sync"

// State of a conversation queue. A queue only exists in the registry while
// it has pending messages or an active dispatcher run; an absent key is Idle.
type State int

const (
	// StateScheduled means a dispatcher run is armed but not yet merging.
	StateScheduled State = iota
	// StateProcessing means a dispatcher pass is currently running.
	StateProcessing
)

// conversationQueue is the per-sender buffer of pending inbound messages.
// Insertion order is arrival order.
type conversationQueue struct {
	key     string
	pending []Message
	state   State
}

// Registry is the process-wide map from conversation key to its queue.
// Entries are created lazily on the first message for a key and removed when
// the queue drains. All mutations for one key are serialized under the
// registry lock; the lock is never held across waits or provider calls.
type Registry struct {
	mu         sync.Mutex
	queues     map[string]*conversationQueue
	classifier Classifier
}

// NewRegistry creates an empty registry using the given classifier for
// merge decisions.
func NewRegistry(c Classifier) *Registry {
	return &Registry{
		queues:     make(map[string]*conversationQueue),
		classifier: c,
	}
}

// Enqueue appends msg to its conversation's queue, creating the queue if
// absent. Returns true when the queue was idle, meaning the caller must
// schedule a dispatcher run for this key. Never blocks.
func (r *Registry) Enqueue(msg Message) (scheduled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[msg.Key]
	if !ok {
		q = &conversationQueue{key: msg.Key, state: StateScheduled}
		r.queues[msg.Key] = q
		scheduled = true
	}
	q.pending = append(q.pending, msg)
	return scheduled
}

// PeekMergeable returns the longest head run of messages that are pairwise
// related to their immediate predecessor, without removing them. The head
// message is always included. Returns nil for an unknown key.
func (r *Registry) PeekMergeable(key string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[key]
	if !ok || len(q.pending) == 0 {
		return nil
	}

	n := 1
	for n < len(q.pending) && r.classifier.Related(q.pending[n-1], q.pending[n]) {
		n++
	}

	run := make([]Message, n)
	copy(run, q.pending[:n])
	return run
}

// Consume atomically removes the first count messages from the queue.
// When the queue drains it is deleted from the registry (conceptual state
// Idle); otherwise it stays Scheduled for the next pass. Returns the number
// of messages still pending.
func (r *Registry) Consume(key string, count int) (remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[key]
	if !ok {
		return 0
	}
	if count > len(q.pending) {
		count = len(q.pending)
	}
	q.pending = q.pending[count:]

	if len(q.pending) == 0 {
		delete(r.queues, key)
		return 0
	}
	q.state = StateScheduled
	return len(q.pending)
}

// Drop removes the whole entry for key, discarding any pending messages.
// Used on the failure path: a failed batch takes its queue with it, and the
// next message from that sender starts a fresh queue.
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queues, key)
}

// Pending returns the number of queued messages for key.
func (r *Registry) Pending(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[key]
	if !ok {
		return 0
	}
	return len(q.pending)
}

// Len returns the number of live conversation queues.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}

// markProcessing flags the queue as mid-pass. Called only by the single
// dispatcher goroutine for this key.
func (r *Registry) markProcessing(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[key]; ok {
		q.state = StateProcessing
	}
}
