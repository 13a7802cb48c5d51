package docstore

import "sync"

// subscriber guards one change callback. Nothing is delivered after stop,
// and a snapshot carrying a sequence number at or below the last delivered
// one is dropped. A zero sequence is unordered and always delivered.
type subscriber struct {
	mu       sync.Mutex
	onChange func(Document)
	stopped  bool
	last     uint64
}

func newSubscriber(onChange func(Document)) *subscriber {
	return &subscriber{onChange: onChange}
}

func (s *subscriber) deliver(doc Document, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if seq != 0 {
		if seq <= s.last {
			return
		}
		s.last = seq
	}
	s.onChange(doc)
}

// stop waits for an in-flight delivery to return.
func (s *subscriber) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
