package app

import "sync"

// PublishWatcher notifies offline exam takers when a teacher toggles
// an exam's published state, replacing the periodic re-read of exam
// state the feature originally relied on.
type PublishWatcher struct {
	mu   sync.Mutex
	subs map[string]map[chan bool]struct{}
}

func NewPublishWatcher() *PublishWatcher {
	return &PublishWatcher{subs: make(map[string]map[chan bool]struct{})}
}

// Subscribe returns a channel receiving publish-state changes for one
// exam. The caller must invoke cancel to avoid leaks.
func (w *PublishWatcher) Subscribe(examID string) (<-chan bool, func()) {
	ch := make(chan bool, 4)

	w.mu.Lock()
	if w.subs[examID] == nil {
		w.subs[examID] = make(map[chan bool]struct{})
	}
	w.subs[examID][ch] = struct{}{}
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		if set, ok := w.subs[examID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(w.subs, examID)
			}
		}
		w.mu.Unlock()
	}
	return ch, cancel
}

// Notify fans a publish-state change out to the exam's subscribers
// without blocking on slow consumers.
func (w *PublishWatcher) Notify(examID string, published bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs[examID] {
		select {
		case ch <- published:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- published
		}
	}
}
