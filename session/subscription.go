package session

import (
	"context"
	"sync"
)

// subscriber delivers queued states to out in order from one goroutine.
type subscriber struct {
	out    chan State
	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	queue []State
}

func newSubscriber() *subscriber {
	return &subscriber{
		out:    make(chan State),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscriber) push(state State) {
	s.mu.Lock()
	s.queue = append(s.queue, state)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return State{}, false
	}
	next := s.queue[0]
	s.queue[0] = State{}
	s.queue = s.queue[1:]
	return next, true
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) run(ctx context.Context, onExit func()) {
	defer onExit()
	defer close(s.out)
	for {
		next, ok := s.pop()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		select {
		case s.out <- next:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
