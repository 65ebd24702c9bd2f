package server

import (
	"sync"
)

// ActorPool runs tasks on a fixed set of workers. Tasks submitted for the same
// actor run one at a time in submission order; different actors run in parallel.
type ActorPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queues  map[int][]func()
	ready   []int
	closed  bool
	wg      sync.WaitGroup
	workers int
}

func NewActorPool(workers int) *ActorPool {
	if workers <= 0 {
		workers = 1
	}
	p := &ActorPool{queues: make(map[int][]func()), workers: workers}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues task for actor. It returns false once the pool is closed.
func (p *ActorPool) Submit(actor int, task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	queue, scheduled := p.queues[actor]
	p.queues[actor] = append(queue, task)
	if !scheduled {
		p.ready = append(p.ready, actor)
		p.cond.Signal()
	}
	return true
}

func (p *ActorPool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.ready) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.ready) == 0 {
			p.mu.Unlock()
			return
		}
		actor := p.ready[0]
		p.ready = p.ready[1:]
		task := p.queues[actor][0]
		p.queues[actor] = p.queues[actor][1:]
		p.mu.Unlock()

		task()

		p.mu.Lock()
		if len(p.queues[actor]) > 0 {
			p.ready = append(p.ready, actor)
			p.cond.Signal()
		} else {
			delete(p.queues, actor)
		}
		p.mu.Unlock()
	}
}

// Close stops accepting tasks, runs the ones already queued and waits for the workers.
func (p *ActorPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}
