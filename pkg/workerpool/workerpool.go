// Package workerpool runs jobs on a fixed number of goroutines fed by an
// unbounded FIFO queue, so Submit never blocks on execution.
package workerpool

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var ErrPoolClosed = errors.New("worker pool is closed")

type Pool struct {
	size int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	active atomic.Int64
	wg     sync.WaitGroup
}

func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit appends job to the queue.
func (p *Pool) Submit(job func()) error {
	if job == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(job)
	}
}

func (p *Pool) run(job func()) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("worker recovered panic")
		}
	}()
	job()
}

// Stop discards queued jobs and waits for running ones.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.queue = nil
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

// StopWait rejects new jobs and waits until the queue is drained.
func (p *Pool) StopWait() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) Size() int { return p.size }

// Queued is the number of jobs waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Active is the number of jobs currently running.
func (p *Pool) Active() int64 { return p.active.Load() }
