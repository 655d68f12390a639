package engine

import (
	"context"
	"sync"

	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/sirupsen/logrus"
)

// pushJob is one pending write against the orders collection.
type pushJob struct {
	id     string
	doc    any
	remove bool
}

// pusher serializes persistence pushes for one session on a single worker
// goroutine. Pushes are fire-and-forget: a failure is surfaced through
// onError and logged, never rolled back or retried. Only the newest queued
// job survives; a superseded push is simply overwritten by the next one, so
// the store always converges on the most recent local mutation.
type pusher struct {
	store   store.DocumentStore
	log     *logrus.Entry
	onError func(error)

	mu      sync.Mutex
	pending *pushJob

	kick chan struct{}
	done chan struct{}
}

func newPusher(st store.DocumentStore, log *logrus.Entry, onError func(error)) *pusher {
	return &pusher{
		store:   st,
		log:     log,
		onError: onError,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// enqueue replaces any pending job with this one and wakes the worker.
func (p *pusher) enqueue(job pushJob) {
	p.mu.Lock()
	p.pending = &job
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// run processes jobs until ctx is cancelled.
func (p *pusher) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
		}

		p.mu.Lock()
		job := p.pending
		p.pending = nil
		p.mu.Unlock()
		if job == nil {
			continue
		}

		var err error
		if job.remove {
			err = p.store.Delete(ctx, store.CollectionOrders, job.id)
		} else {
			err = p.store.Put(ctx, store.CollectionOrders, job.id, job.doc)
		}
		if err != nil {
			p.log.WithError(err).WithField("order_id", job.id).Error("order push failed")
			if p.onError != nil {
				p.onError(err)
			}
		}
	}
}

// drain runs any job still pending after the worker stopped, so tearing a
// session down does not silently lose its last write.
func (p *pusher) drain() {
	p.mu.Lock()
	job := p.pending
	p.pending = nil
	p.mu.Unlock()
	if job == nil {
		return
	}

	ctx := context.Background()
	var err error
	if job.remove {
		err = p.store.Delete(ctx, store.CollectionOrders, job.id)
	} else {
		err = p.store.Put(ctx, store.CollectionOrders, job.id, job.doc)
	}
	if err != nil {
		p.log.WithError(err).WithField("order_id", job.id).Error("final order push failed")
		if p.onError != nil {
			p.onError(err)
		}
	}
}
