package transport

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunc handles one unit of work (a connection ready to be read).
// A non-nil error is fatal to the worker goroutine it runs on.
type WorkerFunc = func(t *tomb.Tomb, task any) error

// WorkerPool is a fixed-size pool of goroutines pulling connections off a
// shared channel, supervised by a tomb.Tomb so a single worker's fatal
// error can bring down the pool (and the server) deliberately rather than
// leak a stuck goroutine.
type WorkerPool struct {
	n     int
	tasks chan any
	log   zerolog.Logger
}

func NewWorkerPool(size int, log zerolog.Logger) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
		log:   log,
	}
}

// AddTask enqueues a unit of work. Blocks if the queue is full.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup keeps exactly pool.n workers alive under t until t starts dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunc) {
	pool.log.Info().Int("workers", pool.n).Msg("starting worker pool")
	var active atomic.Int64
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active.Load() < int64(pool.n) {
				active.Add(1)
				t.Go(func() error {
					err := pool.worker(t, work)
					active.Add(-1)
					return err
				})
			}
		}
	}
}

func (pool *WorkerPool) worker(t *tomb.Tomb, work WorkerFunc) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-pool.tasks:
		if err := work(t, task); err != nil {
			pool.log.Error().Err(err).Msg("worker exiting on fatal error")
			return err
		}
	}
	return nil
}
