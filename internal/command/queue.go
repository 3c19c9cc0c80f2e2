package command

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"lane-defense/pkg/logger"
)

// Job is one queued command line and where to send its reply
type Job struct {
	Line       string
	Source     string
	Reply      func(Result) // Optional, called from a worker goroutine
	receivedAt time.Time
}

// Queue decouples socket readers from engine calls with a small worker pool
type Queue struct {
	jobs     chan Job
	handler  *Handler
	workers  int
	wg       sync.WaitGroup
	running  atomic.Bool
	stopChan chan struct{}

	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int
	Workers    int
}

// DefaultQueueConfig returns the production queue settings
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256,
		Workers:    2,
	}
}

// NewQueue creates a command queue over a handler
func NewQueue(handler *Handler, cfg QueueConfig) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &Queue{
		jobs:     make(chan Job, cfg.BufferSize),
		handler:  handler,
		workers:  cfg.Workers,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker pool
func (q *Queue) Start() {
	if q.running.Swap(true) {
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"workers": q.workers,
		"buffer":  cap(q.jobs),
	}).Info("🚀 Command queue started")

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop shuts the workers down. Jobs still buffered are discarded.
func (q *Queue) Stop() {
	if !q.running.Swap(false) {
		return
	}
	close(q.stopChan)
	q.wg.Wait()

	logger.Log.WithFields(logrus.Fields{
		"enqueued":  q.enqueued.Load(),
		"processed": q.processed.Load(),
		"dropped":   q.dropped.Load(),
	}).Info("📊 Command queue stopped")
}

// Enqueue adds a job without blocking. It returns false if the buffer is full.
func (q *Queue) Enqueue(job Job) bool {
	job.receivedAt = time.Now()

	select {
	case q.jobs <- job:
		q.enqueued.Add(1)
		return true
	default:
		if q.dropped.Add(1)%100 == 1 {
			logger.Log.WithFields(logrus.Fields{
				"source":  job.Source,
				"dropped": q.dropped.Load(),
			}).Warn("⚠️ Command queue full")
		}
		return false
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			wait := time.Since(job.receivedAt)
			q.updateAvgWaitTime(wait)
			if wait > 100*time.Millisecond {
				logger.Log.WithFields(logrus.Fields{
					"source": job.Source,
					"waitMs": wait.Milliseconds(),
				}).Warn("⚠️ Command waited in queue")
			}

			res := q.handler.HandleLine(job.Line, job.Source)
			q.processed.Add(1)
			if job.Reply != nil {
				job.Reply(res)
			}
		}
	}
}

func (q *Queue) updateAvgWaitTime(wait time.Duration) {
	current := q.avgWaitTime.Load()
	q.avgWaitTime.Store((current*9 + wait.Nanoseconds()) / 10)
}

// Stats returns current queue statistics
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued:      q.enqueued.Load(),
		Processed:     q.processed.Load(),
		Dropped:       q.dropped.Load(),
		Pending:       uint64(len(q.jobs)),
		BufferSize:    uint64(cap(q.jobs)),
		AvgWaitTimeMs: float64(q.avgWaitTime.Load()) / 1e6,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued      uint64  `json:"enqueued"`
	Processed     uint64  `json:"processed"`
	Dropped       uint64  `json:"dropped"`
	Pending       uint64  `json:"pending"`
	BufferSize    uint64  `json:"buffer_size"`
	AvgWaitTimeMs float64 `json:"avg_wait_time_ms"`
}
