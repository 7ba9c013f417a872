package audit

import (
	"sync"

	"github.com/vantutran2k1/rsql/pkg/logger"
	"github.com/vantutran2k1/rsql/pkg/metrics"
)

// Sink receives decoded events.
type Sink interface {
	Add(e Event) error
}

type Job struct {
	Data []byte
}

// WorkerPool decodes raw messages on a fixed number of goroutines and hands
// the events to a Sink.
type WorkerPool struct {
	numWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	sink       Sink
}

func NewWorkerPool(numWorkers, jobQueueSize int, sink Sink) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, jobQueueSize),
		sink:       sink,
	}
}

func (wp *WorkerPool) Start() {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	logger.Info("started audit workers", "count", wp.numWorkers)
}

// Stop waits for queued jobs to finish. Submit must not be called after Stop.
func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
	logger.Info("all audit workers stopped")
}

func (wp *WorkerPool) Submit(job Job) {
	wp.jobs <- job
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobs {
		e, err := Unmarshal(job.Data)
		if err != nil {
			metrics.AuditEventsTotal.WithLabelValues("decode", OutcomeError).Inc()
			logger.Warn("dropping undecodable audit event", "worker", id, "error", err)
			continue
		}
		if err := wp.sink.Add(e); err != nil {
			metrics.AuditEventsTotal.WithLabelValues("decode", OutcomeError).Inc()
			logger.Error("failed to queue audit event", "worker", id, "event_id", e.ID, "error", err)
			continue
		}
		metrics.AuditEventsTotal.WithLabelValues("decode", OutcomeOK).Inc()
	}
}
