package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vantutran2k1/rsql/pkg/logger"
	"github.com/vantutran2k1/rsql/pkg/metrics"
)

var ErrWriterClosed = errors.New("batch writer is closed")

type Writer interface {
	Write(ctx context.Context, events []Event) error
}

type BatchWriterConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// BatchWriter buffers events and writes them when the batch is full, when
// the flush interval elapses, and once more on Close.
type BatchWriter struct {
	writer      Writer
	config      BatchWriterConfig
	events      chan Event
	doneCh      chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	batch       []Event
	flushTicker *time.Ticker
}

func NewBatchWriter(ctx context.Context, writer Writer, config BatchWriterConfig) *BatchWriter {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}

	bw := &BatchWriter{
		writer:      writer,
		config:      config,
		events:      make(chan Event, config.BatchSize*2),
		doneCh:      make(chan struct{}),
		batch:       make([]Event, 0, config.BatchSize),
		flushTicker: time.NewTicker(config.FlushInterval),
	}

	bw.wg.Add(1)
	go bw.run(ctx)

	return bw
}

func (bw *BatchWriter) Add(e Event) error {
	select {
	case <-bw.doneCh:
		return ErrWriterClosed
	default:
	}

	select {
	case bw.events <- e:
		return nil
	case <-bw.doneCh:
		return ErrWriterClosed
	}
}

// Close flushes what is buffered and stops the writer.
func (bw *BatchWriter) Close() {
	bw.closeOnce.Do(func() {
		close(bw.doneCh)
		bw.wg.Wait()
		bw.flushTicker.Stop()
	})
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	for {
		select {
		case e := <-bw.events:
			bw.batch = append(bw.batch, e)
			if len(bw.batch) >= bw.config.BatchSize {
				bw.flush(ctx)
			}
		case <-bw.flushTicker.C:
			bw.flush(ctx)
		case <-bw.doneCh:
			for {
				select {
				case e := <-bw.events:
					bw.batch = append(bw.batch, e)
				default:
					bw.flush(context.WithoutCancel(ctx))
					return
				}
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context) {
	if len(bw.batch) == 0 {
		return
	}

	logger.Debug("flushing audit batch", "size", len(bw.batch))

	if err := bw.writer.Write(ctx, bw.batch); err != nil {
		metrics.AuditEventsTotal.WithLabelValues("write", OutcomeError).Add(float64(len(bw.batch)))
		logger.Error("error writing audit batch", "size", len(bw.batch), "error", err)
	} else {
		metrics.AuditEventsTotal.WithLabelValues("write", OutcomeOK).Add(float64(len(bw.batch)))
	}

	bw.batch = make([]Event, 0, bw.config.BatchSize)
}
