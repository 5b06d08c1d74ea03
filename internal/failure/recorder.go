package failure

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricesearch_failure_queue_depth",
		Help: "Failure records waiting for the durable write.",
	})
	queueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricesearch_failure_queue_drops_total",
		Help: "Failure records dropped under sustained overload.",
	})
)

// Publisher receives failure events after the durable write, for
// offline rule mining. May be nil.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Recorder accepts failure reports from the request path and writes
// them out of band through a bounded queue. Under sustained overload
// the oldest queued report is dropped (and the drop logged) rather
// than blocking a request.
type Recorder struct {
	store     Store
	publisher Publisher
	topic     string
	logger    *zap.Logger

	queue chan engine.FailureReport
	stop  chan struct{}
	done  sync.WaitGroup

	// writeTimeout bounds each durable write.
	writeTimeout time.Duration
}

// NewRecorder starts the drain goroutine. store may be nil (recording
// disabled, reports are counted and discarded); publisher may be nil.
func NewRecorder(store Store, publisher Publisher, topic string, queueSize int, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:        store,
		publisher:    publisher,
		topic:        topic,
		logger:       logger,
		queue:        make(chan engine.FailureReport, queueSize),
		stop:         make(chan struct{}),
		writeTimeout: 5 * time.Second,
	}
	r.done.Add(1)
	go r.drain()
	return r
}

// Record implements engine.FailureSink. Never blocks: when the queue
// is full the oldest report is evicted to make room.
func (r *Recorder) Record(report engine.FailureReport) {
	for {
		select {
		case r.queue <- report:
			queueDepth.Set(float64(len(r.queue)))
			return
		default:
		}
		select {
		case dropped := <-r.queue:
			queueDrops.Inc()
			r.logger.Warn("failure queue full, dropping oldest",
				zap.String("query", dropped.NormalizedQuery))
		default:
		}
	}
}

// Close stops the drain loop after flushing what is queued.
func (r *Recorder) Close() {
	close(r.stop)
	r.done.Wait()
}

func (r *Recorder) drain() {
	defer r.done.Done()
	for {
		select {
		case report := <-r.queue:
			queueDepth.Set(float64(len(r.queue)))
			r.write(report)
		case <-r.stop:
			for {
				select {
				case report := <-r.queue:
					r.write(report)
				default:
					return
				}
			}
		}
	}
}

// write performs the durable insert and the optional event publish.
// Request completion does not cancel this; it runs on its own
// deadline. Store errors are logged and swallowed.
func (r *Recorder) write(report engine.FailureReport) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	rec := Record{
		OriginalQuery:   report.OriginalQuery,
		NormalizedQuery: report.NormalizedQuery,
		Candidates:      report.Candidates,
		AttemptedCount:  report.AttemptedCount,
		ErrorMessage:    report.ErrorMessage,
		Category:        string(report.Category),
		Brand:           report.Brand,
		Model:           report.Model,
		Status:          StatusPending,
	}
	id, err := r.store.Insert(ctx, rec)
	if err != nil {
		r.logger.Error("failure record write failed", zap.Error(err))
		return
	}
	r.logger.Info("failure recorded",
		zap.Int64("id", id),
		zap.String("query", report.NormalizedQuery),
		zap.Int("attempted", report.AttemptedCount))

	if r.publisher != nil {
		rec.ID = id
		if _, err := r.publisher.Publish(ctx, r.topic, rec); err != nil {
			r.logger.Warn("failure event publish failed", zap.Error(err))
		}
	}
}
