package queue

import (
	"context"
	"time"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/store"

	"github.com/google/uuid"
)

// Handler processes one leased batch. Messages the handler does not settle
// explicitly follow the batch verdict: ack when the handler returns nil,
// retry when it returns an error
type Handler func(ctx context.Context, batch []*Delivery) error

// RunnerOption tweaks a Runner
type RunnerOption func(*Runner)

// WithBatchSize caps how many messages one poll leases (default 10)
func WithBatchSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithPollInterval sets how often an idle runner re-polls (default 1s)
func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.poll = d
		}
	}
}

// WithLeaseFor sets the lease TTL handed to Lease (default 2m). Keep it
// comfortably above the slowest expected batch so redelivery means a crash
func WithLeaseFor(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.leaseFor = d
		}
	}
}

// WithRetryDelay sets the default redelivery delay for retried messages (default 30s)
func WithRetryDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d >= 0 {
			r.retryDelay = d
		}
	}
}

// Runner drives one topic: lease, hand to the handler, settle dispositions
type Runner struct {
	topic      string
	consumer   *Consumer
	handler    Handler
	log        logger.Logger
	batchSize  int
	poll       time.Duration
	leaseFor   time.Duration
	retryDelay time.Duration
}

// NewRunner builds a poll loop for topic over the postgres seam
func NewRunner(db store.RowQuerier, topic string, h Handler, opts ...RunnerOption) *Runner {
	if h == nil {
		panic("queue.Runner requires a handler")
	}
	r := &Runner{
		topic:      topic,
		consumer:   NewConsumer(db),
		handler:    h,
		log:        *logger.Named("queue-runner"),
		batchSize:  10,
		poll:       time.Second,
		leaseFor:   2 * time.Minute,
		retryDelay: 30 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run polls until ctx is done. Lease errors log and back off to the next tick
func (r *Runner) Run(ctx context.Context) error {
	log := r.log.With().Str("topic", r.topic).Logger()
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			batch, err := r.consumer.Lease(ctx, r.topic, r.batchSize, r.leaseFor)
			if err != nil {
				// transient contention self-heals on the next tick
				evt := log.Error()
				if perr.Retryable(err) {
					evt = log.Warn()
				}
				evt.Err(err).Msg("lease failed")
				continue
			}
			if len(batch) == 0 {
				continue
			}
			r.dispatch(ctx, &log, batch)
		}
	}
}

// dispatch invokes the handler then applies every message's disposition.
// A batch id rides the context so the handler's SQL traces and log lines
// correlate with the runner's own
func (r *Runner) dispatch(ctx context.Context, log *logger.Logger, batch []*Delivery) {
	batchID := r.topic + "/" + uuid.NewString()
	ctx = store.WithRequestID(ctx, batchID)
	ctx = logger.WithRequestID(ctx, batchID)
	blog := log.With().Str("batch_id", batchID).Logger()

	err := r.handler(ctx, batch)
	if err != nil {
		blog.Warn().Err(err).Int("batch", len(batch)).Msg("handler returned error, retrying unsettled messages")
	}

	var ackIDs []int64
	for _, d := range batch {
		retry := d.wantRetry
		if !d.decided {
			retry = err != nil
		}
		if !retry {
			ackIDs = append(ackIDs, d.ID)
			continue
		}
		delay := r.retryDelay
		if d.delaySet {
			delay = d.retryDelay
		}
		if rerr := r.consumer.Retry(ctx, d, delay); rerr != nil {
			// the lease expiry will surface the message again
			blog.Error().Err(rerr).Int64("id", d.ID).Msg("retry settle failed")
		}
	}
	if len(ackIDs) > 0 {
		if aerr := r.consumer.Ack(ctx, ackIDs); aerr != nil {
			blog.Error().Err(aerr).Ints64("ids", ackIDs).Msg("ack failed")
		}
	}
}
