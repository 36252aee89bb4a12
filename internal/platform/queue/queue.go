// Package queue is a durable postgres-backed topic queue with at-least-once
// delivery. Producers insert rows; consumers lease visible rows with
// FOR UPDATE SKIP LOCKED so concurrent workers never double-claim. A message
// that exhausts max_attempts on a source topic is forwarded to its ".dlq"
// shadow topic with the delivery count preserved in source_attempts
package queue

import (
	"context"
	"encoding/json"
	"time"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/store"

	"github.com/google/uuid"
)

// DlqSuffix is appended to a topic to form its dead-letter shadow topic
const DlqSuffix = ".dlq"

// DlqTopic returns the shadow topic messages forward to on exhausted retries
func DlqTopic(topic string) string { return topic + DlqSuffix }

// IsDlqTopic reports whether topic is a dead-letter shadow
func IsDlqTopic(topic string) bool {
	return len(topic) > len(DlqSuffix) && topic[len(topic)-len(DlqSuffix):] == DlqSuffix
}

// Delivery is one leased message. Handlers call Ack, Retry, or
// RetryWithDelay; undisposed messages follow the batch verdict
type Delivery struct {
	ID             int64
	MessageID      uuid.UUID
	Topic          string
	Body           json.RawMessage
	Attempts       int
	MaxAttempts    int
	SourceAttempts int
	EnqueuedAt     time.Time

	decided    bool
	wantRetry  bool
	retryDelay time.Duration
	delaySet   bool
}

// Ack marks the delivery handled; the runner deletes the row
func (d *Delivery) Ack() {
	d.decided = true
	d.wantRetry = false
}

// Retry releases the delivery for redelivery after the runner's default delay
func (d *Delivery) Retry() {
	d.decided = true
	d.wantRetry = true
	d.delaySet = false
}

// RetryWithDelay releases the delivery for redelivery after delay
func (d *Delivery) RetryWithDelay(delay time.Duration) {
	d.decided = true
	d.wantRetry = true
	d.retryDelay = delay
	d.delaySet = true
}

// Exhausted reports whether this delivery consumed its final attempt
func (d *Delivery) Exhausted() bool { return d.Attempts >= d.MaxAttempts }

// Decided reports whether the handler disposed of this delivery
func (d *Delivery) Decided() bool { return d.decided }

// WantsRetry reports whether the delivery is marked for redelivery
func (d *Delivery) WantsRetry() bool { return d.decided && d.wantRetry }

// RetryDelay returns the explicit redelivery delay and whether one was set
func (d *Delivery) RetryDelay() (time.Duration, bool) { return d.retryDelay, d.delaySet }

type sendCfg struct {
	delay       time.Duration
	maxAttempts int
}

// SendOption tweaks a single Send or SendBatch call
type SendOption func(*sendCfg)

// WithDelay defers first delivery by d; negative values clamp to zero
func WithDelay(d time.Duration) SendOption {
	return func(c *sendCfg) {
		if d < 0 {
			d = 0
		}
		c.delay = d
	}
}

// WithMaxAttempts overrides the per-message delivery budget
func WithMaxAttempts(n int) SendOption {
	return func(c *sendCfg) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Producer inserts messages. Safe for concurrent use
type Producer struct {
	db          store.RowQuerier
	maxAttempts int
}

// NewProducer builds a Producer over the postgres seam.
// defaultMaxAttempts <= 0 means 3
func NewProducer(db store.RowQuerier, defaultMaxAttempts int) *Producer {
	if db == nil {
		panic("queue.Producer requires a non nil querier")
	}
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = 3
	}
	return &Producer{db: db, maxAttempts: defaultMaxAttempts}
}

// Send marshals body and enqueues one message on topic
func (p *Producer) Send(ctx context.Context, topic string, body any, opts ...SendOption) error {
	return p.SendBatch(ctx, topic, []any{body}, opts...)
}

// SendBatch enqueues all bodies on topic in a single statement
func (p *Producer) SendBatch(ctx context.Context, topic string, bodies []any, opts ...SendOption) error {
	if len(bodies) == 0 {
		return nil
	}
	cfg := sendCfg{maxAttempts: p.maxAttempts}
	for _, o := range opts {
		o(&cfg)
	}

	ids := make([]string, len(bodies))
	payloads := make([]string, len(bodies))
	for i, b := range bodies {
		raw, err := json.Marshal(b)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "queue: marshal body for %s", topic)
		}
		ids[i] = uuid.NewString()
		payloads[i] = string(raw)
	}

	const sqlq = `
        INSERT INTO queue_messages (message_id, topic, body, max_attempts, visible_at)
        SELECT t.mid, $1, t.body, $2, now() + $3::interval
          FROM UNNEST($4::uuid[], $5::jsonb[]) AS t(mid, body)
    `
	if _, err := p.db.Exec(ctx, sqlq, topic, cfg.maxAttempts, cfg.delay.String(), ids, payloads); err != nil {
		return perr.FromPostgres(err, "queue.SendBatch")
	}
	return nil
}

// Consumer leases and settles messages. Safe for concurrent use
type Consumer struct {
	db  store.RowQuerier
	log logger.Logger
}

// NewConsumer builds a Consumer over the postgres seam
func NewConsumer(db store.RowQuerier) *Consumer {
	if db == nil {
		panic("queue.Consumer requires a non nil querier")
	}
	return &Consumer{db: db, log: *logger.Named("queue")}
}

// Lease claims up to n visible messages on topic for leaseFor.
// Each claim increments attempts, so a delivery observed by a handler
// already counts against max_attempts
func (c *Consumer) Lease(ctx context.Context, topic string, n int, leaseFor time.Duration) ([]*Delivery, error) {
	if n <= 0 {
		return nil, nil
	}
	const sqlq = `
        WITH ready AS (
            SELECT id
              FROM queue_messages
             WHERE topic = $1
               AND visible_at <= now()
               AND (leased_until IS NULL OR leased_until <= now())
             ORDER BY id
             LIMIT $2
               FOR UPDATE SKIP LOCKED
        ), upd AS (
            UPDATE queue_messages m
               SET attempts = m.attempts + 1,
                   leased_until = now() + $3::interval
             WHERE m.id IN (SELECT id FROM ready)
            RETURNING m.id, m.message_id::text, m.topic, m.body,
                      m.attempts, m.max_attempts, m.source_attempts, m.enqueued_at
        )
        SELECT * FROM upd ORDER BY id
    `
	rows, err := c.db.Query(ctx, sqlq, topic, n, leaseFor.String())
	if err != nil {
		return nil, perr.FromPostgres(err, "queue.Lease")
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		var d Delivery
		var mid string
		var body []byte
		if err := rows.Scan(&d.ID, &mid, &d.Topic, &body, &d.Attempts, &d.MaxAttempts, &d.SourceAttempts, &d.EnqueuedAt); err != nil {
			return nil, perr.FromPostgres(err, "queue.Lease scan")
		}
		u, err := uuid.Parse(mid)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "queue: bad message_id %q", mid)
		}
		d.MessageID = u
		d.Body = json.RawMessage(body)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Ack deletes settled rows
func (c *Consumer) Ack(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const sqlq = `DELETE FROM queue_messages WHERE id = ANY($1::bigint[])`
	if _, err := c.db.Exec(ctx, sqlq, ids); err != nil {
		return perr.FromPostgres(err, "queue.Ack")
	}
	return nil
}

// Retry releases one delivery for redelivery after delay. A delivery on its
// final attempt forwards to the .dlq shadow topic instead; a dead-letter
// delivery out of attempts is dropped with a loud log line, which is the
// explicit end of the line for a message
func (c *Consumer) Retry(ctx context.Context, d *Delivery, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	if !d.Exhausted() {
		const sqlq = `
            UPDATE queue_messages
               SET visible_at = now() + $2::interval, leased_until = NULL
             WHERE id = $1
        `
		if _, err := c.db.Exec(ctx, sqlq, d.ID, delay.String()); err != nil {
			return perr.FromPostgres(err, "queue.Retry release")
		}
		return nil
	}

	if IsDlqTopic(d.Topic) {
		const sqlq = `DELETE FROM queue_messages WHERE id = $1`
		if _, err := c.db.Exec(ctx, sqlq, d.ID); err != nil {
			return perr.FromPostgres(err, "queue.Retry drop")
		}
		c.log.Error().
			Str("topic", d.Topic).
			Str("message_id", d.MessageID.String()).
			Int("attempts", d.Attempts).
			Msg("dead-letter delivery exhausted retries, dropping")
		return nil
	}

	const sqlq = `
        UPDATE queue_messages
           SET topic = topic || '.dlq',
               source_attempts = attempts,
               attempts = 0,
               visible_at = now(),
               leased_until = NULL
         WHERE id = $1
    `
	if _, err := c.db.Exec(ctx, sqlq, d.ID); err != nil {
		return perr.FromPostgres(err, "queue.Retry forward")
	}
	c.log.Warn().
		Str("topic", d.Topic).
		Str("message_id", d.MessageID.String()).
		Int("attempts", d.Attempts).
		Msg("delivery exhausted retries, forwarded to dlq topic")
	return nil
}

// Depth returns the count of messages currently visible on topic
func (c *Consumer) Depth(ctx context.Context, topic string) (int64, error) {
	const sqlq = `
        SELECT count(*) FROM queue_messages
         WHERE topic = $1 AND visible_at <= now()
           AND (leased_until IS NULL OR leased_until <= now())
    `
	n, err := store.Scalar[int64](ctx, c.db, sqlq, topic)
	if err != nil {
		return 0, perr.FromPostgres(err, "queue.Depth")
	}
	return n, nil
}
