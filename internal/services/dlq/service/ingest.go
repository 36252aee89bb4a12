package service

import (
	"context"
	"encoding/json"
	"strings"

	"taplist/internal/platform/logger"
	"taplist/internal/platform/metrics"
	"taplist/internal/platform/queue"
	pstrings "taplist/internal/platform/strings"
	ptime "taplist/internal/platform/time"

	"taplist/internal/services/analytics"
	dom "taplist/internal/services/dlq/domain"
)

// logged payload cap; raw_message itself is stored in full
const rawLogLimit = 500

// beerRef is the shared beer envelope both pipeline messages carry.
// Unknown fields and parse failures are tolerated: the row still lands
// with the raw payload preserved verbatim
type beerRef struct {
	BeerID   string `json:"beer_id"`
	BeerName string `json:"beer_name"`
	Brewer   string `json:"brewer"`
}

// HandleDlqBatch lands one leased shadow-topic batch in the dead-letter
// store with a single upsert. A failed write retries the whole lease;
// per-row conflicts re-open existing rows to pending
func (s *Svc) HandleDlqBatch(ctx context.Context, batch []*queue.Delivery) error {
	nowMs := ptime.ToMs(s.now())
	rows := make([]dom.IngestRow, 0, len(batch))
	kept := make([]*queue.Delivery, 0, len(batch))

	for _, d := range batch {
		source := dom.SourceQueue(strings.TrimSuffix(d.Topic, queue.DlqSuffix))
		if !source.OK() {
			// nothing can replay an unknown topic; drop instead of looping
			logger.C(ctx).Error().
				Str("topic", d.Topic).
				Str("message_id", d.MessageID.String()).
				Msg("dead letter from unknown source queue, dropping")
			d.Ack()
			continue
		}

		var ref beerRef
		_ = json.Unmarshal(d.Body, &ref)

		rows = append(rows, dom.IngestRow{
			MessageID:    d.MessageID.String(),
			BeerID:       ref.BeerID,
			BeerName:     ref.BeerName,
			Brewer:       ref.Brewer,
			FailedAt:     nowMs,
			FailureCount: d.SourceAttempts,
			SourceQueue:  source,
			RawMessage:   string(d.Body),
		})
		kept = append(kept, d)
	}
	if len(rows) == 0 {
		return nil
	}

	if err := s.repo.UpsertFailed(ctx, rows); err != nil {
		logger.C(ctx).Error().Err(err).Int("messages", len(rows)).Msg("dead letter store write failed")
		return err
	}

	for i, d := range kept {
		row := rows[i]
		metrics.DlqIngested.WithLabelValues(string(row.SourceQueue)).Inc()
		s.emit.Emit(ctx, analytics.Event{
			Event: analytics.EventDlqIngested, BeerID: row.BeerID,
			Outcome: "ingested", Source: string(row.SourceQueue), Ts: nowMs,
		})
		logger.C(ctx).Info().
			Str("source_queue", string(row.SourceQueue)).
			Str("beer_id", row.BeerID).
			Int("failure_count", row.FailureCount).
			Str("payload", pstrings.Truncate(row.RawMessage, rawLogLimit)).
			Msg("message dead lettered")
		d.Ack()
	}
	return nil
}
